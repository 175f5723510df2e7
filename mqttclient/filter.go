package mqttclient

import (
	"fmt"
	"strings"

	"github.com/Joshuathomas18/drasi-mqtt-poc/errors"
)

// ValidateFilter checks MQTT topic-filter syntax: the multi-level wildcard
// '#' may only occupy the final segment, and the single-level wildcard '+'
// must occupy a whole segment. Invalid filters are configuration errors and
// fatal at startup.
func ValidateFilter(filter string) error {
	if filter == "" {
		return errors.WrapFatal(errors.ErrInvalidPattern,
			"mqttclient", "ValidateFilter", "empty topic filter")
	}

	segments := strings.Split(filter, "/")
	for i, segment := range segments {
		switch {
		case segment == "#":
			if i != len(segments)-1 {
				return errors.WrapFatal(
					fmt.Errorf("%w: '#' must be the final segment in %q", errors.ErrInvalidPattern, filter),
					"mqttclient", "ValidateFilter", "multi-level wildcard position")
			}
		case strings.Contains(segment, "#"):
			return errors.WrapFatal(
				fmt.Errorf("%w: '#' must occupy a whole segment in %q", errors.ErrInvalidPattern, filter),
				"mqttclient", "ValidateFilter", "multi-level wildcard usage")
		case segment != "+" && strings.Contains(segment, "+"):
			return errors.WrapFatal(
				fmt.Errorf("%w: '+' must occupy a whole segment in %q", errors.ErrInvalidPattern, filter),
				"mqttclient", "ValidateFilter", "single-level wildcard usage")
		}
	}

	return nil
}
