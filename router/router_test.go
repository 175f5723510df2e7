package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteIdentityExtraction(t *testing.T) {
	r := New(nil)

	meta := r.Route("lfx/drasi/sensors/temp-01", DefaultPattern)
	assert.Equal(t, "temp-01", meta.EntityID)
	assert.Equal(t, []string{"Sensor", "IoTDevice"}, meta.Labels)
}

func TestRouteIsDeterministic(t *testing.T) {
	r := New(nil)

	first := r.Route("lfx/drasi/sensors/temp-01", DefaultPattern)
	second := r.Route("lfx/drasi/sensors/temp-01", DefaultPattern)
	assert.Equal(t, first, second)
}

func TestRoutePermissiveDefaults(t *testing.T) {
	r := New(nil)

	tests := []struct {
		name  string
		topic string
		want  string
	}{
		{"empty topic", "", DefaultEntityID},
		{"trailing slash", "lfx/drasi/sensors/", DefaultEntityID},
		{"bare slash", "/", DefaultEntityID},
		{"no delimiter", "standalone", "standalone"},
		{"deep nesting", "a/b/c/d/e/device-9", "device-9"},
		{"double slash", "a//", DefaultEntityID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := r.Route(tt.topic, DefaultPattern)
			assert.Equal(t, tt.want, meta.EntityID)
			assert.NotEmpty(t, meta.EntityID, "entity id invariant: never empty")
		})
	}
}

func TestRoutePatternLabelTable(t *testing.T) {
	r := New(Table{
		"lfx/drasi/sensors/#":   {"Sensor", "IoTDevice"},
		"factory/+/actuators/#": {"Actuator"},
	})

	sensors := r.Route("lfx/drasi/sensors/temp-01", "lfx/drasi/sensors/#")
	assert.Equal(t, []string{"Sensor", "IoTDevice"}, sensors.Labels)

	actuators := r.Route("factory/line1/actuators/valve-2", "factory/+/actuators/#")
	assert.Equal(t, []string{"Actuator"}, actuators.Labels)

	// Unknown pattern falls back to the default label set
	unknown := r.Route("other/topic", "other/#")
	assert.Equal(t, DefaultLabels, unknown.Labels)
}

func TestRouteLabelsAreCopies(t *testing.T) {
	r := New(nil)

	meta := r.Route("a/b", DefaultPattern)
	meta.Labels[0] = "mutated"

	again := r.Route("a/b", DefaultPattern)
	assert.Equal(t, "Sensor", again.Labels[0], "caller mutation must not leak into the table")
}
