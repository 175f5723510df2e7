package mapper

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Joshuathomas18/drasi-mqtt-poc/errors"
	"github.com/Joshuathomas18/drasi-mqtt-poc/router"
)

func TestMapSensorScenario(t *testing.T) {
	m := New(nil, "")

	record, err := m.Map("lfx/drasi/sensors/temp-01", []byte(`{"tempC": 21.5}`))
	require.NoError(t, err)

	assert.Equal(t, "temp-01", record.ID)
	assert.Equal(t, []string{"Sensor", "IoTDevice"}, record.Labels)
	assert.Equal(t, map[string]any{"tempC": json.Number("21.5")}, record.Properties)
}

func TestMapTrailingSlashScenario(t *testing.T) {
	m := New(nil, "")

	record, err := m.Map("lfx/drasi/sensors/", []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "unknown", record.ID)
	assert.Equal(t, map[string]any{}, record.Properties)
}

func TestMapMalformedPayload(t *testing.T) {
	m := New(nil, "")

	_, err := m.Map("lfx/drasi/sensors/temp-01", []byte("not-json"))
	require.Error(t, err)

	var de *DecodeError
	require.True(t, stderrors.As(err, &de))
	assert.Equal(t, "lfx/drasi/sensors/temp-01", de.Topic)
	assert.Equal(t, "not-json", de.Snippet)
	assert.True(t, stderrors.Is(err, apperrors.ErrDecodeFailed))
	assert.True(t, apperrors.IsInvalid(err))
}

func TestMapRoundTripExactness(t *testing.T) {
	m := New(nil, "")

	// Mixed types: nested object, array, string, integer, fraction, bool, null
	body := `{"a":{"b":[1,2.5,"three",true,null]},"count":42,"name":"x"}`

	record, err := m.Map("lfx/drasi/sensors/dev", []byte(body))
	require.NoError(t, err)

	// Re-encoding the properties yields a document equal to the input
	encoded, err := json.Marshal(record.Properties)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(encoded))

	// json.Number preserves the exact numeric literals
	props := record.Properties.(map[string]any)
	assert.Equal(t, json.Number("42"), props["count"])
}

func TestMapNonObjectDocuments(t *testing.T) {
	m := New(nil, "")

	tests := []struct {
		name    string
		payload string
	}{
		{"array", `[1,2,3]`},
		{"string", `"hello"`},
		{"number", `3.14`},
		{"bool", `true`},
		{"null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := m.Map("t/dev", []byte(tt.payload))
			require.NoError(t, err)

			encoded, err := json.Marshal(record.Properties)
			require.NoError(t, err)
			assert.JSONEq(t, tt.payload, string(encoded))
		})
	}
}

func TestMapDecodeFailures(t *testing.T) {
	m := New(nil, "")

	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"truncated object", []byte(`{"a":`)},
		{"trailing garbage", []byte(`{"a":1} extra`)},
		{"two documents", []byte(`{}{}`)},
		{"bare text", []byte(`hello world`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := m.Map("t/dev", tt.payload)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, apperrors.ErrDecodeFailed))
			// Never a partially constructed record
			assert.Empty(t, record.ID)
			assert.Nil(t, record.Labels)
			assert.Nil(t, record.Properties)
		})
	}
}

func TestMapDecodeFailureDoesNotAffectSubsequentMessages(t *testing.T) {
	m := New(nil, "")

	_, err := m.Map("t/bad", []byte("not-json"))
	require.Error(t, err)

	record, err := m.Map("lfx/drasi/sensors/temp-02", []byte(`{"tempC": 18}`))
	require.NoError(t, err)
	assert.Equal(t, "temp-02", record.ID)
}

func TestSnippetTruncation(t *testing.T) {
	m := New(nil, "")

	long := strings.Repeat("x", 500)
	_, err := m.Map("t/dev", []byte(long))
	require.Error(t, err)

	var de *DecodeError
	require.True(t, stderrors.As(err, &de))
	assert.Len(t, de.Snippet, snippetLimit+3) // payload prefix plus ellipsis
	assert.True(t, strings.HasSuffix(de.Snippet, "..."))
}

func TestMapWithCustomRouterTable(t *testing.T) {
	r := router.New(router.Table{"plant/#": {"Machine"}})
	m := New(r, "plant/#")

	record, err := m.Map("plant/press-7", []byte(`{"rpm": 1200}`))
	require.NoError(t, err)
	assert.Equal(t, "press-7", record.ID)
	assert.Equal(t, []string{"Machine"}, record.Labels)
}
