package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLocation = "canoas-centro"

func TestParseSignal(t *testing.T) {
	msgTime := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	t.Run("full signal", func(t *testing.T) {
		data := []byte(`{"location_id":"canoas-centro","observed_at":"2024-05-02T09:00:00-03:00","horizon_hours":72,
			"measurements":{"precipitation_24h":{"value":120,"unit":"mm"},"soil_saturation":{"value":0.9,"unit":"fraction"}},
			"hazards":["flood"]}`)
		sig, err := ParseSignal(RawEvent{Value: data, Timestamp: msgTime})

		require.NoError(t, err)
		assert.Equal(t, testLocation, sig.LocationID)
		assert.Equal(t, msgTime, sig.ObservedAt)
		assert.Equal(t, 72, sig.HorizonHours)
		assert.Equal(t, []HazardType{HazardFlood}, sig.Hazards)
		m, ok := sig.Measurement("precipitation_24h")
		require.True(t, ok)
		assert.Equal(t, Measurement{Value: 120, Unit: "mm"}, m)
	})

	t.Run("observed_at falls back to message time", func(t *testing.T) {
		data := []byte(`{"location_id":"canoas-centro","horizon_hours":24,"measurements":{}}`)
		sig, err := ParseSignal(RawEvent{Value: data, Timestamp: msgTime})

		require.NoError(t, err)
		assert.Equal(t, msgTime, sig.ObservedAt)
		assert.Equal(t, ForecastWindow{Start: msgTime, End: msgTime.Add(24 * time.Hour)}, sig.Window())
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseSignal(RawEvent{Value: []byte("{invalid json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse location signal")
		assert.ErrorIs(t, err, ErrMalformedSignal)
	})

	t.Run("missing location", func(t *testing.T) {
		_, err := ParseSignal(RawEvent{Value: []byte(`{"horizon_hours":24}`), Timestamp: msgTime})

		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "location_id", insufficient.Factor)
	})

	t.Run("negative horizon", func(t *testing.T) {
		_, err := ParseSignal(RawEvent{Value: []byte(`{"location_id":"x","horizon_hours":-1}`), Timestamp: msgTime})

		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "horizon_hours", insufficient.Factor)
	})

	t.Run("unknown hazard", func(t *testing.T) {
		_, err := ParseSignal(RawEvent{Value: []byte(`{"location_id":"x","hazards":["hail"]}`), Timestamp: msgTime})

		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "hazards", insufficient.Factor)
	})

	t.Run("hazard names are normalized", func(t *testing.T) {
		data := []byte(`{"location_id":"x","hazards":["Flood"," HEAT "]}`)
		sig, err := ParseSignal(RawEvent{Value: data, Timestamp: msgTime})

		require.NoError(t, err)
		assert.Equal(t, []HazardType{HazardFlood, HazardHeat}, sig.Hazards)
	})
}

func TestNewLocationSignal_RejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := NewLocationSignal(testLocation, time.Now(), 24, map[string]Measurement{
			"temperature_max": {Value: v, Unit: "C"},
		})

		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "temperature_max", insufficient.Factor)
		assert.Equal(t, "not finite", insufficient.Reason)
	}
}

func TestNewLocationSignal_CopiesMeasurements(t *testing.T) {
	in := map[string]Measurement{"precipitation_24h": {Value: 10, Unit: "mm"}}
	sig, err := NewLocationSignal(testLocation, time.Now(), 24, in)
	require.NoError(t, err)

	in["precipitation_24h"] = Measurement{Value: 999, Unit: "mm"}

	m, _ := sig.Measurement("precipitation_24h")
	assert.Equal(t, 10.0, m.Value)
}

func TestConvertUnit(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		from, to string
		expected float64
	}{
		{"same unit", 12, "mm", "mm", 12},
		{"inches to mm", 1, "in", "mm", 25.4},
		{"cm to mm", 2.5, "cm", "mm", 25},
		{"feet to meters", 10, "ft", "m", 3.048},
		{"percent to fraction", 90, "percent", "fraction", 0.9},
		{"percent alias", 45, "%", "fraction", 0.45},
		{"soil moisture volumetric", 0.3, "m3/m3", "fraction", 0.3},
		{"fahrenheit to celsius", 104, "F", "C", 40},
		{"kelvin to celsius", 300, "K", "°C", 26.85},
		{"celsius to fahrenheit", 0, "celsius", "F", 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertUnit(tt.value, tt.from, tt.to)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}

	t.Run("incompatible dimensions", func(t *testing.T) {
		_, err := ConvertUnit(1, "mm", "C")
		require.Error(t, err)
	})

	t.Run("unknown unit", func(t *testing.T) {
		_, err := ConvertUnit(1, "furlong", "mm")
		require.Error(t, err)
		assert.False(t, KnownUnit("furlong"))
	})
}

func TestForecastWindow_Union(t *testing.T) {
	t0 := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	a := ForecastWindow{Start: t0, End: t0.Add(24 * time.Hour)}
	b := ForecastWindow{Start: t0.Add(-6 * time.Hour), End: t0.Add(12 * time.Hour)}

	assert.Equal(t, ForecastWindow{Start: t0.Add(-6 * time.Hour), End: t0.Add(24 * time.Hour)}, a.Union(b))
	assert.Equal(t, a, ForecastWindow{}.Union(a))
	assert.Equal(t, a, a.Union(ForecastWindow{}))
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" Critical ")
	require.NoError(t, err)
	assert.Equal(t, TierCritical, tier)
	assert.Equal(t, 3, tier.Rank())

	_, err = ParseTier("severe")
	require.Error(t, err)
	assert.Equal(t, -1, Tier("severe").Rank())
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{&InsufficientDataError{Factor: "x"}, "insufficient_data"},
		{&ConfigurationError{Field: "x"}, "configuration"},
		{&EmptyInputError{Operation: "classify"}, "empty_input"},
		{&MissingParameterError{Parameter: "population"}, "missing_parameter"},
		{ErrLocationMismatch, "location_mismatch"},
		{fmt.Errorf("wrap: %w", ErrMalformedSignal), "malformed"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ErrorKind(tt.err))
	}

	assert.ErrorIs(t, &EmptyInputError{Operation: "classify"}, ErrEmptyInput)
}

func TestSerializeBundle(t *testing.T) {
	assessedAt := time.Date(2024, 5, 2, 12, 30, 0, 0, time.UTC)
	bundle := RiskBundle{
		LocationID:      testLocation,
		Tier:            RiskTier{LocationID: testLocation, Tier: TierCritical, Dominant: HazardFlood, Score: 0.95},
		SnapshotVersion: "1-abc",
		CycleID:         "cycle-1",
		AssessedAt:      assessedAt,
	}

	out, err := SerializeBundle(bundle)
	require.NoError(t, err)
	assert.Equal(t, []byte(testLocation), out.Key)
	assert.Equal(t, "critical", out.Headers["tier"])
	assert.Equal(t, "flood", out.Headers["dominant_hazard"])
	assert.Equal(t, "1-abc", out.Headers["snapshot_version"])
	assert.Equal(t, "cycle-1", out.Headers["cycle_id"])
	assert.Equal(t, "2024-05-02T12:30:00Z", out.Headers["assessed_at"])

	var decoded RiskBundle
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, TierCritical, decoded.Tier.Tier)
}
