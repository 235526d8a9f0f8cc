package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strings"
	"time"
)

// HazardType identifies the climate hazard a score refers to.
type HazardType string

const (
	HazardFlood   HazardType = "flood"
	HazardHeat    HazardType = "heat"
	HazardDrought HazardType = "drought"
)

// HazardTypes lists every supported hazard type in default priority order.
var HazardTypes = []HazardType{HazardFlood, HazardHeat, HazardDrought}

// ParseHazardType validates a hazard name. Matching is case-insensitive.
func ParseHazardType(s string) (HazardType, error) {
	h := HazardType(strings.ToLower(strings.TrimSpace(s)))
	switch h {
	case HazardFlood, HazardHeat, HazardDrought:
		return h, nil
	default:
		return "", fmt.Errorf("unknown hazard type %q", s)
	}
}

// Measurement is a single numeric reading with its unit.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// LocationSignal is the hazard-relevant reading for one location over one
// forecast horizon. It is not modified after parsing.
type LocationSignal struct {
	LocationID   string                 `json:"location_id"`
	ObservedAt   time.Time              `json:"observed_at"`
	HorizonHours int                    `json:"horizon_hours"`
	Measurements map[string]Measurement `json:"measurements"`
	Hazards      []HazardType           `json:"hazards,omitempty"`
}

// Measurement returns the named reading.
func (s LocationSignal) Measurement(name string) (Measurement, bool) {
	m, ok := s.Measurements[name]
	return m, ok
}

// Window returns the forecast window the signal covers.
func (s LocationSignal) Window() ForecastWindow {
	return ForecastWindow{
		Start: s.ObservedAt,
		End:   s.ObservedAt.Add(time.Duration(s.HorizonHours) * time.Hour),
	}
}

// ParseSignal deserializes a RawEvent's value into a LocationSignal.
// When observed_at is absent the message timestamp is used.
func ParseSignal(raw RawEvent) (LocationSignal, error) {
	var sig LocationSignal
	if err := json.Unmarshal(raw.Value, &sig); err != nil {
		return LocationSignal{}, fmt.Errorf("parse location signal: %w: %w", ErrMalformedSignal, err)
	}
	if sig.ObservedAt.IsZero() {
		sig.ObservedAt = raw.Timestamp
	}
	return NewLocationSignal(sig.LocationID, sig.ObservedAt, sig.HorizonHours, sig.Measurements, sig.Hazards...)
}

// NewLocationSignal validates and copies its inputs into a LocationSignal.
func NewLocationSignal(locationID string, observedAt time.Time, horizonHours int, measurements map[string]Measurement, hazards ...HazardType) (LocationSignal, error) {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return LocationSignal{}, &InsufficientDataError{Factor: "location_id", Reason: "missing"}
	}
	if horizonHours < 0 {
		return LocationSignal{}, &InsufficientDataError{Location: locationID, Factor: "horizon_hours", Reason: "negative"}
	}
	for name, m := range measurements {
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			return LocationSignal{}, &InsufficientDataError{Location: locationID, Factor: name, Reason: "not finite"}
		}
	}
	var parsed []HazardType
	for _, h := range hazards {
		ht, err := ParseHazardType(string(h))
		if err != nil {
			return LocationSignal{}, &InsufficientDataError{Location: locationID, Factor: "hazards", Reason: err.Error()}
		}
		parsed = append(parsed, ht)
	}

	return LocationSignal{
		LocationID:   locationID,
		ObservedAt:   observedAt.UTC(),
		HorizonHours: horizonHours,
		Measurements: maps.Clone(measurements),
		Hazards:      parsed,
	}, nil
}
