// Package domain models climate-hazard signals, scores, risk tiers and the
// impact of municipal actions.
//
// # Data Source
//
// Location signals originate from an upstream ingestion collaborator that
// reverse-geocodes a forecast feed onto municipal districts, attaches a
// forecast horizon, and publishes one flat JSON document per location to the
// Kafka source topic:
//
//	{
//	  "location_id": "canoas-centro",
//	  "observed_at": "2024-05-02T12:00:00Z",
//	  "horizon_hours": 72,
//	  "measurements": {
//	    "precipitation_24h": {"value": 120, "unit": "mm"},
//	    "soil_saturation":   {"value": 0.9, "unit": "fraction"}
//	  }
//	}
//
// Measurement keys are free-form; the rules snapshot decides which keys feed
// which hazard. An optional "hazards" array restricts which hazard types are
// scored for the location.
//
// # Units
//
// Every measurement carries a unit. Factors declare the unit they expect and
// values are converted between compatible units before normalization:
//
//	length:       mm, cm, in
//	elevation:    m, ft
//	temperature:  C, F, K
//	ratio:        fraction, percent, m3/m3 (volumetric soil moisture)
//
// Incompatible units are reported as [InsufficientDataError], never guessed.
//
// # Scores and Tiers
//
// A hazard score (H_score) is a weighted sum of factors, each rescaled to
// [0,1], so the score itself lies in [0,1]. The classifier takes the maximum
// across hazard types as the dominant driver and maps it onto four tiers:
//
//	[0, moderate)        low
//	[moderate, high)     moderate
//	[high, critical)     high
//	[critical, 1]        critical
//
// Cut points are configuration. Ties between hazard types go to the larger
// severity priority (flood > heat > drought by default).
//
// # Money
//
// Costs and benefits are [github.com/shopspring/decimal] values rounded to
// centavos. ROI is derived from cost and benefit on every read and is never
// stored next to them.
package domain
