// Command genmock generates a mock location-signal fixture covering every
// location of a parameter table and every measurement its rules read. Values
// come from a seeded generator and timestamps from a fixed clock, so output
// is reproducible. It prints the tier distribution of the fixture for
// updating test assertions.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -rules configs/rules.yaml \
//	  -params configs/parameters.yaml \
//	  -out data/mock/signals.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-risk-service/internal/assess"
	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/impact"
	"github.com/couchcryptid/hazard-risk-service/internal/recommend"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
)

var observedAt = time.Date(2024, time.May, 2, 12, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rulesPath := flag.String("rules", "configs/rules.yaml", "path to the rules file")
	paramsPath := flag.String("params", "configs/parameters.yaml", "path to the location parameters file")
	out := flag.String("out", "", "output path for the signals fixture")
	seed := flag.Uint64("seed", 20240502, "generator seed")
	horizon := flag.Int("horizon", 72, "forecast horizon in hours")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	// Set a fixed clock for reproducible AssessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(observedAt.Add(5 * time.Minute)))
	defer domain.SetClock(nil)

	snap, err := rules.Load(*rulesPath, *paramsPath, 1, observedAt)
	if err != nil {
		return err
	}

	sigs := generate(snap, rand.New(rand.NewPCG(*seed, *seed)), *horizon)
	log.Printf("generated %d signals for snapshot %s", len(sigs), snap.Version())

	if err := writeJSON(*out, sigs); err != nil {
		return fmt.Errorf("writing signals fixture: %w", err)
	}
	log.Printf("wrote signals fixture: %s", *out)

	printStats(snap, sigs)
	return nil
}

// generate draws one signal per location with a reading for every
// measurement the snapshot's factors consume.
func generate(snap *rules.Snapshot, rng *rand.Rand, horizon int) []domain.LocationSignal {
	sigs := make([]domain.LocationSignal, 0, len(snap.LocationIDs()))
	for _, id := range snap.LocationIDs() {
		measurements := map[string]domain.Measurement{}
		for _, h := range snap.HazardTypes() {
			rule, _ := snap.Hazard(h)
			for _, f := range rule.Factors {
				if _, ok := measurements[f.Measurement]; ok {
					continue
				}
				measurements[f.Measurement] = domain.Measurement{Value: draw(f, rng), Unit: f.Unit}
			}
		}
		sigs = append(sigs, domain.LocationSignal{
			LocationID:   id,
			ObservedAt:   observedAt,
			HorizonHours: horizon,
			Measurements: measurements,
		})
	}
	return sigs
}

// draw returns a value spread slightly beyond the factor's anchors so that
// clamping is exercised too.
func draw(f rules.Factor, rng *rand.Rand) float64 {
	var lo, hi float64
	switch f.Kind {
	case rules.NormalizeSigmoid:
		lo, hi = 0, 2*f.Midpoint
	default:
		span := f.Max - f.Min
		lo, hi = f.Min-0.1*span, f.Max+0.1*span
	}
	if lo < 0 {
		lo = 0
	}
	v := lo + rng.Float64()*(hi-lo)
	if f.Unit == "fraction" || f.Unit == "index" {
		v = min(v, 1)
	}
	return math.Round(v*100) / 100
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(snap *rules.Snapshot, sigs []domain.LocationSignal) {
	assessor := assess.New(recommend.RuleBasedSource{}, impact.Calculator{}, 4)
	results := assessor.AssessBatch(context.Background(), snap, sigs)

	tiers := map[domain.Tier]int{}
	dominant := map[domain.HazardType]int{}
	bundles := make([]domain.RiskBundle, 0, len(results))
	for i, res := range results {
		if res.Err != nil {
			fmt.Printf("signal %d (%s): %v\n", i, sigs[i].LocationID, res.Err)
			continue
		}
		tiers[res.Bundle.Tier.Tier]++
		dominant[res.Bundle.Tier.Dominant]++
		bundles = append(bundles, res.Bundle)
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(sigs))
	fmt.Printf("By tier: low=%d, moderate=%d, high=%d, critical=%d\n",
		tiers[domain.TierLow], tiers[domain.TierModerate], tiers[domain.TierHigh], tiers[domain.TierCritical])
	fmt.Printf("By dominant hazard: flood=%d, heat=%d, drought=%d\n",
		dominant[domain.HazardFlood], dominant[domain.HazardHeat], dominant[domain.HazardDrought])

	fmt.Println("\nTop 3:")
	for _, b := range assess.TopN(bundles, 3) {
		fmt.Printf("  %-34s %-8s %-8s %.4f\n", b.LocationID, b.Tier.Tier, b.Tier.Dominant, b.Tier.Score)
	}
}
