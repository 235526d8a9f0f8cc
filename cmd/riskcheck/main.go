// Command riskcheck validates a rules/parameters pair and, optionally,
// assesses a JSON file of location signals offline against it.
//
// Usage:
//
//	go run ./cmd/riskcheck \
//	  -rules configs/rules.yaml \
//	  -params configs/parameters.yaml \
//	  -signals data/mock/signals.json \
//	  -top 5
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/couchcryptid/hazard-risk-service/internal/assess"
	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/impact"
	"github.com/couchcryptid/hazard-risk-service/internal/recommend"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("riskcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesPath := fs.String("rules", "configs/rules.yaml", "path to the rules file")
	paramsPath := fs.String("params", "configs/parameters.yaml", "path to the location parameters file")
	signalsPath := fs.String("signals", "", "optional JSON array of location signals to assess")
	top := fs.Int("top", 0, "print only the n most severe locations (0 prints all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	snap, err := rules.Load(*rulesPath, *paramsPath, 1, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(stderr, "FAIL: %v\n", err)
		return 1
	}
	printSummary(stdout, snap)

	if *signalsPath == "" {
		return 0
	}

	sigs, err := loadSignals(*signalsPath)
	if err != nil {
		fmt.Fprintf(stderr, "FAIL: %v\n", err)
		return 1
	}

	assessor := assess.New(recommend.RuleBasedSource{}, impact.Calculator{}, 4)
	results := assessor.AssessBatch(context.Background(), snap, sigs)

	bundles := make([]domain.RiskBundle, 0, len(results))
	failed := 0
	for i, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(stderr, "  [%d] %s: %v\n", i+1, domain.ErrorKind(res.Err), res.Err)
			continue
		}
		bundles = append(bundles, res.Bundle)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(assess.TopN(bundles, *top)); err != nil {
		fmt.Fprintf(stderr, "FAIL: encode bundles: %v\n", err)
		return 1
	}

	fmt.Fprintf(stderr, "assessed %d of %d signals\n", len(bundles), len(sigs))
	if failed > 0 {
		return 1
	}
	return 0
}

func printSummary(w io.Writer, snap *rules.Snapshot) {
	t := snap.Thresholds()
	fmt.Fprintf(w, "rules OK: version %s\n", snap.Version())
	fmt.Fprintf(w, "  thresholds: moderate=%.2f high=%.2f critical=%.2f\n", t.Moderate, t.High, t.Critical)
	for _, h := range snap.HazardTypes() {
		rule, _ := snap.Hazard(h)
		fmt.Fprintf(w, "  %-8s priority=%d factors=%d\n", h, snap.Priority(h), len(rule.Factors))
	}
	cm := snap.CostModel()
	fmt.Fprintf(w, "  actions: %d (max %d per location), currency %s\n", len(snap.Actions()), cm.MaxActions, cm.Currency)
	fmt.Fprintf(w, "  locations: %d\n", len(snap.LocationIDs()))
}

// loadSignals reads a JSON array and validates each element as a signal.
func loadSignals(path string) ([]domain.LocationSignal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signals file: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse signals file: %w", err)
	}
	sigs := make([]domain.LocationSignal, 0, len(items))
	for i, item := range items {
		sig, err := domain.ParseSignal(domain.RawEvent{Value: item})
		if err != nil {
			return nil, fmt.Errorf("signal %d: %w", i, err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}
