package rules

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
)

// digestLen is the number of hex characters of the content hash kept in the
// snapshot version.
const digestLen = 12

// defaultPriority applies when severity_priority is omitted.
var defaultPriority = map[domain.HazardType]int{
	domain.HazardFlood:   3,
	domain.HazardHeat:    2,
	domain.HazardDrought: 1,
}

type rulesFile struct {
	Hazards          map[string]hazardSpec `yaml:"hazards"`
	Thresholds       *thresholdSpec        `yaml:"thresholds"`
	SeverityPriority map[string]int        `yaml:"severity_priority"`
	Impact           impactSpec            `yaml:"impact"`
	Actions          []actionSpec          `yaml:"actions"`
}

type hazardSpec struct {
	Factors []factorSpec `yaml:"factors"`
}

type factorSpec struct {
	Name        string   `yaml:"name"`
	Measurement string   `yaml:"measurement"`
	Unit        string   `yaml:"unit"`
	Weight      float64  `yaml:"weight"`
	Normalize   string   `yaml:"normalize"`
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
	Midpoint    *float64 `yaml:"midpoint"`
	Steepness   *float64 `yaml:"steepness"`
	Invert      bool     `yaml:"invert"`
}

type thresholdSpec struct {
	Moderate float64 `yaml:"moderate"`
	High     float64 `yaml:"high"`
	Critical float64 `yaml:"critical"`
}

type impactSpec struct {
	Currency            string                    `yaml:"currency"`
	ValuePerAvoidedUnit string                    `yaml:"value_per_avoided_unit"`
	MaxActions          int                       `yaml:"max_actions"`
	Tiers               map[string]tierImpactSpec `yaml:"tiers"`
}

type tierImpactSpec struct {
	PopulationFraction string `yaml:"population_fraction"`
	CostMultiplier     string `yaml:"cost_multiplier"`
}

type actionSpec struct {
	ID            string   `yaml:"id"`
	Description   string   `yaml:"description"`
	Term          string   `yaml:"term"`
	Tiers         []string `yaml:"tiers"`
	Hazards       []string `yaml:"hazards"`
	BaseCost      string   `yaml:"base_cost"`
	Effectiveness string   `yaml:"effectiveness"`
}

type parametersFile struct {
	Locations []locationSpec `yaml:"locations"`
}

type locationSpec struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Population int64  `yaml:"population"`
	CostIndex  string `yaml:"cost_index"`
}

// Load reads both files and builds a snapshot from them.
func Load(rulesPath, paramsPath string, seq uint64, loadedAt time.Time) (*Snapshot, error) {
	rulesData, paramsData, err := readFiles(rulesPath, paramsPath)
	if err != nil {
		return nil, err
	}
	return Build(rulesData, paramsData, seq, loadedAt)
}

func readFiles(rulesPath, paramsPath string) ([]byte, []byte, error) {
	rulesData, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read rules file: %w", err)
	}
	paramsData, err := os.ReadFile(paramsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read parameters file: %w", err)
	}
	return rulesData, paramsData, nil
}

// Digest hashes the raw rules and parameters content.
func Digest(rulesData, paramsData []byte) string {
	h := sha256.New()
	h.Write(rulesData)
	h.Write([]byte{0})
	h.Write(paramsData)
	return hex.EncodeToString(h.Sum(nil))[:digestLen]
}

// Build decodes and validates the rules and parameters documents. Any
// inconsistency is reported as a *domain.ConfigurationError naming the field.
func Build(rulesData, paramsData []byte, seq uint64, loadedAt time.Time) (*Snapshot, error) {
	var rf rulesFile
	if err := decodeStrict(rulesData, &rf); err != nil {
		return nil, &domain.ConfigurationError{Field: "rules", Reason: err.Error()}
	}
	var pf parametersFile
	if err := decodeStrict(paramsData, &pf); err != nil {
		return nil, &domain.ConfigurationError{Field: "parameters", Reason: err.Error()}
	}

	digest := Digest(rulesData, paramsData)
	s := &Snapshot{
		version:  fmt.Sprintf("%d-%s", seq, digest),
		sequence: seq,
		digest:   digest,
		loadedAt: loadedAt.UTC(),
	}

	steps := []func() error{
		func() error { return s.buildHazards(rf.Hazards) },
		func() error { return s.buildThresholds(rf.Thresholds) },
		func() error { return s.buildPriority(rf.SeverityPriority) },
		func() error { return s.buildCostModel(rf.Impact) },
		func() error { return s.buildActions(rf.Actions) },
		func() error { return s.buildLocations(pf.Locations) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func configErr(field, format string, args ...any) error {
	return &domain.ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (s *Snapshot) buildHazards(specs map[string]hazardSpec) error {
	if len(specs) == 0 {
		return configErr("hazards", "at least one hazard must be configured")
	}
	s.hazards = make(map[domain.HazardType]HazardRule, len(specs))
	for key, spec := range specs {
		h, err := domain.ParseHazardType(key)
		if err != nil {
			return configErr("hazards."+key, "%v", err)
		}
		rule, err := buildHazard(h, spec)
		if err != nil {
			return err
		}
		s.hazards[h] = rule
	}
	return nil
}

func buildHazard(h domain.HazardType, spec hazardSpec) (HazardRule, error) {
	prefix := "hazards." + string(h)
	if len(spec.Factors) == 0 {
		return HazardRule{}, configErr(prefix+".factors", "at least one factor is required")
	}

	rule := HazardRule{Hazard: h, Factors: make([]Factor, 0, len(spec.Factors))}
	seen := make(map[string]bool, len(spec.Factors))
	var sum float64
	for i, fs := range spec.Factors {
		field := fmt.Sprintf("%s.factors[%d]", prefix, i)
		f, err := buildFactor(field, fs)
		if err != nil {
			return HazardRule{}, err
		}
		if seen[f.Name] {
			return HazardRule{}, configErr(field+".name", "duplicate factor %q", f.Name)
		}
		seen[f.Name] = true
		sum += f.Weight
		rule.Factors = append(rule.Factors, f)
	}
	if math.Abs(sum-1) > WeightTolerance {
		return HazardRule{}, configErr(prefix+".factors", "weights sum to %.6f, want 1.0", sum)
	}
	return rule, nil
}

func buildFactor(field string, fs factorSpec) (Factor, error) {
	f := Factor{
		Name:        strings.TrimSpace(fs.Name),
		Measurement: strings.TrimSpace(fs.Measurement),
		Unit:        domain.NormalizeUnit(fs.Unit),
		Weight:      fs.Weight,
		Kind:        Normalization(strings.ToLower(strings.TrimSpace(fs.Normalize))),
		Invert:      fs.Invert,
	}
	if f.Name == "" {
		return Factor{}, configErr(field+".name", "required")
	}
	if f.Measurement == "" {
		f.Measurement = f.Name
	}
	if !domain.KnownUnit(f.Unit) {
		return Factor{}, configErr(field+".unit", "unknown unit %q", fs.Unit)
	}
	if math.IsNaN(f.Weight) || f.Weight <= 0 || f.Weight > 1 {
		return Factor{}, configErr(field+".weight", "must be in (0,1], got %v", fs.Weight)
	}

	switch f.Kind {
	case NormalizeLinear, "":
		f.Kind = NormalizeLinear
		if fs.Min == nil || fs.Max == nil {
			return Factor{}, configErr(field, "linear normalization needs min and max")
		}
		f.Min, f.Max = *fs.Min, *fs.Max
		if err := requireFinite(field, "min", f.Min); err != nil {
			return Factor{}, err
		}
		if err := requireFinite(field, "max", f.Max); err != nil {
			return Factor{}, err
		}
		if !(f.Max > f.Min) {
			return Factor{}, configErr(field+".max", "must be greater than min (%v)", f.Min)
		}
	case NormalizeSigmoid:
		if fs.Midpoint == nil || fs.Steepness == nil {
			return Factor{}, configErr(field, "sigmoid normalization needs midpoint and steepness")
		}
		f.Midpoint, f.Steepness = *fs.Midpoint, *fs.Steepness
		if err := requireFinite(field, "midpoint", f.Midpoint); err != nil {
			return Factor{}, err
		}
		if err := requireFinite(field, "steepness", f.Steepness); err != nil {
			return Factor{}, err
		}
		if !(f.Steepness > 0) {
			return Factor{}, configErr(field+".steepness", "must be positive")
		}
	default:
		return Factor{}, configErr(field+".normalize", "unknown normalization %q", fs.Normalize)
	}
	return f, nil
}

func requireFinite(field, name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return configErr(field+"."+name, "must be finite, got %v", v)
	}
	return nil
}

func (s *Snapshot) buildThresholds(spec *thresholdSpec) error {
	if spec == nil {
		return configErr("thresholds", "required")
	}
	t := Thresholds{Moderate: spec.Moderate, High: spec.High, Critical: spec.Critical}
	for name, v := range map[string]float64{"moderate": t.Moderate, "high": t.High, "critical": t.Critical} {
		if err := requireFinite("thresholds", name, v); err != nil {
			return err
		}
	}
	if !(t.Moderate > 0 && t.Moderate < t.High && t.High < t.Critical && t.Critical <= 1) {
		return configErr("thresholds", "need 0 < moderate < high < critical <= 1, got %v/%v/%v",
			t.Moderate, t.High, t.Critical)
	}
	s.thresholds = t
	return nil
}

func (s *Snapshot) buildPriority(spec map[string]int) error {
	s.priority = make(map[domain.HazardType]int, len(s.hazards))
	if len(spec) == 0 {
		for h := range s.hazards {
			s.priority[h] = defaultPriority[h]
		}
	} else {
		for key, p := range spec {
			h, err := domain.ParseHazardType(key)
			if err != nil {
				return configErr("severity_priority."+key, "%v", err)
			}
			s.priority[h] = p
		}
	}

	used := make(map[int]domain.HazardType, len(s.priority))
	for h := range s.hazards {
		p, ok := s.priority[h]
		if !ok {
			return configErr("severity_priority."+string(h), "missing priority for configured hazard")
		}
		if other, dup := used[p]; dup {
			return configErr("severity_priority."+string(h), "priority %d already used by %s", p, other)
		}
		used[p] = h
	}

	s.hazardOrder = make([]domain.HazardType, 0, len(s.hazards))
	for h := range s.hazards {
		s.hazardOrder = append(s.hazardOrder, h)
	}
	slices.SortFunc(s.hazardOrder, func(a, b domain.HazardType) int {
		return s.priority[b] - s.priority[a]
	})
	return nil
}

func (s *Snapshot) buildCostModel(spec impactSpec) error {
	c := CostModel{
		Currency:   strings.ToUpper(strings.TrimSpace(spec.Currency)),
		MaxActions: spec.MaxActions,
		Tiers:      make(map[domain.Tier]TierImpact, len(domain.Tiers)),
	}
	if c.Currency == "" {
		return configErr("impact.currency", "required")
	}
	if c.MaxActions < 1 {
		return configErr("impact.max_actions", "must be at least 1")
	}
	v, err := parseDecimal("impact.value_per_avoided_unit", spec.ValuePerAvoidedUnit)
	if err != nil {
		return err
	}
	if !v.IsPositive() {
		return configErr("impact.value_per_avoided_unit", "must be positive")
	}
	c.ValuePerAvoidedUnit = v

	for key := range spec.Tiers {
		if _, err := domain.ParseTier(key); err != nil {
			return configErr("impact.tiers."+key, "%v", err)
		}
	}
	for _, tier := range domain.Tiers {
		field := "impact.tiers." + string(tier)
		ts, ok := spec.Tiers[string(tier)]
		if !ok {
			return configErr(field, "missing entry for tier")
		}
		frac, err := parseDecimal(field+".population_fraction", ts.PopulationFraction)
		if err != nil {
			return err
		}
		if frac.IsNegative() || frac.GreaterThan(decimal.NewFromInt(1)) {
			return configErr(field+".population_fraction", "must be in [0,1]")
		}
		mult, err := parseDecimal(field+".cost_multiplier", ts.CostMultiplier)
		if err != nil {
			return err
		}
		if !mult.IsPositive() {
			return configErr(field+".cost_multiplier", "must be positive")
		}
		c.Tiers[tier] = TierImpact{PopulationFraction: frac, CostMultiplier: mult}
	}
	s.cost = c
	return nil
}

func (s *Snapshot) buildActions(specs []actionSpec) error {
	if len(specs) == 0 {
		return configErr("actions", "catalog is empty")
	}
	s.actions = make(map[string]domain.RecommendedAction, len(specs))
	s.actionOrder = make([]string, 0, len(specs))
	for i, as := range specs {
		field := fmt.Sprintf("actions[%d]", i)
		a, err := s.buildAction(field, as)
		if err != nil {
			return err
		}
		if _, dup := s.actions[a.ID]; dup {
			return configErr(field+".id", "duplicate action %q", a.ID)
		}
		s.actions[a.ID] = a
		s.actionOrder = append(s.actionOrder, a.ID)
	}
	return nil
}

func (s *Snapshot) buildAction(field string, as actionSpec) (domain.RecommendedAction, error) {
	a := domain.RecommendedAction{
		ID:          strings.TrimSpace(as.ID),
		Term:        domain.Term(strings.TrimSpace(as.Term)),
		Description: strings.TrimSpace(as.Description),
	}
	if a.ID == "" {
		return a, configErr(field+".id", "required")
	}
	if a.Term != domain.TermShort && a.Term != domain.TermLong {
		return a, configErr(field+".term", "must be %s or %s, got %q", domain.TermShort, domain.TermLong, as.Term)
	}
	if len(as.Tiers) == 0 {
		return a, configErr(field+".tiers", "at least one tier is required")
	}
	for _, raw := range as.Tiers {
		tier, err := domain.ParseTier(raw)
		if err != nil {
			return a, configErr(field+".tiers", "%v", err)
		}
		a.Tiers = append(a.Tiers, tier)
	}
	for _, raw := range as.Hazards {
		h, err := domain.ParseHazardType(raw)
		if err != nil {
			return a, configErr(field+".hazards", "%v", err)
		}
		a.Hazards = append(a.Hazards, h)
	}

	cost, err := parseDecimal(field+".base_cost", as.BaseCost)
	if err != nil {
		return a, err
	}
	if !cost.IsPositive() {
		return a, configErr(field+".base_cost", "must be positive")
	}
	a.BaseCost = cost

	eff, err := parseDecimal(field+".effectiveness", as.Effectiveness)
	if err != nil {
		return a, err
	}
	a.Effectiveness = eff
	return a, nil
}

func (s *Snapshot) buildLocations(specs []locationSpec) error {
	s.locations = make(map[string]domain.LocationParameters, len(specs))
	for i, ls := range specs {
		field := fmt.Sprintf("locations[%d]", i)
		id := strings.TrimSpace(ls.ID)
		if id == "" {
			return configErr(field+".id", "required")
		}
		if _, dup := s.locations[id]; dup {
			return configErr(field+".id", "duplicate location %q", id)
		}
		if ls.Population < 0 {
			return configErr(field+".population", "must not be negative")
		}
		idx, err := parseDecimal(field+".cost_index", ls.CostIndex)
		if err != nil {
			return err
		}
		if !idx.IsPositive() {
			return configErr(field+".cost_index", "must be positive")
		}
		s.locations[id] = domain.LocationParameters{
			LocationID: id,
			Name:       strings.TrimSpace(ls.Name),
			Population: ls.Population,
			CostIndex:  idx,
		}
	}
	return nil
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, configErr(field, "required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, configErr(field, "not a decimal: %q", raw)
	}
	return d, nil
}
