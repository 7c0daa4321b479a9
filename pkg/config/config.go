// Package config holds the tunable scheduling policy. Every threshold and
// weight the engines consume lives here as a named field with a default, so
// policy can change without touching algorithm code.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	yaml "gopkg.in/yaml.v3"
)

// Config is the full policy set. Zero values are filled from Default() on
// load, so a config file only needs the fields it overrides.
type Config struct {
	Recurrence RecurrencePolicy   `yaml:"recurrence"`
	Duration   DurationHeuristics `yaml:"duration"`
	Conflict   ConflictPolicy     `yaml:"conflict"`
	Scoring    ScoringWeights     `yaml:"scoring"`
}

// RecurrencePolicy bounds occurrence generation.
type RecurrencePolicy struct {
	// HorizonDays is how far forward occurrences are topped up.
	HorizonDays int `yaml:"horizon_days"`
	// MaxIterations caps generation work even for malformed rules.
	MaxIterations int `yaml:"max_iterations"`
}

// ConflictPolicy tunes double-booking detection.
type ConflictPolicy struct {
	// CapacityThreshold is the active-job count per day at which a
	// capacity warning is emitted.
	CapacityThreshold int `yaml:"capacity_threshold"`
	// DefaultJobHours substitutes for a missing end time.
	DefaultJobHours float64 `yaml:"default_job_hours"`
}

// ScoringWeights are the crew-suitability scoring constants. They came out
// of dispatcher practice rather than measurement; treat them as a
// calibration target, not a contract.
type ScoringWeights struct {
	Base                float64 `yaml:"base"`
	PerformanceWeight   float64 `yaml:"performance_weight"`    // x rating
	CriticalHazardBonus float64 `yaml:"critical_hazard_bonus"` // seniority title on critical work
	SpecialtyBonus      float64 `yaml:"specialty_bonus"`       // title matches service type
	SkillMatchBonus     float64 `yaml:"skill_match_bonus"`     // per matched required skill
	AlternateCount      int     `yaml:"alternate_count"`
	// QualifyingCertifications are credential ids that satisfy the
	// high-hazard certification check.
	QualifyingCertifications []string `yaml:"qualifying_certifications"`
}

// DurationHeuristics drives the fallback estimate when historical samples
// are too thin.
type DurationHeuristics struct {
	// MinSamples is the sample count at which the historical aggregate is
	// trusted over the heuristic.
	MinSamples int `yaml:"min_samples"`

	// BaseHours per service type, for a 3-person crew on a medium job.
	BaseHours map[string]float64 `yaml:"base_hours"`
	// FallbackBaseHours covers service types missing from BaseHours.
	FallbackBaseHours float64 `yaml:"fallback_base_hours"`

	// HazardMultipliers scale by risk level.
	HazardMultipliers map[string]float64 `yaml:"hazard_multipliers"`

	// CrewMultipliers scale by crew size; fewer people take longer, with
	// diminishing returns above three.
	CrewMultipliers   map[int]float64 `yaml:"crew_multipliers"`
	CrewMultiplierMin float64         `yaml:"crew_multiplier_min"` // crews larger than the table

	// SizeFactors scale by size bucket.
	SizeFactors map[string]float64 `yaml:"size_factors"`

	// Bucket thresholds. A tree lands in the larger bucket of the two
	// measures.
	HeightMediumFt   float64 `yaml:"height_medium_ft"`
	HeightLargeFt    float64 `yaml:"height_large_ft"`
	HeightExtraFt    float64 `yaml:"height_extra_ft"`
	DiameterMediumIn float64 `yaml:"diameter_medium_in"`
	DiameterLargeIn  float64 `yaml:"diameter_large_in"`
	DiameterExtraIn  float64 `yaml:"diameter_extra_in"`

	// Heuristic confidence band, as multipliers on the estimate.
	RangeLow  float64 `yaml:"range_low"`
	RangeHigh float64 `yaml:"range_high"`
}

// Default returns the shipped policy.
func Default() Config {
	return Config{
		Recurrence: RecurrencePolicy{
			HorizonDays:   90,
			MaxIterations: 180,
		},
		Duration: DurationHeuristics{
			MinSamples: 3,
			BaseHours: map[string]float64{
				"removal":        6.0,
				"trimming":       4.0,
				"stump_grinding": 2.0,
				"emergency":      8.0,
				"planting":       3.0,
				"assessment":     1.5,
			},
			FallbackBaseHours: 4.0,
			HazardMultipliers: map[string]float64{
				"low":      0.9,
				"medium":   1.0,
				"high":     1.4,
				"critical": 1.8,
			},
			CrewMultipliers: map[int]float64{
				1: 1.8,
				2: 1.3,
				3: 1.0,
				4: 0.9,
			},
			CrewMultiplierMin: 0.85,
			SizeFactors: map[string]float64{
				"small":       0.8,
				"medium":      1.0,
				"large":       1.3,
				"extra_large": 1.7,
			},
			HeightMediumFt:   30,
			HeightLargeFt:    60,
			HeightExtraFt:    80,
			DiameterMediumIn: 12,
			DiameterLargeIn:  24,
			DiameterExtraIn:  36,
			RangeLow:         0.7,
			RangeHigh:        1.5,
		},
		Conflict: ConflictPolicy{
			CapacityThreshold: 5,
			DefaultJobHours:   4.0,
		},
		Scoring: ScoringWeights{
			Base:                50,
			PerformanceWeight:   10,
			CriticalHazardBonus: 20,
			SpecialtyBonus:      15,
			SkillMatchBonus:     10,
			AlternateCount:      2,
			QualifyingCertifications: []string{
				"isa_certified_arborist",
				"ctsp",
				"crane_operator",
			},
		},
	}
}

// Load reads a yaml policy file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}
