// Package duration estimates job duration from historical aggregates, with
// a rule-based heuristic as the documented fallback when samples are thin.
package duration

import (
	"math"

	"github.com/arborworks/crew-scheduler-go/pkg/config"
	"github.com/arborworks/crew-scheduler-go/pkg/models"
)

// ConfidenceTier labels how much to trust an estimate.
type ConfidenceTier string

const (
	TierHigh ConfidenceTier = "high"
	TierLow  ConfidenceTier = "low"
)

// Methodology names how an estimate was produced.
type Methodology string

const (
	MethodHistorical Methodology = "historical"
	MethodHeuristic  Methodology = "heuristic"
)

// HistorySource provides read access to duration aggregates. Aggregate
// returns (nil, nil) when no row exists for the key; absence is not an
// error, it is the trigger for the heuristic path.
type HistorySource interface {
	Aggregate(service models.ServiceType, size models.SizeBucket, hazard models.HazardLevel, crewSize int) (*models.HistoricalDurationSample, error)
}

// SizeInputs are the continuous measurements bucketed before lookup.
type SizeInputs struct {
	HeightFt        float64 `json:"height_ft"`
	TrunkDiameterIn float64 `json:"trunk_diameter_in"`
}

// Estimate is the predictor output. All hour values are rounded to one
// decimal.
type Estimate struct {
	EstimatedHours float64           `json:"estimated_hours"`
	ConfidenceMin  float64           `json:"confidence_min"`
	ConfidenceMax  float64           `json:"confidence_max"`
	ConfidenceTier ConfidenceTier    `json:"confidence_tier"`
	SampleCount    int               `json:"sample_count"`
	Methodology    Methodology       `json:"methodology"`
	SizeBucket     models.SizeBucket `json:"size_bucket"`
}

// Predictor estimates job durations.
type Predictor struct {
	history HistorySource
	cfg     config.DurationHeuristics
}

// NewPredictor creates a predictor over the given history source and
// heuristic tables.
func NewPredictor(history HistorySource, cfg config.DurationHeuristics) *Predictor {
	return &Predictor{history: history, cfg: cfg}
}

// Predict estimates the duration of one job. The historical aggregate wins
// when it holds at least MinSamples completed jobs; otherwise the heuristic
// tables produce a low-confidence estimate.
func (p *Predictor) Predict(service models.ServiceType, size SizeInputs, hazard models.HazardLevel, crewSize int) (Estimate, error) {
	if hazard == "" {
		hazard = models.HazardMedium
	}
	if crewSize < 1 {
		crewSize = 1
	}
	bucket := p.Bucket(size)

	if p.history != nil {
		sample, err := p.history.Aggregate(service, bucket, hazard, crewSize)
		if err != nil {
			return Estimate{}, err
		}
		if sample != nil && sample.SampleCount >= p.cfg.MinSamples {
			mean := round1(sample.MeanHours)
			return Estimate{
				EstimatedHours: mean,
				ConfidenceMin:  round1(math.Max(0, sample.MeanHours-sample.StddevHours)),
				ConfidenceMax:  round1(sample.MeanHours + sample.StddevHours),
				ConfidenceTier: TierHigh,
				SampleCount:    sample.SampleCount,
				Methodology:    MethodHistorical,
				SizeBucket:     bucket,
			}, nil
		}
	}

	hours := p.heuristicHours(service, bucket, hazard, crewSize)
	return Estimate{
		EstimatedHours: round1(hours),
		ConfidenceMin:  round1(hours * p.cfg.RangeLow),
		ConfidenceMax:  round1(hours * p.cfg.RangeHigh),
		ConfidenceTier: TierLow,
		SampleCount:    0,
		Methodology:    MethodHeuristic,
		SizeBucket:     bucket,
	}, nil
}

// Bucket maps continuous size inputs onto the ordinal buckets. The larger
// of the height and trunk-diameter classes wins.
func (p *Predictor) Bucket(size SizeInputs) models.SizeBucket {
	height := ordinal(size.HeightFt, p.cfg.HeightMediumFt, p.cfg.HeightLargeFt, p.cfg.HeightExtraFt)
	diameter := ordinal(size.TrunkDiameterIn, p.cfg.DiameterMediumIn, p.cfg.DiameterLargeIn, p.cfg.DiameterExtraIn)
	if diameter > height {
		height = diameter
	}
	return [4]models.SizeBucket{models.SizeSmall, models.SizeMedium, models.SizeLarge, models.SizeExtraLarge}[height]
}

func (p *Predictor) heuristicHours(service models.ServiceType, bucket models.SizeBucket, hazard models.HazardLevel, crewSize int) float64 {
	base, ok := p.cfg.BaseHours[string(service)]
	if !ok {
		base = p.cfg.FallbackBaseHours
	}

	hazardMult, ok := p.cfg.HazardMultipliers[string(hazard)]
	if !ok {
		hazardMult = 1.0
	}

	crewMult, ok := p.cfg.CrewMultipliers[crewSize]
	if !ok {
		crewMult = p.cfg.CrewMultiplierMin
	}

	sizeFactor, ok := p.cfg.SizeFactors[string(bucket)]
	if !ok {
		sizeFactor = 1.0
	}

	return base * hazardMult * crewMult * sizeFactor
}

func ordinal(v, medium, large, extra float64) int {
	switch {
	case v >= extra:
		return 3
	case v >= large:
		return 2
	case v >= medium:
		return 1
	default:
		return 0
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
