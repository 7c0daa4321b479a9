package duration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborworks/crew-scheduler-go/pkg/config"
	"github.com/arborworks/crew-scheduler-go/pkg/models"
)

// fakeHistory serves canned aggregates keyed the way the real store keys
// them.
type fakeHistory struct {
	samples map[string]*models.HistoricalDurationSample
}

func (f *fakeHistory) Aggregate(service models.ServiceType, size models.SizeBucket, hazard models.HazardLevel, crewSize int) (*models.HistoricalDurationSample, error) {
	if f.samples == nil {
		return nil, nil
	}
	return f.samples[key(service, size, hazard, crewSize)], nil
}

func key(service models.ServiceType, size models.SizeBucket, hazard models.HazardLevel, crewSize int) string {
	return string(service) + "/" + string(size) + "/" + string(hazard) + "/" + string(rune('0'+crewSize))
}

func newPredictor(history HistorySource) *Predictor {
	return NewPredictor(history, config.Default().Duration)
}

func TestPredictUsesHistoricalAggregate(t *testing.T) {
	history := &fakeHistory{samples: map[string]*models.HistoricalDurationSample{
		key(models.ServiceRemoval, models.SizeLarge, models.HazardHigh, 3): {
			SampleCount: 12,
			MeanHours:   7.25,
			StddevHours: 1.5,
		},
	}}
	p := newPredictor(history)

	est, err := p.Predict(models.ServiceRemoval, SizeInputs{HeightFt: 65}, models.HazardHigh, 3)
	require.NoError(t, err)

	assert.Equal(t, MethodHistorical, est.Methodology)
	assert.Equal(t, TierHigh, est.ConfidenceTier)
	assert.Equal(t, 12, est.SampleCount)
	// Mean rounded to one decimal; range is mean +/- stddev.
	assert.Equal(t, 7.3, est.EstimatedHours)
	assert.Equal(t, 5.8, est.ConfidenceMin)
	assert.Equal(t, 8.8, est.ConfidenceMax)
}

func TestPredictFallsBackBelowMinSamples(t *testing.T) {
	history := &fakeHistory{samples: map[string]*models.HistoricalDurationSample{
		key(models.ServiceRemoval, models.SizeLarge, models.HazardHigh, 3): {
			SampleCount: 2,
			MeanHours:   7.0,
			StddevHours: 1.0,
		},
	}}
	p := newPredictor(history)

	est, err := p.Predict(models.ServiceRemoval, SizeInputs{HeightFt: 65}, models.HazardHigh, 3)
	require.NoError(t, err)
	assert.Equal(t, MethodHeuristic, est.Methodology)
	assert.Equal(t, TierLow, est.ConfidenceTier)
	assert.Equal(t, 0, est.SampleCount)
}

func TestPredictHeuristicWithNoHistory(t *testing.T) {
	p := newPredictor(&fakeHistory{})

	// removal base 6.0 x high 1.4 x crew-of-3 1.0 x large 1.3 = 10.92
	est, err := p.Predict(models.ServiceRemoval, SizeInputs{HeightFt: 65}, models.HazardHigh, 3)
	require.NoError(t, err)

	assert.Equal(t, MethodHeuristic, est.Methodology)
	assert.Equal(t, TierLow, est.ConfidenceTier)
	assert.Equal(t, 10.9, est.EstimatedHours)
	assert.InDelta(t, 10.92*0.7, est.ConfidenceMin, 0.06)
	assert.InDelta(t, 10.92*1.5, est.ConfidenceMax, 0.06)
	assert.Equal(t, models.SizeLarge, est.SizeBucket)
}

func TestPredictCrewSizeScaling(t *testing.T) {
	p := newPredictor(&fakeHistory{})

	solo, err := p.Predict(models.ServiceTrimming, SizeInputs{HeightFt: 40}, models.HazardMedium, 1)
	require.NoError(t, err)
	pair, err := p.Predict(models.ServiceTrimming, SizeInputs{HeightFt: 40}, models.HazardMedium, 2)
	require.NoError(t, err)
	full, err := p.Predict(models.ServiceTrimming, SizeInputs{HeightFt: 40}, models.HazardMedium, 3)
	require.NoError(t, err)
	big, err := p.Predict(models.ServiceTrimming, SizeInputs{HeightFt: 40}, models.HazardMedium, 6)
	require.NoError(t, err)

	// Fewer crew take longer; returns diminish above three.
	assert.Greater(t, solo.EstimatedHours, pair.EstimatedHours)
	assert.Greater(t, pair.EstimatedHours, full.EstimatedHours)
	assert.Less(t, big.EstimatedHours, full.EstimatedHours)
	assert.Equal(t, 3.4, big.EstimatedHours) // 4.0 x 1.0 x 0.85 x 1.0
}

func TestPredictHazardScaling(t *testing.T) {
	p := newPredictor(&fakeHistory{})

	low, err := p.Predict(models.ServiceTrimming, SizeInputs{HeightFt: 40}, models.HazardLow, 3)
	require.NoError(t, err)
	critical, err := p.Predict(models.ServiceTrimming, SizeInputs{HeightFt: 40}, models.HazardCritical, 3)
	require.NoError(t, err)

	assert.Equal(t, 3.6, low.EstimatedHours)      // 4.0 x 0.9
	assert.Equal(t, 7.2, critical.EstimatedHours) // 4.0 x 1.8
}

func TestPredictUnknownServiceUsesFallbackBase(t *testing.T) {
	p := newPredictor(&fakeHistory{})

	est, err := p.Predict("cabling", SizeInputs{HeightFt: 40}, models.HazardMedium, 3)
	require.NoError(t, err)
	assert.Equal(t, 4.0, est.EstimatedHours)
}

func TestBucketTakesLargerOfHeightAndDiameter(t *testing.T) {
	p := newPredictor(&fakeHistory{})

	assert.Equal(t, models.SizeSmall, p.Bucket(SizeInputs{HeightFt: 20, TrunkDiameterIn: 6}))
	assert.Equal(t, models.SizeMedium, p.Bucket(SizeInputs{HeightFt: 35, TrunkDiameterIn: 6}))
	// Modest height but a thick trunk still escalates the bucket.
	assert.Equal(t, models.SizeLarge, p.Bucket(SizeInputs{HeightFt: 35, TrunkDiameterIn: 28}))
	assert.Equal(t, models.SizeExtraLarge, p.Bucket(SizeInputs{HeightFt: 85, TrunkDiameterIn: 10}))
}

func TestPredictWithoutHistorySource(t *testing.T) {
	p := NewPredictor(nil, config.Default().Duration)

	est, err := p.Predict(models.ServiceAssessment, SizeInputs{}, models.HazardLow, 1)
	require.NoError(t, err)
	assert.Equal(t, MethodHeuristic, est.Methodology)
}
