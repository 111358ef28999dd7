package emotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(modality Modality, emotion Emotion, confidence, risk float64, intensity int) ModalityReport {
	return ModalityReport{
		Modality: modality,
		Estimate: EmotionEstimate{
			PrimaryEmotion: emotion,
			Intensity:      intensity,
			Confidence:     confidence,
			RiskHint:       risk,
		},
		Method:    "test",
		Timestamp: time.Now(),
	}
}

func TestFuseSingleTextReport(t *testing.T) {
	fuser := NewFuser(nil, testLogger())

	state := fuser.Fuse([]ModalityReport{
		report(ModalityText, EmotionSad, 0.6, 0.5, 5),
	})

	// One modality keeps its nominal weight, so normalization against the
	// used weight sum returns the report's own confidence and risk.
	assert.Equal(t, EmotionSad, state.Estimate.PrimaryEmotion)
	assert.InDelta(t, 0.6, state.Estimate.Confidence, 1e-9)
	assert.InDelta(t, 0.5, state.Estimate.RiskHint, 1e-9)
	assert.Equal(t, 0.4, state.WeightsUsed[ModalityText])
}

func TestFuseThreeModalities(t *testing.T) {
	fuser := NewFuser(nil, testLogger())

	state := fuser.Fuse([]ModalityReport{
		report(ModalityText, EmotionSad, 0.6, 0.5, 5),
		report(ModalityVisual, EmotionSad, 0.5, 0.4, 6),
		report(ModalityAudio, EmotionNeutral, 0.5, 0.1, 4),
	})

	assert.Equal(t, EmotionSad, state.Estimate.PrimaryEmotion)
	assert.InDelta(t, 0.365, state.Estimate.RiskHint, 1e-9)
	assert.InDelta(t, 0.54, state.Estimate.Confidence, 1e-9)
	assert.Len(t, state.Provenance, 3)
}

func TestFuseDisagreeingModalities(t *testing.T) {
	fuser := NewFuser(nil, testLogger())

	// Visual outvotes audio even at equal confidence because its weight
	// is higher.
	state := fuser.Fuse([]ModalityReport{
		report(ModalityVisual, EmotionHappy, 0.5, 0, 7),
		report(ModalityAudio, EmotionSad, 0.5, 0.2, 5),
	})

	assert.Equal(t, EmotionHappy, state.Estimate.PrimaryEmotion)
}

func TestFuseEmpty(t *testing.T) {
	fuser := NewFuser(nil, testLogger())

	state := fuser.Fuse(nil)

	assert.Equal(t, EmotionNeutral, state.Estimate.PrimaryEmotion)
	assert.Equal(t, 0.0, state.Estimate.Confidence)
	assert.Equal(t, 0.0, state.Estimate.RiskHint)
	assert.Empty(t, state.Provenance)
}

func TestFuseUnknownModalityFallbackWeight(t *testing.T) {
	fuser := NewFuser(nil, testLogger())

	state := fuser.Fuse([]ModalityReport{
		report(Modality("gesture"), EmotionAngry, 0.8, 0.3, 6),
	})

	require.Contains(t, state.WeightsUsed, Modality("gesture"))
	assert.Equal(t, fallbackModalityWeight, state.WeightsUsed[Modality("gesture")])
	assert.Equal(t, EmotionAngry, state.Estimate.PrimaryEmotion)
}

func TestFuseBreakdownSharesSumToHundred(t *testing.T) {
	fuser := NewFuser(nil, testLogger())

	state := fuser.Fuse([]ModalityReport{
		report(ModalityText, EmotionSad, 0.6, 0.5, 5),
		report(ModalityVisual, EmotionHappy, 0.5, 0, 7),
		report(ModalityAudio, EmotionNeutral, 0.5, 0.1, 4),
	})

	var total float64
	for _, share := range state.Estimate.Breakdown {
		total += share
	}
	assert.InDelta(t, 100, total, 1e-6)
}

func TestFusedIntensityFollowsWinningReports(t *testing.T) {
	fuser := NewFuser(nil, testLogger())

	state := fuser.Fuse([]ModalityReport{
		report(ModalityText, EmotionSad, 0.6, 0.5, 8),
		report(ModalityVisual, EmotionSad, 0.6, 0.4, 6),
		report(ModalityAudio, EmotionNeutral, 0.5, 0, 4),
	})

	assert.Equal(t, EmotionSad, state.Estimate.PrimaryEmotion)
	assert.Equal(t, 7, state.Estimate.Intensity)
}
