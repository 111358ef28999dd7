package emotion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manas-server/pkg/errors"
)

func TestAcousticClassifyTable(t *testing.T) {
	classifier := NewAcousticClassifier(AcousticThresholds{}, testLogger())

	tests := []struct {
		name      string
		features  AcousticFeatureVector
		primary   Emotion
		intensity int
	}{
		{
			name:      "loud varied fast is excited",
			features:  AcousticFeatureVector{Energy: 0.2, PitchVariation: 60, Tempo: 150, PitchMean: 200},
			primary:   EmotionExcited,
			intensity: 7,
		},
		{
			name:      "loud varied slow is angry",
			features:  AcousticFeatureVector{Energy: 0.2, PitchVariation: 60, Tempo: 100, PitchMean: 200},
			primary:   EmotionAngry,
			intensity: 6,
		},
		{
			name:      "quiet low pitch is sad",
			features:  AcousticFeatureVector{Energy: 0.02, PitchVariation: 10, Tempo: 90, PitchMean: 120},
			primary:   EmotionSad,
			intensity: 5,
		},
		{
			name:      "unstable pitch is anxious",
			features:  AcousticFeatureVector{Energy: 0.07, PitchVariation: 90, Tempo: 110, PitchMean: 180},
			primary:   EmotionAnxious,
			intensity: 6,
		},
		{
			name:      "no rule matches falls to neutral",
			features:  AcousticFeatureVector{Energy: 0.07, PitchVariation: 30, Tempo: 110, PitchMean: 180},
			primary:   EmotionNeutral,
			intensity: 4,
		},
		{
			name:      "zero vector is neutral",
			features:  AcousticFeatureVector{PitchMean: 160},
			primary:   EmotionNeutral,
			intensity: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			estimate, err := classifier.Classify(&tt.features)
			require.NoError(t, err)

			assert.Equal(t, tt.primary, estimate.PrimaryEmotion)
			assert.Equal(t, tt.intensity, estimate.Intensity)
			assert.Equal(t, 0.5, estimate.Confidence)
		})
	}
}

func TestAcousticRuleOrder(t *testing.T) {
	classifier := NewAcousticClassifier(AcousticThresholds{}, testLogger())

	// Matches both the angry rule and the anxious rule; the earlier rule
	// must win.
	estimate, err := classifier.Classify(&AcousticFeatureVector{
		Energy:         0.2,
		PitchVariation: 100,
		Tempo:          100,
		PitchMean:      200,
	})
	require.NoError(t, err)

	assert.Equal(t, EmotionAngry, estimate.PrimaryEmotion)
}

func TestAcousticInvalidVector(t *testing.T) {
	classifier := NewAcousticClassifier(AcousticThresholds{}, testLogger())

	invalid := []AcousticFeatureVector{
		{PitchMean: math.NaN()},
		{Energy: math.Inf(1)},
		{Tempo: -10},
		{PitchMean: 160, Timbre: []float64{0.1, math.NaN()}},
	}

	for _, features := range invalid {
		_, err := classifier.Classify(&features)
		require.Error(t, err)
		assert.True(t, errors.IsErrorType(err, errors.ErrInvalidFeatureVector))
	}

	_, err := classifier.Classify(nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidFeatureVector))
}
