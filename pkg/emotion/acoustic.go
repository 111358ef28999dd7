package emotion

import (
	"math"

	"github.com/sirupsen/logrus"

	"manas-server/pkg/errors"
)

// AcousticThresholds are the decision boundaries of the acoustic heuristic
// classifier. The table is evaluated in order; the first matching rule wins.
type AcousticThresholds struct {
	HighEnergy            float64
	HighPitchVariation    float64
	FastTempo             float64
	LowEnergy             float64
	LowPitchMean          float64
	AnxiousPitchVariation float64
}

// DefaultAcousticThresholds returns the tuned rule boundaries.
func DefaultAcousticThresholds() AcousticThresholds {
	return AcousticThresholds{
		HighEnergy:            0.1,
		HighPitchVariation:    50,
		FastTempo:             140,
		LowEnergy:             0.05,
		LowPitchMean:          150,
		AnxiousPitchVariation: 80,
	}
}

// acousticConfidence is fixed for every rule. The heuristic table is too
// coarse to justify a per-rule confidence.
const acousticConfidence = 0.5

// AcousticClassifier maps a prosodic feature vector to an emotion estimate
// through an ordered rule table. It is pure and safe for concurrent use.
type AcousticClassifier struct {
	thresholds AcousticThresholds
	logger     *logrus.Logger
}

// NewAcousticClassifier creates a classifier with the given thresholds. A
// zero-value thresholds struct falls back to the defaults.
func NewAcousticClassifier(thresholds AcousticThresholds, logger *logrus.Logger) *AcousticClassifier {
	if thresholds == (AcousticThresholds{}) {
		thresholds = DefaultAcousticThresholds()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &AcousticClassifier{
		thresholds: thresholds,
		logger:     logger,
	}
}

// Classify runs the decision table over the feature vector. Vectors with
// NaN, infinite or negative features are rejected with
// ErrInvalidFeatureVector; a valid vector always classifies, falling
// through to neutral when no rule matches.
func (c *AcousticClassifier) Classify(features *AcousticFeatureVector) (EmotionEstimate, error) {
	if features == nil {
		return EmotionEstimate{}, errors.NewInvalidFeatureVector("nil feature vector")
	}

	if err := validateFeatures(features); err != nil {
		return EmotionEstimate{}, err
	}

	t := c.thresholds

	var primary Emotion
	var intensity int
	switch {
	case features.Energy > t.HighEnergy && features.PitchVariation > t.HighPitchVariation:
		if features.Tempo > t.FastTempo {
			primary, intensity = EmotionExcited, 7
		} else {
			primary, intensity = EmotionAngry, 6
		}
	case features.Energy < t.LowEnergy && features.PitchMean < t.LowPitchMean:
		primary, intensity = EmotionSad, 5
	case features.PitchVariation > t.AnxiousPitchVariation:
		primary, intensity = EmotionAnxious, 6
	default:
		primary, intensity = EmotionNeutral, 4
	}

	c.logger.WithFields(logrus.Fields{
		"primary":         primary,
		"intensity":       intensity,
		"energy":          features.Energy,
		"pitch_mean":      features.PitchMean,
		"pitch_variation": features.PitchVariation,
		"tempo":           features.Tempo,
	}).Debug("Acoustic classification complete")

	return EmotionEstimate{
		PrimaryEmotion: primary,
		Intensity:      intensity,
		Confidence:     acousticConfidence,
	}, nil
}

func validateFeatures(f *AcousticFeatureVector) error {
	checks := []struct {
		name  string
		value float64
	}{
		{"pitch_mean", f.PitchMean},
		{"pitch_variation", f.PitchVariation},
		{"energy", f.Energy},
		{"tempo", f.Tempo},
		{"spectral_centroid", f.SpectralCentroid},
		{"zero_crossing_rate", f.ZeroCrossingRate},
	}

	for _, check := range checks {
		if math.IsNaN(check.value) || math.IsInf(check.value, 0) {
			return errors.NewInvalidFeatureVector("non-finite feature", map[string]interface{}{
				"feature": check.name,
			})
		}
		if check.value < 0 {
			return errors.NewInvalidFeatureVector("negative feature", map[string]interface{}{
				"feature": check.name,
				"value":   check.value,
			})
		}
	}

	for i, coef := range f.Timbre {
		if math.IsNaN(coef) || math.IsInf(coef, 0) {
			return errors.NewInvalidFeatureVector("non-finite timbre coefficient", map[string]interface{}{
				"index": i,
			})
		}
	}

	return nil
}
