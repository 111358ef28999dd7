package emotion

import (
	"math"

	"github.com/sirupsen/logrus"
)

// ModalityWeights holds the fixed per-modality fusion weights. The weights
// are intentionally NOT renormalized when a modality is absent: a turn
// carrying only one channel keeps that channel's nominal weight, which
// keeps partial-signal turns conservative.
type ModalityWeights map[Modality]float64

// DefaultModalityWeights returns the production weighting. Text carries
// the most signal for risk language, visual second, audio last.
func DefaultModalityWeights() ModalityWeights {
	return ModalityWeights{
		ModalityText:   0.4,
		ModalityVisual: 0.35,
		ModalityAudio:  0.25,
	}
}

// fallbackModalityWeight applies to reports from a modality missing from
// the weight table.
const fallbackModalityWeight = 0.33

// Fuser combines per-modality emotion reports into one fused state.
type Fuser struct {
	weights ModalityWeights
	logger  *logrus.Logger
}

// NewFuser creates a fuser with the given weights, falling back to the
// defaults when nil.
func NewFuser(weights ModalityWeights, logger *logrus.Logger) *Fuser {
	if weights == nil {
		weights = DefaultModalityWeights()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Fuser{
		weights: weights,
		logger:  logger,
	}
}

// Fuse tallies weight x confidence per primary emotion across the reports
// and picks the highest tally as the fused primary. Fused confidence and
// risk are the weight-normalized averages over the modalities actually
// present. An empty report list fuses to a zero-confidence neutral.
func (f *Fuser) Fuse(reports []ModalityReport) FusedEmotionState {
	if len(reports) == 0 {
		return FusedEmotionState{
			Estimate: EmotionEstimate{
				PrimaryEmotion: EmotionNeutral,
				Intensity:      3,
				Confidence:     0,
				RiskHint:       0,
			},
			Provenance:  nil,
			WeightsUsed: map[Modality]float64{},
		}
	}

	tally := make(map[Emotion]float64)
	weightsUsed := make(map[Modality]float64, len(reports))

	var weightSum, confidenceSum, riskSum float64
	for _, report := range reports {
		weight, ok := f.weights[report.Modality]
		if !ok {
			weight = fallbackModalityWeight
		}
		weightsUsed[report.Modality] = weight

		tally[report.Estimate.PrimaryEmotion] += weight * report.Estimate.Confidence
		weightSum += weight
		confidenceSum += weight * report.Estimate.Confidence
		riskSum += weight * report.Estimate.RiskHint
	}

	primary := EmotionNeutral
	var top float64
	var tallySum float64
	for emotion, score := range tally {
		tallySum += score
		if score > top {
			top = score
			primary = emotion
		}
	}

	breakdown := make(map[Emotion]float64, len(tally))
	if tallySum > 0 {
		for emotion, score := range tally {
			breakdown[emotion] = clamp(score/tallySum*100, 0, 100)
		}
	}

	estimate := EmotionEstimate{
		PrimaryEmotion: primary,
		Intensity:      fusedIntensity(reports, primary),
		Confidence:     clamp(confidenceSum/weightSum, 0, 1),
		Breakdown:      breakdown,
		RiskHint:       clamp(riskSum/weightSum, 0, 1),
	}

	f.logger.WithFields(logrus.Fields{
		"primary":    estimate.PrimaryEmotion,
		"confidence": estimate.Confidence,
		"risk_hint":  estimate.RiskHint,
		"modalities": len(reports),
	}).Debug("Fused modality reports")

	return FusedEmotionState{
		Estimate:    estimate,
		Provenance:  reports,
		WeightsUsed: weightsUsed,
	}
}

// fusedIntensity averages the intensity of the reports that agree with the
// winning emotion, weighted by confidence.
func fusedIntensity(reports []ModalityReport, primary Emotion) int {
	var weighted, confidenceSum float64
	for _, report := range reports {
		if report.Estimate.PrimaryEmotion != primary {
			continue
		}
		weighted += float64(report.Estimate.Intensity) * report.Estimate.Confidence
		confidenceSum += report.Estimate.Confidence
	}

	if confidenceSum == 0 {
		return 3
	}
	return clampIntensity(int(math.Round(weighted / confidenceSum)))
}
