package risk

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"manas-server/pkg/emotion"
)

// Category is the discrete risk band of an assessment.
type Category string

const (
	CategoryMinimal  Category = "minimal"
	CategoryLow      Category = "low"
	CategoryModerate Category = "moderate"
	CategoryHigh     Category = "high"
	CategoryCritical Category = "critical"
)

// CombinationWeights are the contributions of the three risk inputs to the
// combined score.
type CombinationWeights struct {
	Base       float64
	Text       float64
	Historical float64
}

// DefaultCombinationWeights returns the production combination.
func DefaultCombinationWeights() CombinationWeights {
	return CombinationWeights{Base: 0.5, Text: 0.3, Historical: 0.2}
}

// Thresholds are the category and flag boundaries over the combined score.
// Categories use >= comparison, highest band first.
type Thresholds struct {
	Critical   float64
	High       float64
	Moderate   float64
	Low        float64
	Monitoring float64
	Referral   float64
	Emergency  float64
}

// DefaultThresholds returns the production boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical:   0.8,
		High:       0.6,
		Moderate:   0.4,
		Low:        0.2,
		Monitoring: 0.3,
		Referral:   0.6,
		Emergency:  0.8,
	}
}

// Input carries everything the assessor combines for one turn.
type Input struct {
	TurnID         string
	UserID         string
	Fused          *emotion.FusedEmotionState
	TextRisk       float64
	HistoricalRisk float64
}

// Assessment is the combined crisis risk verdict for one turn.
type Assessment struct {
	ID                    string    `json:"id"`
	TurnID                string    `json:"turn_id"`
	UserID                string    `json:"user_id,omitempty"`
	CombinedRisk          float64   `json:"combined_risk"`
	Category              Category  `json:"category"`
	ContributingFactors   []string  `json:"contributing_factors"`
	MonitoringRequired    bool      `json:"monitoring_required"`
	ProfessionalReferral  bool      `json:"professional_referral"`
	EmergencyIntervention bool      `json:"emergency_intervention"`
	Timestamp             time.Time `json:"timestamp"`
}

// Assessor combines emotional, textual and historical risk into a banded
// assessment. It never returns an error: a malformed input degrades to
// the fail-safe moderate default so that a crisis signal is never dropped
// by a component failure.
type Assessor struct {
	weights    CombinationWeights
	thresholds Thresholds
	logger     *logrus.Logger
}

// NewAssessor builds an assessor; zero-value weight and threshold structs
// fall back to the defaults.
func NewAssessor(weights CombinationWeights, thresholds Thresholds, logger *logrus.Logger) *Assessor {
	if weights == (CombinationWeights{}) {
		weights = DefaultCombinationWeights()
	}
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Assessor{
		weights:    weights,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Assess combines the inputs into a banded assessment. Combined risk is
// monotonic in every input.
func (a *Assessor) Assess(input Input) Assessment {
	if input.Fused == nil || !finite(input.TextRisk) || !finite(input.HistoricalRisk) {
		a.logger.WithFields(logrus.Fields{
			"turn_id": input.TurnID,
		}).Error("Assessment input unusable, returning fail-safe default")
		return a.failSafe(input)
	}

	baseRisk := clamp(input.Fused.Estimate.RiskHint, 0, 1)
	textRisk := clamp(input.TextRisk, 0, 1)
	historical := clamp(input.HistoricalRisk, 0, 1)

	combined := clamp(
		a.weights.Base*baseRisk+a.weights.Text*textRisk+a.weights.Historical*historical,
		0, 1,
	)

	assessment := Assessment{
		ID:                    uuid.NewString(),
		TurnID:                input.TurnID,
		UserID:                input.UserID,
		CombinedRisk:          combined,
		Category:              a.categorize(combined),
		ContributingFactors:   contributingFactors(baseRisk, input.Fused.Estimate),
		MonitoringRequired:    combined >= a.thresholds.Monitoring,
		ProfessionalReferral:  combined >= a.thresholds.Referral,
		EmergencyIntervention: combined >= a.thresholds.Emergency,
		Timestamp:             time.Now().UTC(),
	}

	entry := a.logger.WithFields(logrus.Fields{
		"turn_id":       input.TurnID,
		"combined_risk": combined,
		"category":      assessment.Category,
	})
	if assessment.Category == CategoryCritical || assessment.Category == CategoryHigh {
		entry.Warn("Elevated crisis risk assessed")
	} else {
		entry.Info("Crisis risk assessed")
	}

	return assessment
}

// failSafe is the moderate default used when inputs are unusable. Failing
// toward moderate keeps monitoring active without triggering an emergency
// response on bad data.
func (a *Assessor) failSafe(input Input) Assessment {
	const defaultRisk = 0.5

	return Assessment{
		ID:                    uuid.NewString(),
		TurnID:                input.TurnID,
		UserID:                input.UserID,
		CombinedRisk:          defaultRisk,
		Category:              a.categorize(defaultRisk),
		ContributingFactors:   []string{"Assessment degraded, defaulting to moderate"},
		MonitoringRequired:    defaultRisk >= a.thresholds.Monitoring,
		ProfessionalReferral:  defaultRisk >= a.thresholds.Referral,
		EmergencyIntervention: defaultRisk >= a.thresholds.Emergency,
		Timestamp:             time.Now().UTC(),
	}
}

func (a *Assessor) categorize(combined float64) Category {
	switch {
	case combined >= a.thresholds.Critical:
		return CategoryCritical
	case combined >= a.thresholds.High:
		return CategoryHigh
	case combined >= a.thresholds.Moderate:
		return CategoryModerate
	case combined >= a.thresholds.Low:
		return CategoryLow
	default:
		return CategoryMinimal
	}
}

func contributingFactors(baseRisk float64, estimate emotion.EmotionEstimate) []string {
	var factors []string

	if baseRisk >= 0.5 {
		factors = append(factors, "High emotional distress")
	}

	switch estimate.PrimaryEmotion {
	case emotion.EmotionSad, emotion.EmotionDepressed, emotion.EmotionHopeless:
		factors = append(factors, "Depressive symptoms")
	case emotion.EmotionAnxious, emotion.EmotionPanicked:
		factors = append(factors, "Anxiety symptoms")
	}

	if estimate.Intensity >= 8 {
		factors = append(factors, "High emotional intensity")
	}

	return factors
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
