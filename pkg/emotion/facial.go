package emotion

import (
	"math"
	"slices"

	"github.com/sirupsen/logrus"

	"manas-server/pkg/errors"
)

// Landmark layout expected by the facial classifier. Eyes follow the six
// point contour convention (index 0 and 3 are the horizontal extremes,
// 1/2 upper lid, 4/5 lower lid). The mouth follows the twelve point outer
// lip contour (index 0 left corner, 6 right corner, 3 top center, 9 bottom
// center). Eyebrows need at least four points each.
const (
	minEyePoints     = 6
	minMouthPoints   = 12
	minEyebrowPoints = 4
)

// FacialMetrics are the geometric measurements derived from one landmark
// frame. They are reported alongside the estimate for observability and
// are never used to reject a frame once the landmark groups are present.
type FacialMetrics struct {
	LeftEAR          float64 `json:"left_ear"`
	RightEAR         float64 `json:"right_ear"`
	EyeAspectRatio   float64 `json:"eye_aspect_ratio"`
	MouthAspectRatio float64 `json:"mouth_aspect_ratio"`
	MouthCurvature   float64 `json:"mouth_curvature"`
	EyebrowElevation float64 `json:"eyebrow_elevation"`
	Asymmetry        float64 `json:"asymmetry"`
}

// ScoreCoefficients is one emotion's linear scoring function over the four
// geometric metrics. Scores are clipped to [0,100] after evaluation.
type ScoreCoefficients struct {
	Bias      float64
	EAR       float64
	MAR       float64
	Curvature float64
	Elevation float64
}

// FacialCoefficients maps each scored emotion to its coefficient set. The
// defaults were hand tuned against recorded landmark sessions; they are
// configuration, not derived values.
type FacialCoefficients map[Emotion]ScoreCoefficients

// DefaultFacialCoefficients returns the tuned per-emotion scoring table.
func DefaultFacialCoefficients() FacialCoefficients {
	return FacialCoefficients{
		EmotionHappy:     {Bias: 0, MAR: 800, Curvature: 3000},
		EmotionSad:       {Bias: 60, EAR: -200, Curvature: -1500},
		EmotionAngry:     {Bias: 45, EAR: -130, Curvature: -1200, Elevation: -800},
		EmotionAnxious:   {Bias: 10, EAR: -100, Elevation: 600},
		EmotionSurprised: {Bias: -60, EAR: 150, MAR: 700, Elevation: 600},
		EmotionNeutral:   {Bias: 20},
	}
}

// FacialClassifier scores emotions from face landmark geometry. It is pure
// and safe for concurrent use.
type FacialClassifier struct {
	coefficients FacialCoefficients
	logger       *logrus.Logger
}

// NewFacialClassifier creates a classifier with the given coefficient
// table, falling back to the defaults when nil.
func NewFacialClassifier(coefficients FacialCoefficients, logger *logrus.Logger) *FacialClassifier {
	if coefficients == nil {
		coefficients = DefaultFacialCoefficients()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &FacialClassifier{
		coefficients: coefficients,
		logger:       logger,
	}
}

// Classify derives the geometric metrics from the frame and scores every
// emotion in the coefficient table. It returns ErrNoFaceDetected when a
// required landmark group is missing or too small.
func (c *FacialClassifier) Classify(frame *LandmarkFrame) (EmotionEstimate, FacialMetrics, error) {
	if frame == nil {
		return EmotionEstimate{}, FacialMetrics{}, errors.NewNoFaceDetected("nil landmark frame")
	}

	if err := validateFrame(frame); err != nil {
		return EmotionEstimate{}, FacialMetrics{}, err
	}

	metrics := deriveMetrics(frame)

	scores := make(map[Emotion]float64, len(c.coefficients))
	for emotion, coef := range c.coefficients {
		raw := coef.Bias +
			coef.EAR*metrics.EyeAspectRatio +
			coef.MAR*metrics.MouthAspectRatio +
			coef.Curvature*metrics.MouthCurvature +
			coef.Elevation*metrics.EyebrowElevation
		scores[emotion] = clamp(raw, 0, 100)
	}

	estimate := estimateFromScores(scores)

	c.logger.WithFields(logrus.Fields{
		"primary":    estimate.PrimaryEmotion,
		"intensity":  estimate.Intensity,
		"confidence": estimate.Confidence,
		"ear":        metrics.EyeAspectRatio,
		"mar":        metrics.MouthAspectRatio,
		"curvature":  metrics.MouthCurvature,
		"asymmetry":  metrics.Asymmetry,
	}).Debug("Facial classification complete")

	return estimate, metrics, nil
}

func validateFrame(frame *LandmarkFrame) error {
	switch {
	case len(frame.LeftEye) < minEyePoints:
		return errors.NewNoFaceDetected("left eye landmarks missing or incomplete")
	case len(frame.RightEye) < minEyePoints:
		return errors.NewNoFaceDetected("right eye landmarks missing or incomplete")
	case len(frame.Mouth) < minMouthPoints:
		return errors.NewNoFaceDetected("mouth landmarks missing or incomplete")
	case len(frame.LeftEyebrow) < minEyebrowPoints:
		return errors.NewNoFaceDetected("left eyebrow landmarks missing or incomplete")
	case len(frame.RightEyebrow) < minEyebrowPoints:
		return errors.NewNoFaceDetected("right eyebrow landmarks missing or incomplete")
	}
	return nil
}

func deriveMetrics(frame *LandmarkFrame) FacialMetrics {
	leftEAR := eyeAspectRatio(frame.LeftEye)
	rightEAR := eyeAspectRatio(frame.RightEye)

	return FacialMetrics{
		LeftEAR:          leftEAR,
		RightEAR:         rightEAR,
		EyeAspectRatio:   (leftEAR + rightEAR) / 2,
		MouthAspectRatio: mouthAspectRatio(frame.Mouth),
		MouthCurvature:   mouthCurvature(frame.Mouth),
		EyebrowElevation: eyebrowElevation(frame),
		Asymmetry:        math.Abs(leftEAR - rightEAR),
	}
}

// eyeAspectRatio is the mean of the two vertical lid distances over the
// horizontal eye width, clamped to [0,1]. A degenerate (zero width) eye
// yields 0, which reads as fully closed.
func eyeAspectRatio(eye []Point) float64 {
	horizontal := distance(eye[0], eye[3])
	if horizontal == 0 {
		return 0
	}

	vertical := (distance(eye[1], eye[5]) + distance(eye[2], eye[4])) / 2
	return clamp(vertical/horizontal, 0, 1)
}

// mouthAspectRatio is the mean vertical lip opening over the mouth width.
func mouthAspectRatio(mouth []Point) float64 {
	horizontal := distance(mouth[0], mouth[6])
	if horizontal == 0 {
		return 0
	}

	vertical := (distance(mouth[2], mouth[10]) +
		distance(mouth[3], mouth[9]) +
		distance(mouth[4], mouth[8])) / 3
	return clamp(vertical/horizontal, 0, 2)
}

// mouthCurvature is positive when the mouth corners sit above the lip
// center (a smile) and negative when they droop below it. Image
// coordinates grow downward, so the center minus corner order keeps the
// sign intuitive.
func mouthCurvature(mouth []Point) float64 {
	centerY := (mouth[3].Y + mouth[9].Y) / 2
	cornersY := (mouth[0].Y + mouth[6].Y) / 2
	return centerY - cornersY
}

// eyebrowElevation is the vertical offset between the eye centroids and
// the eyebrow centroids. Raised brows increase the value.
func eyebrowElevation(frame *LandmarkFrame) float64 {
	eyeY := (centroidY(frame.LeftEye) + centroidY(frame.RightEye)) / 2
	browY := (centroidY(frame.LeftEyebrow) + centroidY(frame.RightEyebrow)) / 2
	return eyeY - browY
}

func centroidY(points []Point) float64 {
	var sum float64
	for _, p := range points {
		sum += p.Y
	}
	return sum / float64(len(points))
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// scorePriority fixes the argmax order so tied scores resolve the same
// way on every call. Frames with extreme metrics can clip several scores
// at 100; distress emotions outrank positive ones there, so a saturated
// frame never reads happier than it is.
var scorePriority = []Emotion{
	EmotionSad,
	EmotionAngry,
	EmotionAnxious,
	EmotionSurprised,
	EmotionHappy,
	EmotionNeutral,
}

// scoreRanking lists the scored emotions in tie-break order: the fixed
// priority first, then any custom table entries sorted by name.
func scoreRanking(scores map[Emotion]float64) []Emotion {
	ranked := make([]Emotion, 0, len(scores))
	seen := make(map[Emotion]bool, len(scores))
	for _, emotion := range scorePriority {
		if _, ok := scores[emotion]; ok {
			ranked = append(ranked, emotion)
			seen[emotion] = true
		}
	}
	if len(ranked) == len(scores) {
		return ranked
	}

	extras := make([]Emotion, 0, len(scores)-len(ranked))
	for emotion := range scores {
		if !seen[emotion] {
			extras = append(extras, emotion)
		}
	}
	slices.Sort(extras)

	return append(ranked, extras...)
}

// estimateFromScores picks the argmax score as the primary emotion and
// derives intensity and confidence from the score distribution. Ties go
// to the earlier entry in scoreRanking. An all zero distribution degrades
// to a low-confidence neutral instead of failing.
func estimateFromScores(scores map[Emotion]float64) EmotionEstimate {
	primary := EmotionNeutral
	var top, second float64
	for _, emotion := range scoreRanking(scores) {
		score := scores[emotion]
		if score > top {
			second = top
			top = score
			primary = emotion
		} else if score > second {
			second = score
		}
	}

	if top == 0 {
		return EmotionEstimate{
			PrimaryEmotion: EmotionNeutral,
			Intensity:      3,
			Confidence:     0.4,
			Breakdown:      scores,
		}
	}

	return EmotionEstimate{
		PrimaryEmotion: primary,
		Intensity:      clampIntensity(int(math.Round(top / 10))),
		Confidence:     clamp((top-second)/100, 0.3, 0.9),
		Breakdown:      scores,
	}
}
