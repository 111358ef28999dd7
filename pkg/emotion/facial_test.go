package emotion

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manas-server/pkg/errors"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// makeEye builds a six point eye contour centered at (cx, 0.5) with the
// requested aspect ratio over a fixed 0.1 width.
func makeEye(cx, ear float64) []Point {
	const width = 0.1
	opening := ear * width

	return []Point{
		{X: cx, Y: 0.5},
		{X: cx + 0.03, Y: 0.5 - opening/2},
		{X: cx + 0.07, Y: 0.5 - opening/2},
		{X: cx + width, Y: 0.5},
		{X: cx + 0.07, Y: 0.5 + opening/2},
		{X: cx + 0.03, Y: 0.5 + opening/2},
	}
}

func makeMouth(mar, curvature float64) []Point {
	const (
		width   = 0.2
		centerY = 0.7
	)
	opening := mar * width
	cornerY := centerY - curvature

	top := centerY - opening/2
	bottom := centerY + opening/2

	return []Point{
		{X: 0.4, Y: cornerY},  // 0 left corner
		{X: 0.43, Y: top},     // 1
		{X: 0.45, Y: top},     // 2
		{X: 0.5, Y: top},      // 3 top center
		{X: 0.55, Y: top},     // 4
		{X: 0.57, Y: top},     // 5
		{X: 0.6, Y: cornerY},  // 6 right corner
		{X: 0.57, Y: bottom},  // 7
		{X: 0.55, Y: bottom},  // 8
		{X: 0.5, Y: bottom},   // 9 bottom center
		{X: 0.45, Y: bottom},  // 10
		{X: 0.43, Y: bottom},  // 11
	}
}

func makeEyebrow(cx, elevation float64) []Point {
	y := 0.5 - elevation
	return []Point{
		{X: cx, Y: y},
		{X: cx + 0.03, Y: y},
		{X: cx + 0.07, Y: y},
		{X: cx + 0.1, Y: y},
	}
}

func makeFrame(ear, mar, curvature, elevation float64) *LandmarkFrame {
	return &LandmarkFrame{
		LeftEye:      makeEye(0.3, ear),
		RightEye:     makeEye(0.6, ear),
		Mouth:        makeMouth(mar, curvature),
		LeftEyebrow:  makeEyebrow(0.3, elevation),
		RightEyebrow: makeEyebrow(0.6, elevation),
	}
}

func TestFacialClassifyHappy(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	estimate, metrics, err := classifier.Classify(makeFrame(0.3, 0.04, 0.03, 0.04))
	require.NoError(t, err)

	assert.Equal(t, EmotionHappy, estimate.PrimaryEmotion)
	assert.Equal(t, 10, estimate.Intensity)
	assert.InDelta(t, 0.03, metrics.MouthCurvature, 1e-9)
	assert.Greater(t, estimate.Confidence, 0.3)
}

func TestFacialClassifySad(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	estimate, _, err := classifier.Classify(makeFrame(0.22, 0.005, -0.03, 0.03))
	require.NoError(t, err)

	assert.Equal(t, EmotionSad, estimate.PrimaryEmotion)
	assert.Equal(t, 6, estimate.Intensity)
}

func TestFacialClassifySurprised(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	estimate, _, err := classifier.Classify(makeFrame(0.42, 0.06, 0, 0.08))
	require.NoError(t, err)

	assert.Equal(t, EmotionSurprised, estimate.PrimaryEmotion)
}

func TestFacialClassifyAnxious(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	estimate, _, err := classifier.Classify(makeFrame(0.24, 0.01, 0, 0.07))
	require.NoError(t, err)

	assert.Equal(t, EmotionAnxious, estimate.PrimaryEmotion)
}

func TestFacialClassifyNeutral(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	estimate, _, err := classifier.Classify(makeFrame(0.3, 0.01, 0, 0.04))
	require.NoError(t, err)

	assert.Equal(t, EmotionNeutral, estimate.PrimaryEmotion)
	assert.Equal(t, 0.3, estimate.Confidence)
}

func TestFacialClassifyMissingLandmarks(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	frame := makeFrame(0.3, 0.01, 0, 0.04)
	frame.Mouth = frame.Mouth[:4]

	_, _, err := classifier.Classify(frame)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrNoFaceDetected))
}

func TestFacialClassifyNilFrame(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	_, _, err := classifier.Classify(nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrNoFaceDetected))
}

func TestFacialAsymmetryReported(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	frame := makeFrame(0.3, 0.01, 0, 0.04)
	frame.RightEye = makeEye(0.6, 0.2)

	estimate, metrics, err := classifier.Classify(frame)
	require.NoError(t, err)

	// Asymmetry is reported for observability but never blocks a result.
	assert.InDelta(t, 0.1, metrics.Asymmetry, 1e-9)
	assert.NotEmpty(t, estimate.PrimaryEmotion)
}

func TestFacialConfidenceBounds(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	frames := []*LandmarkFrame{
		makeFrame(0.3, 0.04, 0.05, 0.04),
		makeFrame(0.2, 0.005, -0.04, 0.02),
		makeFrame(0.45, 0.08, 0, 0.09),
		makeFrame(0.31, 0.012, 0.001, 0.041),
	}

	for _, frame := range frames {
		estimate, _, err := classifier.Classify(frame)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, estimate.Confidence, 0.3)
		assert.LessOrEqual(t, estimate.Confidence, 0.9)
		assert.GreaterOrEqual(t, estimate.Intensity, 1)
		assert.LessOrEqual(t, estimate.Intensity, 10)
	}
}

func TestFacialSaturatedScoresDeterministic(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	// An open-mouth frown clips the sad, surprised and happy scores at
	// 100 simultaneously. The tie must resolve identically on every call
	// and must resolve toward the distress emotion.
	frame := makeFrame(0.1, 0.5, -0.05, 0.03)

	first, _, err := classifier.Classify(frame)
	require.NoError(t, err)
	assert.Equal(t, EmotionSad, first.PrimaryEmotion)

	for i := 0; i < 200; i++ {
		estimate, _, err := classifier.Classify(frame)
		require.NoError(t, err)
		assert.Equal(t, first.PrimaryEmotion, estimate.PrimaryEmotion)
		assert.Equal(t, first.Intensity, estimate.Intensity)
		assert.Equal(t, first.Confidence, estimate.Confidence)
	}
}

func TestFacialBreakdownClipped(t *testing.T) {
	classifier := NewFacialClassifier(nil, testLogger())

	estimate, _, err := classifier.Classify(makeFrame(0.3, 0.1, 0.06, 0.04))
	require.NoError(t, err)

	for emotion, score := range estimate.Breakdown {
		assert.GreaterOrEqualf(t, score, 0.0, "score for %s below range", emotion)
		assert.LessOrEqualf(t, score, 100.0, "score for %s above range", emotion)
	}
}
