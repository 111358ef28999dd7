package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manas-server/pkg/analysis"
	"manas-server/pkg/emotion"
	"manas-server/pkg/errors"
	"manas-server/pkg/history"
	"manas-server/pkg/metrics"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func init() {
	metrics.Init(testLogger())
}

func newTestEngine(t *testing.T, mock *analysis.MockProvider) *Engine {
	t.Helper()

	opts := Options{CollaboratorTimeout: 500 * time.Millisecond}
	if mock != nil {
		manager := analysis.NewProviderManager(testLogger(), "mock")
		require.NoError(t, manager.RegisterProvider(mock))
		opts.Providers = manager
		opts.ProviderName = "mock"
	}

	return NewEngine(testLogger(), opts)
}

func sadFrame() *emotion.LandmarkFrame {
	eye := func(cx float64) []emotion.Point {
		const opening = 0.022 // EAR 0.22 over a 0.1 wide eye
		return []emotion.Point{
			{X: cx, Y: 0.5},
			{X: cx + 0.03, Y: 0.5 - opening/2},
			{X: cx + 0.07, Y: 0.5 - opening/2},
			{X: cx + 0.1, Y: 0.5},
			{X: cx + 0.07, Y: 0.5 + opening/2},
			{X: cx + 0.03, Y: 0.5 + opening/2},
		}
	}
	brow := func(cx float64) []emotion.Point {
		return []emotion.Point{
			{X: cx, Y: 0.47}, {X: cx + 0.03, Y: 0.47},
			{X: cx + 0.07, Y: 0.47}, {X: cx + 0.1, Y: 0.47},
		}
	}

	// Drooping corners, nearly closed lips.
	const top, bottom, cornerY = 0.6995, 0.7005, 0.73
	mouth := []emotion.Point{
		{X: 0.4, Y: cornerY}, {X: 0.43, Y: top}, {X: 0.45, Y: top},
		{X: 0.5, Y: top}, {X: 0.55, Y: top}, {X: 0.57, Y: top},
		{X: 0.6, Y: cornerY}, {X: 0.57, Y: bottom}, {X: 0.55, Y: bottom},
		{X: 0.5, Y: bottom}, {X: 0.45, Y: bottom}, {X: 0.43, Y: bottom},
	}

	return &emotion.LandmarkFrame{
		LeftEye:      eye(0.3),
		RightEye:     eye(0.6),
		Mouth:        mouth,
		LeftEyebrow:  brow(0.3),
		RightEyebrow: brow(0.6),
	}
}

func TestProcessTurnAllModalities(t *testing.T) {
	mock := analysis.NewMockProvider(testLogger())
	mock.SetResult(&analysis.Result{PrimaryEmotion: "sad", Confidence: 0.7, RiskScore: 0.5}, nil)
	engine := newTestEngine(t, mock)

	result, err := engine.ProcessTurn(context.Background(), TurnInput{
		UserID:    "u-1",
		Text:      "I feel hopeless lately",
		Landmarks: sadFrame(),
		Acoustics: &emotion.AcousticFeatureVector{
			Energy: 0.02, PitchMean: 120, PitchVariation: 10, Tempo: 90,
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.TurnID)
	assert.Len(t, result.Fused.Provenance, 3)
	assert.Equal(t, emotion.EmotionSad, result.Fused.Estimate.PrimaryEmotion)
	assert.NotNil(t, result.FacialMetrics)

	// Keyword score 0.1 (one moderate hit) blends with the AI score 0.5.
	assert.InDelta(t, 0.6*0.1+0.4*0.5, result.TextRisk, 1e-9)
	assert.NotEmpty(t, result.Plan.Protocol)
	assert.Empty(t, result.Degraded)
}

func TestProcessTurnTextOnlyWithoutProvider(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.ProcessTurn(context.Background(), TurnInput{
		Text: "I want to die",
	})
	require.NoError(t, err)

	// No AI provider: no text modality report, keyword-only text risk.
	assert.Empty(t, result.Fused.Provenance)
	assert.Equal(t, emotion.EmotionNeutral, result.Fused.Estimate.PrimaryEmotion)
	assert.InDelta(t, 0.3, result.TextRisk, 1e-9)
	assert.InDelta(t, 0.3*0.3, result.Assessment.CombinedRisk, 1e-9)
}

func TestProcessTurnEmptyInput(t *testing.T) {
	engine := newTestEngine(t, nil)

	_, err := engine.ProcessTurn(context.Background(), TurnInput{UserID: "u-1"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrMissingModality))
}

func TestProcessTurnSlowProviderDegrades(t *testing.T) {
	mock := analysis.NewMockProvider(testLogger())
	mock.SetDelay(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	engine := newTestEngine(t, mock)

	start := time.Now()
	result, err := engine.ProcessTurn(context.Background(), TurnInput{
		Text: "I feel hopeless",
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, result.Degraded, "text:ai_unavailable")
	assert.InDelta(t, 0.1, result.TextRisk, 1e-9)
}

func TestProcessTurnCallerCancellation(t *testing.T) {
	mock := analysis.NewMockProvider(testLogger())
	mock.SetDelay(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	engine := newTestEngine(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := engine.ProcessTurn(ctx, TurnInput{Text: "hello there"})
	require.Error(t, err)
}

func TestProcessTurnFeedsHistory(t *testing.T) {
	mock := analysis.NewMockProvider(testLogger())
	mock.SetResult(&analysis.Result{PrimaryEmotion: "sad", Confidence: 0.7, RiskScore: 0.8}, nil)

	manager := analysis.NewProviderManager(testLogger(), "mock")
	require.NoError(t, manager.RegisterProvider(mock))

	store := history.NewMemoryStore(testLogger())
	engine := NewEngine(testLogger(), Options{
		Providers:           manager,
		ProviderName:        "mock",
		History:             store,
		CollaboratorTimeout: 500 * time.Millisecond,
	})

	first, err := engine.ProcessTurn(context.Background(), TurnInput{
		UserID: "u-9",
		Text:   "I can't go on, everything is too much",
	})
	require.NoError(t, err)
	require.Greater(t, first.Assessment.CombinedRisk, 0.0)

	// The recorded assessment becomes the historical prior of the next
	// turn for the same user.
	require.Eventually(t, func() bool {
		prior, ok, err := store.RiskPrior(context.Background(), "u-9")
		return err == nil && ok && prior > 0
	}, time.Second, 10*time.Millisecond)

	second, err := engine.ProcessTurn(context.Background(), TurnInput{
		UserID: "u-9",
		Text:   "still feeling bad",
	})
	require.NoError(t, err)
	assert.Greater(t, second.HistoricalRisk, 0.0)
}

func TestResultListenerInvoked(t *testing.T) {
	engine := newTestEngine(t, nil)

	var received *TurnResult
	engine.AddResultListener(func(result *TurnResult) {
		received = result
	})

	result, err := engine.ProcessTurn(context.Background(), TurnInput{Text: "doing fine"})
	require.NoError(t, err)

	require.NotNil(t, received)
	assert.Equal(t, result.TurnID, received.TurnID)
}
