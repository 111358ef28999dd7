package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manas-server/pkg/emotion"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestLoadDefaults(t *testing.T) {
	config, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, 8080, config.HTTP.Port)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, 0.4, config.Engine.ModalityWeights[emotion.ModalityText])
	assert.Equal(t, 0.35, config.Engine.ModalityWeights[emotion.ModalityVisual])
	assert.Equal(t, 0.25, config.Engine.ModalityWeights[emotion.ModalityAudio])
	assert.Equal(t, 0.8, config.Engine.RiskThresholds.Critical)
	assert.Equal(t, 2*time.Second, config.Engine.CollaboratorTimeout)
	assert.False(t, config.Analysis.Enabled)
	assert.False(t, config.Messaging.Enabled)
	assert.Equal(t, "memory", config.History.Backend)
	assert.Equal(t, emotion.DefaultFacialCoefficients(), config.Engine.FacialCoefficients)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("FUSION_TEXT_WEIGHT", "0.5")
	t.Setenv("COLLABORATOR_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, 9090, config.HTTP.Port)
	assert.Equal(t, 0.5, config.Engine.ModalityWeights[emotion.ModalityText])
	assert.Equal(t, 750*time.Millisecond, config.Engine.CollaboratorTimeout)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("FUSION_TEXT_WEIGHT", "bogus")

	config, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, 8080, config.HTTP.Port)
	assert.Equal(t, 0.4, config.Engine.ModalityWeights[emotion.ModalityText])
}

func TestValidateRejectsBadPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "70000")

	_, err := Load(testLogger())
	assert.Error(t, err)
}

func TestValidateRejectsOutOfRangeWeight(t *testing.T) {
	t.Setenv("RISK_WEIGHT_BASE", "1.5")

	_, err := Load(testLogger())
	assert.Error(t, err)
}

func TestValidateRejectsUnorderedThresholds(t *testing.T) {
	t.Setenv("RISK_THRESHOLD_CRITICAL", "0.5")
	t.Setenv("RISK_THRESHOLD_HIGH", "0.6")

	_, err := Load(testLogger())
	assert.Error(t, err)
}

func TestValidateRequiresAnalysisURL(t *testing.T) {
	t.Setenv("ANALYSIS_ENABLED", "true")

	_, err := Load(testLogger())
	assert.Error(t, err)
}

func TestFacialCoefficientOverrides(t *testing.T) {
	t.Setenv("FACIAL_HAPPY_MAR", "500")
	t.Setenv("FACIAL_SAD_BIAS", "70")

	config, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, 500.0, config.Engine.FacialCoefficients[emotion.EmotionHappy].MAR)
	assert.Equal(t, 70.0, config.Engine.FacialCoefficients[emotion.EmotionSad].Bias)

	// Untouched terms keep their defaults.
	defaults := emotion.DefaultFacialCoefficients()
	assert.Equal(t, defaults[emotion.EmotionHappy].Curvature, config.Engine.FacialCoefficients[emotion.EmotionHappy].Curvature)
	assert.Equal(t, defaults[emotion.EmotionAngry], config.Engine.FacialCoefficients[emotion.EmotionAngry])
}

func TestValidateRejectsUnknownHistoryBackend(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "redis")

	_, err := Load(testLogger())
	assert.Error(t, err)
}

func TestValidateChecksHistoryDatabaseSettings(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "mysql")
	t.Setenv("HISTORY_DB_PORT", "70000")

	_, err := Load(testLogger())
	assert.Error(t, err)
}

func TestApplyLogging(t *testing.T) {
	logger := logrus.New()

	config := &Config{
		Logging: LoggingConfig{Level: "warn", Format: "json"},
	}
	config.ApplyLogging(logger)

	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}
