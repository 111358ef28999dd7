package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"manas-server/pkg/emotion"
	"manas-server/pkg/history"
	"manas-server/pkg/risk"
)

// Config is the full engine configuration, loaded from environment
// variables with optional .env file support.
type Config struct {
	HTTP      HTTPConfig
	Logging   LoggingConfig
	Engine    EngineConfig
	Analysis  AnalysisConfig
	Messaging MessagingConfig
	History   HistoryConfig
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableMetrics bool
}

// LoggingConfig holds log level and format settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// EngineConfig holds the hand-tuned numeric knobs of the classifiers,
// fusion and risk combination. Every coefficient the engine applies is
// named here so deployments can retune without a rebuild.
type EngineConfig struct {
	ModalityWeights     emotion.ModalityWeights
	AcousticThresholds  emotion.AcousticThresholds
	FacialCoefficients  emotion.FacialCoefficients
	TierWeights         risk.TierWeights
	BlendWeights        risk.BlendWeights
	CombinationWeights  risk.CombinationWeights
	RiskThresholds      risk.Thresholds
	CollaboratorTimeout time.Duration
}

// HistoryConfig selects the historical-risk store backend. The memory
// backend needs no settings; the mysql backend is validated on load.
type HistoryConfig struct {
	Backend string
	MySQL   history.SQLConfig
}

// AnalysisConfig holds the AI analysis collaborator settings.
type AnalysisConfig struct {
	Enabled         bool
	BaseURL         string
	Timeout         time.Duration
	DefaultProvider string
}

// MessagingConfig holds the AMQP audit sink settings.
type MessagingConfig struct {
	Enabled        bool
	URL            string
	QueueName      string
	ExchangeName   string
	RoutingKey     string
	PublishTimeout time.Duration
}

// Load reads configuration from the environment, trying a few .env file
// locations first.
func Load(logger *logrus.Logger) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		logger.WithError(err).Warn("Failed to get current working directory")
		wd = "unknown"
	}

	possibleEnvFiles := []string{
		".env",
		"../.env",
		filepath.Join(wd, ".env"),
	}

	var loadedFrom string
	for _, envFile := range possibleEnvFiles {
		if _, statErr := os.Stat(envFile); statErr == nil {
			if loadErr := godotenv.Load(envFile); loadErr == nil {
				loadedFrom, _ = filepath.Abs(envFile)
				break
			}
		}
	}

	if loadedFrom != "" {
		logger.WithField("path", loadedFrom).Info("Successfully loaded .env file")
	} else {
		logger.Warn("No .env file found, using environment variables only")
	}

	config := &Config{
		HTTP: HTTPConfig{
			Port:          getEnvInt("HTTP_PORT", 8080),
			ReadTimeout:   getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			EnableMetrics: getEnvBool("HTTP_ENABLE_METRICS", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			ModalityWeights: emotion.ModalityWeights{
				emotion.ModalityText:   getEnvFloat("FUSION_TEXT_WEIGHT", 0.4),
				emotion.ModalityVisual: getEnvFloat("FUSION_VISUAL_WEIGHT", 0.35),
				emotion.ModalityAudio:  getEnvFloat("FUSION_AUDIO_WEIGHT", 0.25),
			},
			FacialCoefficients: loadFacialCoefficients(),
			AcousticThresholds: emotion.AcousticThresholds{
				HighEnergy:            getEnvFloat("ACOUSTIC_HIGH_ENERGY", 0.1),
				HighPitchVariation:    getEnvFloat("ACOUSTIC_HIGH_PITCH_VARIATION", 50),
				FastTempo:             getEnvFloat("ACOUSTIC_FAST_TEMPO", 140),
				LowEnergy:             getEnvFloat("ACOUSTIC_LOW_ENERGY", 0.05),
				LowPitchMean:          getEnvFloat("ACOUSTIC_LOW_PITCH_MEAN", 150),
				AnxiousPitchVariation: getEnvFloat("ACOUSTIC_ANXIOUS_PITCH_VARIATION", 80),
			},
			TierWeights: risk.TierWeights{
				HighRisk:     getEnvFloat("RISK_TIER_HIGH", 0.3),
				ModerateRisk: getEnvFloat("RISK_TIER_MODERATE", 0.1),
				WarningSigns: getEnvFloat("RISK_TIER_WARNING", 0.2),
			},
			BlendWeights: risk.BlendWeights{
				Keyword: getEnvFloat("RISK_BLEND_KEYWORD", 0.6),
				AI:      getEnvFloat("RISK_BLEND_AI", 0.4),
			},
			CombinationWeights: risk.CombinationWeights{
				Base:       getEnvFloat("RISK_WEIGHT_BASE", 0.5),
				Text:       getEnvFloat("RISK_WEIGHT_TEXT", 0.3),
				Historical: getEnvFloat("RISK_WEIGHT_HISTORICAL", 0.2),
			},
			RiskThresholds: risk.Thresholds{
				Critical:   getEnvFloat("RISK_THRESHOLD_CRITICAL", 0.8),
				High:       getEnvFloat("RISK_THRESHOLD_HIGH", 0.6),
				Moderate:   getEnvFloat("RISK_THRESHOLD_MODERATE", 0.4),
				Low:        getEnvFloat("RISK_THRESHOLD_LOW", 0.2),
				Monitoring: getEnvFloat("RISK_FLAG_MONITORING", 0.3),
				Referral:   getEnvFloat("RISK_FLAG_REFERRAL", 0.6),
				Emergency:  getEnvFloat("RISK_FLAG_EMERGENCY", 0.8),
			},
			CollaboratorTimeout: getEnvDuration("COLLABORATOR_TIMEOUT", 2*time.Second),
		},
		Analysis: AnalysisConfig{
			Enabled:         getEnvBool("ANALYSIS_ENABLED", false),
			BaseURL:         getEnv("ANALYSIS_BASE_URL", ""),
			Timeout:         getEnvDuration("ANALYSIS_TIMEOUT", 5*time.Second),
			DefaultProvider: getEnv("ANALYSIS_DEFAULT_PROVIDER", "http"),
		},
		Messaging: MessagingConfig{
			Enabled:        getEnvBool("AMQP_ENABLED", false),
			URL:            getEnv("AMQP_URL", ""),
			QueueName:      getEnv("AMQP_QUEUE_NAME", "assessments.audit"),
			ExchangeName:   getEnv("AMQP_EXCHANGE_NAME", ""),
			RoutingKey:     getEnv("AMQP_ROUTING_KEY", ""),
			PublishTimeout: getEnvDuration("AMQP_PUBLISH_TIMEOUT", 200*time.Millisecond),
		},
		History: HistoryConfig{
			Backend: getEnv("HISTORY_BACKEND", "memory"),
			MySQL: history.SQLConfig{
				Host:            getEnv("HISTORY_DB_HOST", "localhost"),
				Port:            getEnvInt("HISTORY_DB_PORT", 3306),
				Database:        getEnv("HISTORY_DB_NAME", "manas"),
				Username:        getEnv("HISTORY_DB_USERNAME", "manas"),
				Password:        getEnv("HISTORY_DB_PASSWORD", ""),
				MaxOpenConns:    getEnvInt("HISTORY_DB_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    getEnvInt("HISTORY_DB_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: getEnvDuration("HISTORY_DB_CONN_MAX_LIFETIME", 5*time.Minute),
			},
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadFacialCoefficients overlays env overrides on the default facial
// scoring table. Variables follow FACIAL_<EMOTION>_<TERM>, for example
// FACIAL_HAPPY_MAR or FACIAL_SAD_BIAS.
func loadFacialCoefficients() emotion.FacialCoefficients {
	table := emotion.DefaultFacialCoefficients()
	for name, coef := range table {
		prefix := "FACIAL_" + strings.ToUpper(string(name)) + "_"
		coef.Bias = getEnvFloat(prefix+"BIAS", coef.Bias)
		coef.EAR = getEnvFloat(prefix+"EAR", coef.EAR)
		coef.MAR = getEnvFloat(prefix+"MAR", coef.MAR)
		coef.Curvature = getEnvFloat(prefix+"CURVATURE", coef.Curvature)
		coef.Elevation = getEnvFloat(prefix+"ELEVATION", coef.Elevation)
		table[name] = coef
	}
	return table
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}

	for modality, weight := range c.Engine.ModalityWeights {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("fusion weight for %s out of range: %v", modality, weight)
		}
	}

	unitRanged := map[string]float64{
		"RISK_TIER_HIGH":          c.Engine.TierWeights.HighRisk,
		"RISK_TIER_MODERATE":      c.Engine.TierWeights.ModerateRisk,
		"RISK_TIER_WARNING":       c.Engine.TierWeights.WarningSigns,
		"RISK_BLEND_KEYWORD":      c.Engine.BlendWeights.Keyword,
		"RISK_BLEND_AI":           c.Engine.BlendWeights.AI,
		"RISK_WEIGHT_BASE":        c.Engine.CombinationWeights.Base,
		"RISK_WEIGHT_TEXT":        c.Engine.CombinationWeights.Text,
		"RISK_WEIGHT_HISTORICAL":  c.Engine.CombinationWeights.Historical,
		"RISK_THRESHOLD_CRITICAL": c.Engine.RiskThresholds.Critical,
		"RISK_THRESHOLD_HIGH":     c.Engine.RiskThresholds.High,
		"RISK_THRESHOLD_MODERATE": c.Engine.RiskThresholds.Moderate,
		"RISK_THRESHOLD_LOW":      c.Engine.RiskThresholds.Low,
	}
	for name, value := range unitRanged {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s out of range [0,1]: %v", name, value)
		}
	}

	thresholds := c.Engine.RiskThresholds
	if !(thresholds.Critical > thresholds.High &&
		thresholds.High > thresholds.Moderate &&
		thresholds.Moderate > thresholds.Low) {
		return fmt.Errorf("risk category thresholds must be strictly decreasing")
	}

	if c.Engine.CollaboratorTimeout <= 0 {
		return fmt.Errorf("collaborator timeout must be positive")
	}

	if c.Analysis.Enabled && c.Analysis.BaseURL == "" {
		return fmt.Errorf("ANALYSIS_BASE_URL is required when analysis is enabled")
	}

	if c.Messaging.Enabled && c.Messaging.URL == "" {
		return fmt.Errorf("AMQP_URL is required when messaging is enabled")
	}

	switch c.History.Backend {
	case "memory":
	case "mysql":
		if err := c.History.MySQL.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown history backend: %s", c.History.Backend)
	}

	return nil
}

// ApplyLogging configures the logger from the loaded settings.
func (c *Config) ApplyLogging(logger *logrus.Logger) {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		logger.WithField("level", c.Logging.Level).Warn("Invalid log level, defaulting to info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(c.Logging.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatValue
}
