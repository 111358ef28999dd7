package analysis

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"manas-server/pkg/errors"
)

// Result is the typed outcome of one AI text analysis call.
type Result struct {
	PrimaryEmotion string  `json:"primary_emotion"`
	Confidence     float64 `json:"confidence"`
	RiskScore      float64 `json:"risk_score"`
}

// Provider defines the interface for AI text analysis providers.
type Provider interface {
	// Initialize initializes the provider with any required configuration
	Initialize() error

	// Name returns the provider name
	Name() string

	// Analyze sends the text to the provider and returns its emotional
	// read. Implementations must honor context cancellation.
	Analyze(ctx context.Context, text string) (*Result, error)
}

// ProviderManager manages all registered analysis providers.
type ProviderManager struct {
	logger          *logrus.Logger
	providers       map[string]Provider
	defaultProvider string
}

// NewProviderManager creates a new provider manager
func NewProviderManager(logger *logrus.Logger, defaultProvider string) *ProviderManager {
	return &ProviderManager{
		logger:          logger,
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider initializes and registers an analysis provider
func (m *ProviderManager) RegisterProvider(provider Provider) error {
	if err := provider.Initialize(); err != nil {
		m.logger.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"error":    err,
		}).Error("Failed to initialize analysis provider")
		return err
	}

	m.providers[provider.Name()] = provider
	m.logger.WithField("provider", provider.Name()).Info("Registered analysis provider")

	return nil
}

// GetProvider returns a provider by name
func (m *ProviderManager) GetProvider(name string) (Provider, bool) {
	provider, exists := m.providers[name]
	return provider, exists
}

// GetDefaultProvider returns the default provider
func (m *ProviderManager) GetDefaultProvider() (Provider, bool) {
	return m.GetProvider(m.defaultProvider)
}

// AnalyzeWithProvider routes the text to the named provider, falling back
// to the default when the name is unknown.
func (m *ProviderManager) AnalyzeWithProvider(ctx context.Context, providerName, text string) (*Result, error) {
	startTime := time.Now()

	provider, exists := m.GetProvider(providerName)
	if !exists {
		m.logger.WithFields(logrus.Fields{
			"provider":         providerName,
			"default_provider": m.defaultProvider,
		}).Warn("Provider not found, falling back to default")

		provider, exists = m.GetDefaultProvider()
		if !exists {
			return nil, errors.Wrap(errors.ErrProviderNotRegistered, "no analysis provider available").
				WithField("provider", providerName)
		}
	}

	result, err := provider.Analyze(ctx, text)

	m.logger.WithFields(logrus.Fields{
		"provider":   provider.Name(),
		"latency_ms": time.Since(startTime).Milliseconds(),
		"error":      err != nil,
	}).Debug("Analysis completed")

	return result, err
}
