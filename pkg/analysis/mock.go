package analysis

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// MockProvider implements a canned analysis provider for testing.
type MockProvider struct {
	logger *logrus.Logger

	mu       sync.Mutex
	result   *Result
	err      error
	delay    func(ctx context.Context) error
	analyzed []string
}

// NewMockProvider creates a new mock provider
func NewMockProvider(logger *logrus.Logger) *MockProvider {
	return &MockProvider{
		logger: logger,
		result: &Result{PrimaryEmotion: "neutral", Confidence: 0.5, RiskScore: 0.1},
	}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Initialize initializes the mock provider
func (p *MockProvider) Initialize() error {
	p.logger.Info("Mock analysis provider initialized")
	return nil
}

// SetResult configures the canned result returned by Analyze.
func (p *MockProvider) SetResult(result *Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = result
	p.err = err
}

// SetDelay installs a hook that runs before Analyze returns, letting
// tests simulate a slow collaborator that reacts to cancellation.
func (p *MockProvider) SetDelay(delay func(ctx context.Context) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = delay
}

// AnalyzedTexts returns every text the mock has seen.
func (p *MockProvider) AnalyzedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.analyzed...)
}

// Analyze records the text and returns the canned result.
func (p *MockProvider) Analyze(ctx context.Context, text string) (*Result, error) {
	p.mu.Lock()
	p.analyzed = append(p.analyzed, text)
	result, err, delay := p.result, p.err, p.delay
	p.mu.Unlock()

	if delay != nil {
		if derr := delay(ctx); derr != nil {
			return nil, derr
		}
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}
