package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"manas-server/pkg/errors"
)

// HTTPProvider calls a remote analysis service over HTTP JSON. The remote
// side wraps the actual language model; this provider only carries the
// request and normalizes the response.
type HTTPProvider struct {
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	PrimaryEmotion string  `json:"primary_emotion"`
	Confidence     float64 `json:"confidence"`
	RiskScore      float64 `json:"risk_score"`
}

// NewHTTPProvider creates an HTTP analysis provider for the given base URL.
func NewHTTPProvider(logger *logrus.Logger, baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPProvider{
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name returns the provider name
func (p *HTTPProvider) Name() string {
	return "http"
}

// Initialize validates the provider configuration
func (p *HTTPProvider) Initialize() error {
	if p.baseURL == "" {
		return errors.New("analysis service base URL is not configured")
	}

	p.logger.WithField("base_url", p.baseURL).Info("HTTP analysis provider initialized")
	return nil
}

// Analyze posts the text to the analysis service and decodes its verdict.
// Scores are clamped so a misbehaving service cannot push out-of-range
// values into the engine.
func (p *HTTPProvider) Analyze(ctx context.Context, text string) (*Result, error) {
	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode analysis request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build analysis request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCollaboratorTimeout("ai_analysis")
		}
		return nil, errors.Wrap(err, "analysis request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.New(fmt.Sprintf("analysis service returned status %d", resp.StatusCode)).
			WithField("status", resp.StatusCode)
	}

	var decoded analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode analysis response")
	}

	return &Result{
		PrimaryEmotion: decoded.PrimaryEmotion,
		Confidence:     clampUnit(decoded.Confidence),
		RiskScore:      clampUnit(decoded.RiskScore),
	}, nil
}

func clampUnit(x float64) float64 {
	if x != x || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
