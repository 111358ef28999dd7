package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"manas-server/pkg/analysis"
	"manas-server/pkg/emotion"
	"manas-server/pkg/errors"
	"manas-server/pkg/history"
	"manas-server/pkg/messaging"
	"manas-server/pkg/metrics"
	"manas-server/pkg/risk"
)

// TurnInput is one conversational turn. Every modality is optional, but
// at least one must be present.
type TurnInput struct {
	TurnID    string                         `json:"turn_id,omitempty"`
	UserID    string                         `json:"user_id,omitempty"`
	Text      string                         `json:"text,omitempty"`
	Landmarks *emotion.LandmarkFrame         `json:"landmarks,omitempty"`
	Acoustics *emotion.AcousticFeatureVector `json:"acoustics,omitempty"`
}

// TurnResult is the complete outcome of one processed turn.
type TurnResult struct {
	TurnID         string                    `json:"turn_id"`
	UserID         string                    `json:"user_id,omitempty"`
	Fused          emotion.FusedEmotionState `json:"fused"`
	FacialMetrics  *emotion.FacialMetrics    `json:"facial_metrics,omitempty"`
	Scan           risk.ScanResult           `json:"scan"`
	TextRisk       float64                   `json:"text_risk"`
	HistoricalRisk float64                   `json:"historical_risk"`
	Assessment     risk.Assessment           `json:"assessment"`
	Plan           risk.Plan                 `json:"plan"`
	Degraded       []string                  `json:"degraded,omitempty"`
}

// ResultListener receives every completed turn result.
type ResultListener func(*TurnResult)

// Options bundles the collaborators an Engine is built from. Nil fields
// get working defaults; a nil Providers disables AI analysis and a nil
// Audit disables audit publishing.
type Options struct {
	Facial              *emotion.FacialClassifier
	Acoustic            *emotion.AcousticClassifier
	Fuser               *emotion.Fuser
	Scanner             *risk.Scanner
	Assessor            *risk.Assessor
	Selector            *risk.Selector
	Providers           *analysis.ProviderManager
	ProviderName        string
	History             history.Store
	Audit               messaging.AuditSink
	CollaboratorTimeout time.Duration
}

// Engine orchestrates one turn end to end: concurrent modality
// classification, fusion, risk assessment and intervention selection.
type Engine struct {
	logger              *logrus.Logger
	facial              *emotion.FacialClassifier
	acoustic            *emotion.AcousticClassifier
	fuser               *emotion.Fuser
	scanner             *risk.Scanner
	assessor            *risk.Assessor
	selector            *risk.Selector
	providers           *analysis.ProviderManager
	providerName        string
	history             history.Store
	audit               messaging.AuditSink
	collaboratorTimeout time.Duration

	listenerMu sync.RWMutex
	listeners  []ResultListener
}

// NewEngine builds an engine from the options.
func NewEngine(logger *logrus.Logger, opts Options) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Facial == nil {
		opts.Facial = emotion.NewFacialClassifier(nil, logger)
	}
	if opts.Acoustic == nil {
		opts.Acoustic = emotion.NewAcousticClassifier(emotion.AcousticThresholds{}, logger)
	}
	if opts.Fuser == nil {
		opts.Fuser = emotion.NewFuser(nil, logger)
	}
	if opts.Scanner == nil {
		opts.Scanner = risk.NewScanner(nil, risk.TierWeights{}, risk.BlendWeights{}, logger)
	}
	if opts.Assessor == nil {
		opts.Assessor = risk.NewAssessor(risk.CombinationWeights{}, risk.Thresholds{}, logger)
	}
	if opts.Selector == nil {
		opts.Selector = risk.NewSelector(nil, logger)
	}
	if opts.History == nil {
		opts.History = history.NewMemoryStore(logger)
	}
	if opts.Audit == nil {
		opts.Audit = messaging.NoopSink{}
	}
	if opts.CollaboratorTimeout <= 0 {
		opts.CollaboratorTimeout = 2 * time.Second
	}

	return &Engine{
		logger:              logger,
		facial:              opts.Facial,
		acoustic:            opts.Acoustic,
		fuser:               opts.Fuser,
		scanner:             opts.Scanner,
		assessor:            opts.Assessor,
		selector:            opts.Selector,
		providers:           opts.Providers,
		providerName:        opts.ProviderName,
		history:             opts.History,
		audit:               opts.Audit,
		collaboratorTimeout: opts.CollaboratorTimeout,
	}
}

// AddResultListener registers a listener invoked for every completed
// turn. Listeners run on the processing goroutine and must be fast.
func (e *Engine) AddResultListener(listener ResultListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.listeners = append(e.listeners, listener)
}

// ProcessTurn runs the full per-turn pipeline. The classifiers run
// concurrently; external collaborators (AI analysis, history lookup) are
// bounded by the collaborator timeout, and a timed-out collaborator is
// treated as an absent signal rather than an error. Caller cancellation
// aborts the turn.
func (e *Engine) ProcessTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	if input.Text == "" && input.Landmarks == nil && input.Acoustics == nil {
		return nil, errors.Wrap(errors.ErrMissingModality, "turn carries no text, landmarks or acoustics")
	}

	if input.TurnID == "" {
		input.TurnID = uuid.NewString()
	}

	done := metrics.StartTurnTimer()
	defer done()

	var (
		wg sync.WaitGroup

		visualReport *emotion.ModalityReport
		audioReport  *emotion.ModalityReport
		textReport   *emotion.ModalityReport

		facialMetrics *emotion.FacialMetrics
		aiScore       *float64

		historicalRisk float64

		degradedMu sync.Mutex
		degraded   []string
	)

	markDegraded := func(reason string) {
		degradedMu.Lock()
		degraded = append(degraded, reason)
		degradedMu.Unlock()
	}

	if input.Landmarks != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer metrics.ObserveClassifierLatency("visual")()

			estimate, faceMetrics, err := e.facial.Classify(input.Landmarks)
			if err != nil {
				metrics.RecordClassifierInvocation("visual", "error")
				markDegraded("visual:" + errors.GetErrorCode(err))
				e.logger.WithError(err).WithField("turn_id", input.TurnID).
					Warn("Facial classification failed, dropping visual modality")
				return
			}

			metrics.RecordClassifierInvocation("visual", "success")
			facialMetrics = &faceMetrics
			visualReport = &emotion.ModalityReport{
				Modality:  emotion.ModalityVisual,
				Estimate:  estimate,
				Method:    "landmark_geometry",
				Timestamp: time.Now().UTC(),
			}
		}()
	}

	if input.Acoustics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer metrics.ObserveClassifierLatency("audio")()

			estimate, err := e.acoustic.Classify(input.Acoustics)
			if err != nil {
				metrics.RecordClassifierInvocation("audio", "error")
				markDegraded("audio:" + errors.GetErrorCode(err))
				e.logger.WithError(err).WithField("turn_id", input.TurnID).
					Warn("Acoustic classification failed, dropping audio modality")
				return
			}

			metrics.RecordClassifierInvocation("audio", "success")
			audioReport = &emotion.ModalityReport{
				Modality:  emotion.ModalityAudio,
				Estimate:  estimate,
				Method:    "acoustic_heuristic",
				Timestamp: time.Now().UTC(),
			}
		}()
	}

	if input.Text != "" && e.providers != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer metrics.ObserveClassifierLatency("text")()

			callCtx, cancel := context.WithTimeout(ctx, e.collaboratorTimeout)
			defer cancel()

			result, err := e.providers.AnalyzeWithProvider(callCtx, e.providerName, input.Text)
			if err != nil {
				metrics.RecordClassifierInvocation("text", "error")
				if callCtx.Err() != nil && ctx.Err() == nil {
					metrics.RecordCollaboratorTimeout("ai_analysis")
				}
				markDegraded("text:ai_unavailable")
				e.logger.WithError(err).WithField("turn_id", input.TurnID).
					Warn("AI analysis unavailable, falling back to keyword-only text risk")
				return
			}

			metrics.RecordClassifierInvocation("text", "success")
			score := result.RiskScore
			aiScore = &score
			textReport = &emotion.ModalityReport{
				Modality: emotion.ModalityText,
				Estimate: emotion.EmotionEstimate{
					PrimaryEmotion: emotion.Emotion(result.PrimaryEmotion),
					Intensity:      intensityFromConfidence(result.Confidence),
					Confidence:     result.Confidence,
					RiskHint:       result.RiskScore,
				},
				Method:    "ai_analysis",
				Timestamp: time.Now().UTC(),
			}
		}()
	}

	if input.UserID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, e.collaboratorTimeout)
			defer cancel()

			prior, ok, err := e.history.RiskPrior(callCtx, input.UserID)
			if err != nil {
				if callCtx.Err() != nil && ctx.Err() == nil {
					metrics.RecordCollaboratorTimeout("history")
				}
				markDegraded("history:unavailable")
				e.logger.WithError(err).WithField("turn_id", input.TurnID).
					Warn("History lookup failed, assuming zero prior")
				return
			}
			if ok {
				historicalRisk = prior
			}
		}()
	}

	// Keyword scanning is deterministic and cheap, so it runs inline
	// while the collaborators are in flight.
	scan := e.scanner.Scan(input.Text)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "turn processing canceled").WithField("turn_id", input.TurnID)
	}

	var reports []emotion.ModalityReport
	for _, report := range []*emotion.ModalityReport{textReport, visualReport, audioReport} {
		if report != nil {
			reports = append(reports, *report)
		}
	}

	fused := e.fuser.Fuse(reports)
	metrics.RecordFusion(strconv.Itoa(len(reports)), fused.Estimate.RiskHint)

	textRisk := e.scanner.TextRisk(scan.KeywordScore, aiScore)

	assessment := e.assessor.Assess(risk.Input{
		TurnID:         input.TurnID,
		UserID:         input.UserID,
		Fused:          &fused,
		TextRisk:       textRisk,
		HistoricalRisk: historicalRisk,
	})
	metrics.RecordAssessment(string(assessment.Category), assessment.CombinedRisk)

	plan := e.selector.Select(assessment, fused.Estimate.PrimaryEmotion)
	metrics.RecordIntervention(string(plan.Protocol))

	result := &TurnResult{
		TurnID:         input.TurnID,
		UserID:         input.UserID,
		Fused:          fused,
		FacialMetrics:  facialMetrics,
		Scan:           scan,
		TextRisk:       textRisk,
		HistoricalRisk: historicalRisk,
		Assessment:     assessment,
		Plan:           plan,
		Degraded:       degraded,
	}

	e.recordAndPublish(result, reports)
	e.notifyListeners(result)

	return result, nil
}

// recordAndPublish feeds the assessment back into history and ships the
// audit record. Both are fire-and-forget: neither failure changes the
// turn's outcome.
func (e *Engine) recordAndPublish(result *TurnResult, reports []emotion.ModalityReport) {
	if result.UserID != "" {
		recordCtx, cancel := context.WithTimeout(context.Background(), e.collaboratorTimeout)
		defer cancel()

		if err := e.history.RecordAssessment(recordCtx, result.UserID, result.Assessment.CombinedRisk, result.Assessment.Timestamp); err != nil {
			e.logger.WithError(err).WithField("turn_id", result.TurnID).
				Warn("Failed to record assessment in history")
		}
	}

	modalities := make([]string, 0, len(reports))
	for _, report := range reports {
		modalities = append(modalities, string(report.Modality))
	}

	record := messaging.AuditRecord{
		TurnID:              result.TurnID,
		UserID:              result.UserID,
		Timestamp:           result.Assessment.Timestamp,
		Category:            string(result.Assessment.Category),
		CombinedRisk:        result.Assessment.CombinedRisk,
		Protocol:            string(result.Plan.Protocol),
		ContributingFactors: result.Assessment.ContributingFactors,
		ModalitiesPresent:   modalities,
	}

	go func() {
		if err := e.audit.PublishAudit(record); err != nil {
			e.logger.WithError(err).WithField("turn_id", record.TurnID).
				Debug("Audit record not published")
		}
	}()
}

func (e *Engine) notifyListeners(result *TurnResult) {
	e.listenerMu.RLock()
	listeners := append([]ResultListener(nil), e.listeners...)
	e.listenerMu.RUnlock()

	for _, listener := range listeners {
		listener(result)
	}
}

func intensityFromConfidence(confidence float64) int {
	intensity := int(confidence*10 + 0.5)
	if intensity < 1 {
		return 1
	}
	if intensity > 10 {
		return 10
	}
	return intensity
}
