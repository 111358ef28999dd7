package history

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// defaultHalfLife controls how fast an idle user's prior decays toward
// zero. A week without elevated assessments halves the carried risk.
const defaultHalfLife = 7 * 24 * time.Hour

// smoothing is the exponential moving average factor applied when a new
// assessment arrives. Recent turns dominate without letting a single calm
// turn erase an elevated history.
const smoothing = 0.4

type userHistory struct {
	prior     float64
	updatedAt time.Time
}

// MemoryStore keeps per-user risk priors in memory with time decay. It is
// safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]userHistory
	halfLife time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewMemoryStore creates an in-memory history store.
func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	if logger == nil {
		logger = logrus.New()
	}

	return &MemoryStore{
		users:    make(map[string]userHistory),
		halfLife: defaultHalfLife,
		logger:   logger,
		now:      time.Now,
	}
}

// RiskPrior returns the decayed prior for the user. Unknown users report
// ok=false with a zero prior.
func (s *MemoryStore) RiskPrior(ctx context.Context, userID string) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if userID == "" {
		return 0, false, nil
	}

	s.mu.RLock()
	entry, exists := s.users[userID]
	s.mu.RUnlock()

	if !exists {
		return 0, false, nil
	}

	return s.decayed(entry), true, nil
}

// RecordAssessment folds one combined risk score into the user's prior.
func (s *MemoryStore) RecordAssessment(ctx context.Context, userID string, combinedRisk float64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID == "" {
		return nil
	}

	if combinedRisk < 0 {
		combinedRisk = 0
	} else if combinedRisk > 1 {
		combinedRisk = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.users[userID]
	if !exists {
		s.users[userID] = userHistory{prior: combinedRisk, updatedAt: at}
		return nil
	}

	current := s.decayed(entry)
	s.users[userID] = userHistory{
		prior:     (1-smoothing)*current + smoothing*combinedRisk,
		updatedAt: at,
	}

	return nil
}

func (s *MemoryStore) decayed(entry userHistory) float64 {
	return decayPrior(entry.prior, s.now().Sub(entry.updatedAt), s.halfLife)
}

// decayPrior applies half-life decay to a stored prior. Both store
// backends use it so a backend switch never changes assessment semantics.
func decayPrior(prior float64, age, halfLife time.Duration) float64 {
	if age <= 0 {
		return prior
	}

	return prior * math.Exp2(-age.Hours()/halfLife.Hours())
}
