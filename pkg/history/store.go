package history

import (
	"context"
	"time"
)

// Store is the port for historical risk lookups. The engine only needs a
// per-user prior in [0,1]; how assessments are persisted is an
// implementation concern.
type Store interface {
	// RiskPrior returns the user's historical risk prior. ok is false for
	// users with no recorded history, in which case the prior is 0.
	RiskPrior(ctx context.Context, userID string) (prior float64, ok bool, err error)

	// RecordAssessment feeds one combined risk score into the user's
	// history.
	RecordAssessment(ctx context.Context, userID string, combinedRisk float64, at time.Time) error
}
