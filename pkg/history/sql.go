package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// SQLConfig holds the MySQL connection settings for the persistent
// history store.
type SQLConfig struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Validate checks the connection settings before a dial is attempted.
func (c SQLConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("history database host is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid history database port: %d", c.Port)
	}

	if c.Database == "" {
		return fmt.Errorf("history database name is required")
	}

	if c.Username == "" {
		return fmt.Errorf("history database username is required")
	}

	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be positive: %d", c.MaxOpenConns)
	}

	if c.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections cannot be negative: %d", c.MaxIdleConns)
	}

	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max idle connections (%d) cannot exceed max open connections (%d)",
			c.MaxIdleConns, c.MaxOpenConns)
	}

	return nil
}

func (c SQLConfig) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

const createRiskPriorsTable = `
CREATE TABLE IF NOT EXISTS risk_priors (
    user_id VARCHAR(64) PRIMARY KEY,
    prior DOUBLE NOT NULL,
    updated_at TIMESTAMP NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// SQLStore persists per-user risk priors in MySQL. Decay and smoothing
// match MemoryStore, so the two backends are interchangeable.
type SQLStore struct {
	db       *sql.DB
	halfLife time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewSQLStore validates the configuration, opens the connection pool,
// verifies it with a ping and creates the schema when missing.
func NewSQLStore(config SQLConfig, logger *logrus.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid history database configuration: %w", err)
	}

	db, err := sql.Open("mysql", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if _, err := db.Exec(createRiskPriorsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create risk_priors table: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":     config.Host,
		"port":     config.Port,
		"database": config.Database,
	}).Info("Connected to history database")

	return &SQLStore{
		db:       db,
		halfLife: defaultHalfLife,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// RiskPrior returns the decayed prior for the user. Unknown users report
// ok=false with a zero prior.
func (s *SQLStore) RiskPrior(ctx context.Context, userID string) (float64, bool, error) {
	if userID == "" {
		return 0, false, nil
	}

	var (
		prior     float64
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT prior, updated_at FROM risk_priors WHERE user_id = ?", userID,
	).Scan(&prior, &updatedAt)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load risk prior: %w", err)
	}

	return decayPrior(prior, s.now().Sub(updatedAt), s.halfLife), true, nil
}

// RecordAssessment folds one combined risk score into the user's prior.
func (s *SQLStore) RecordAssessment(ctx context.Context, userID string, combinedRisk float64, at time.Time) error {
	if userID == "" {
		return nil
	}

	if combinedRisk < 0 {
		combinedRisk = 0
	} else if combinedRisk > 1 {
		combinedRisk = 1
	}

	current, exists, err := s.RiskPrior(ctx, userID)
	if err != nil {
		return err
	}

	next := combinedRisk
	if exists {
		next = (1-smoothing)*current + smoothing*combinedRisk
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO risk_priors (user_id, prior, updated_at) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE prior = VALUES(prior), updated_at = VALUES(updated_at)`,
		userID, next, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record assessment: %w", err)
	}

	return nil
}
