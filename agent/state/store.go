package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const defaultHistoryLimit = 50

// Store is the persistence contract for agent run history.
type Store interface {
	Append(ctx context.Context, rec RunRecord) error
	History(ctx context.Context, agentID, sessionID string) ([]RunRecord, error)
	Clear(ctx context.Context, sessionID string) error
}

// runRow is the bun model backing agent_runs.
type runRow struct {
	bun.BaseModel `bun:"table:agent_runs,alias:ar"`

	ID          int64        `bun:"id,pk,autoincrement"`
	AgentID     string       `bun:"agent_id,notnull"`
	SessionID   string       `bun:"session_id,notnull"`
	Instruction string       `bun:"instruction"`
	Status      string       `bun:"status,notnull"`
	Summary     string       `bun:"summary"`
	CreatedAt   bun.NullTime `bun:"created_at,notnull"`
}

// PostgresStore keeps run history in Postgres via bun.
type PostgresStore struct {
	db           *bun.DB
	historyLimit int
}

// PostgresConfig configures the store connection.
type PostgresConfig struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

// PostgresOption customizes PostgresStore.
type PostgresOption func(*PostgresStore)

// WithHistoryLimit bounds how many records are kept per (agent, session).
func WithHistoryLimit(n int) PostgresOption {
	return func(s *PostgresStore) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithDB injects an existing bun handle, used by tests.
func WithDB(db *bun.DB) PostgresOption {
	return func(s *PostgresStore) {
		if db != nil {
			s.db = db
		}
	}
}

func NewPostgresStore(cfg PostgresConfig, opts ...PostgresOption) (*PostgresStore, error) {
	store := &PostgresStore{historyLimit: defaultHistoryLimit}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.db == nil {
		dsn := strings.TrimSpace(cfg.DSN)
		if dsn == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		store.db = bun.NewDB(sqldb, pgdialect.New())
	}
	return store, nil
}

// Migrate creates the history table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*runRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create agent_runs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, rec RunRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	row := &runRow{
		AgentID:     rec.AgentID,
		SessionID:   rec.SessionID,
		Instruction: rec.Instruction,
		Status:      rec.Status,
		Summary:     rec.Summary,
		CreatedAt:   bun.NullTime{Time: rec.CreatedAt.UTC()},
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}

	// Keep the history bounded per (agent, session).
	_, err := s.db.NewDelete().
		Model((*runRow)(nil)).
		Where("agent_id = ? AND session_id = ?", rec.AgentID, rec.SessionID).
		Where("id NOT IN (?)", s.db.NewSelect().
			Model((*runRow)(nil)).
			Column("id").
			Where("agent_id = ? AND session_id = ?", rec.AgentID, rec.SessionID).
			OrderExpr("id DESC").
			Limit(s.historyLimit)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("trim run history: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, agentID, sessionID string) ([]RunRecord, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, ErrInvalidAgent
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	var rows []runRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("agent_id = ? AND session_id = ?", agentID, sessionID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select run history: %w", err)
	}

	out := make([]RunRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, RunRecord{
			AgentID:     row.AgentID,
			SessionID:   row.SessionID,
			Instruction: row.Instruction,
			Status:      row.Status,
			Summary:     row.Summary,
			CreatedAt:   row.CreatedAt.Time,
		})
	}
	return out, nil
}

func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	_, err := s.db.NewDelete().
		Model((*runRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	return err
}

var _ Store = (*PostgresStore)(nil)
