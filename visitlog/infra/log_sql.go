package infra

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"visitor-tracker/visitlog/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS visitor_log (
	id             BIGSERIAL PRIMARY KEY,
	ip_address     TEXT NOT NULL,
	visit_date     TEXT NOT NULL,
	visit_time     TEXT NOT NULL,
	user_agent     TEXT NOT NULL,
	referrer_url   TEXT NOT NULL,
	visit_duration BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertVisit = `INSERT INTO visitor_log
	(ip_address, visit_date, visit_time, user_agent, referrer_url, visit_duration)
	VALUES (:ip_address, :visit_date, :visit_time, :user_agent, :referrer_url, :visit_duration)`

const selectVisits = `SELECT ip_address, visit_date, visit_time, user_agent, referrer_url, visit_duration
	FROM visitor_log ORDER BY id`

// SQLLog grava visitas em uma tabela postgres.
type SQLLog struct {
	db *sqlx.DB
}

func NewSQLLog(db *sqlx.DB) *SQLLog {
	return &SQLLog{db: db}
}

// OpenSQLLog conecta usando o driver lib/pq.
func OpenSQLLog(ctx context.Context, dsn string) (*SQLLog, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewSQLLog(db), nil
}

func (l *SQLLog) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create visitor_log: %w", err)
	}
	return nil
}

func (l *SQLLog) Append(ctx context.Context, rec domain.Record) error {
	if _, err := l.db.NamedExecContext(ctx, insertVisit, rec); err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func (l *SQLLog) All(ctx context.Context) ([]domain.Record, error) {
	var out []domain.Record
	if err := l.db.SelectContext(ctx, &out, selectVisits); err != nil {
		return nil, fmt.Errorf("select visits: %w", err)
	}
	return out, nil
}

func (l *SQLLog) Close() error { return l.db.Close() }
