// Package sqlite provides an append-only SQLite alert ledger.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/ports"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_alerts.sql
var schemaSQL string

const ledgerDirMode = 0o700

type Ledger struct {
	sqlDB *sql.DB
}

var _ ports.Ledger = (*Ledger)(nil)

// Open opens the ledger database at path, creating it and its schema when
// missing.
func Open(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), ledgerDirMode); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	return &Ledger{sqlDB: sqlDB}, nil
}

func (l *Ledger) Close() error {
	if l == nil || l.sqlDB == nil {
		return nil
	}
	return l.sqlDB.Close()
}

func (l *Ledger) Record(ctx context.Context, alert domain.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if alert.TokenID == "" {
		return fmt.Errorf("alert session id is required")
	}

	violated := alert.Violated
	if violated == nil {
		violated = []string{}
	}
	encoded, err := json.Marshal(violated)
	if err != nil {
		return fmt.Errorf("encode violated boundaries: %w", err)
	}

	_, err = l.sqlDB.ExecContext(ctx,
		`INSERT INTO alerts (session_id, violated, recorded_at) VALUES (?, ?, ?)`,
		string(alert.TokenID), string(encoded), alert.At.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert alert for %s: %w", alert.TokenID, err)
	}

	return nil
}

func (l *Ledger) List(ctx context.Context, id domain.TokenID) ([]domain.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := `SELECT session_id, violated, recorded_at FROM alerts ORDER BY seq`
	args := []any{}
	if id != "" {
		query = `SELECT session_id, violated, recorded_at FROM alerts WHERE session_id = ? ORDER BY seq`
		args = append(args, string(id))
	}

	rows, err := l.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []domain.Alert{}
	for rows.Next() {
		var (
			sessionID  string
			violated   string
			recordedAt int64
		)
		if err := rows.Scan(&sessionID, &violated, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}

		alert := domain.Alert{TokenID: domain.TokenID(sessionID), At: time.Unix(0, recordedAt).UTC()}
		if err := json.Unmarshal([]byte(violated), &alert.Violated); err != nil {
			return nil, fmt.Errorf("decode violated boundaries: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}

	return alerts, nil
}
