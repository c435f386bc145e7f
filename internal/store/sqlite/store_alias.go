package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koltyakov/wsedge/internal/domain"
)

// Alias is a stored alias record.
type Alias struct {
	Code       string
	Candidates []string
	UpdatedAt  time.Time
}

// LookupAlias returns the ordered candidates for code, or
// [domain.ErrAliasNotFound] when no record exists.
func (s *Store) LookupAlias(ctx context.Context, code string) ([]string, error) {
	var raw string
	var err error
	if s.lookupAliasStmt != nil {
		err = s.lookupAliasStmt.QueryRowContext(ctx, code).Scan(&raw)
	} else {
		err = s.db.QueryRowContext(ctx, lookupAliasQuery, code).Scan(&raw)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAliasNotFound
	}
	if err != nil {
		return nil, err
	}
	var candidates []string
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return nil, fmt.Errorf("decode candidates for %q: %w", code, err)
	}
	return candidates, nil
}

// UpsertAlias creates or replaces the candidate list for code.
func (s *Store) UpsertAlias(ctx context.Context, code string, candidates []string) error {
	return upsertAlias(ctx, s.db, code, candidates)
}

// DeleteAlias removes code. Deleting a missing alias returns
// [domain.ErrAliasNotFound].
func (s *Store) DeleteAlias(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM aliases WHERE alias = ?`, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAliasNotFound
	}
	return nil
}

// ListAliases returns every alias ordered by code.
func (s *Store) ListAliases(ctx context.Context) ([]Alias, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alias, candidates, updated_at FROM aliases ORDER BY alias`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alias
	for rows.Next() {
		var a Alias
		var raw string
		if err := rows.Scan(&a.Code, &raw, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &a.Candidates); err != nil {
			return nil, fmt.Errorf("decode candidates for %q: %w", a.Code, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ImportAliases upserts every entry of doc in a single transaction and
// returns the number of aliases written.
func (s *Store) ImportAliases(ctx context.Context, doc map[string][]string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	n := 0
	for code, candidates := range doc {
		if err := upsertAlias(ctx, tx, code, candidates); err != nil {
			return 0, err
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertAlias(ctx context.Context, db execer, code string, candidates []string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("alias code must not be empty")
	}
	if len(candidates) == 0 {
		return fmt.Errorf("alias %q: at least one candidate is required", code)
	}
	raw, err := json.Marshal(candidates)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO aliases(alias, candidates, updated_at) VALUES(?, ?, ?)
ON CONFLICT(alias) DO UPDATE SET candidates = excluded.candidates, updated_at = excluded.updated_at`,
		code, string(raw), time.Now().UTC())
	return err
}
