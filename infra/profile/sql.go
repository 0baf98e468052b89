// Package profile provides persistent responder profile stores backed by
// SQLite or PostgreSQL, plus a YAML seed loader.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kilianp07/crisismatch/core/model"
)

// SQLStore keeps one JSON document per responder.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const schema = `CREATE TABLE IF NOT EXISTS responder_profiles (
    id TEXT PRIMARY KEY,
    role TEXT,
    doc TEXT NOT NULL
);`

func newSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Upsert inserts or replaces the profile.
func (s *SQLStore) Upsert(ctx context.Context, p model.ResponderProfile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: profile id is required", model.ErrInvalidCriteria)
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO responder_profiles (id, role, doc) VALUES (?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET role = excluded.role, doc = excluded.doc`),
		p.ID, string(p.Role), string(doc))
	return err
}

// Get returns the profile or model.ErrResponderNotFound.
func (s *SQLStore) Get(ctx context.Context, id string) (model.ResponderProfile, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT doc FROM responder_profiles WHERE id = ?`), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ResponderProfile{}, fmt.Errorf("profile %s: %w", id, model.ErrResponderNotFound)
	}
	if err != nil {
		return model.ResponderProfile{}, err
	}
	var p model.ResponderProfile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return model.ResponderProfile{}, fmt.Errorf("unmarshal profile %s: %w", id, err)
	}
	return p, nil
}

// List returns all profiles ordered by id.
func (s *SQLStore) List(ctx context.Context) ([]model.ResponderProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM responder_profiles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.ResponderProfile
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var p model.ResponderProfile
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("unmarshal profile: %w", err)
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }
