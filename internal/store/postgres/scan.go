package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// authorJSON serializes an author union for its JSONB column.
func authorJSON(a model.Author) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal author: %w", err)
	}
	return data, nil
}

// scanMessage scans a single row into a model.Message. The row must
// contain columns in the order defined by messageColumns.
func scanMessage(row scannable) (*model.Message, error) {
	var m model.Message
	var author []byte

	if err := row.Scan(&m.ID, &author, &m.Body, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(author, &m.Author); err != nil {
		return nil, fmt.Errorf("unmarshal author for message %s: %w", m.ID, err)
	}
	m.Stage = model.StageConfirmed
	return &m, nil
}

// scanRequest scans a single row into a model.Request. The row must
// contain columns in the order defined by requestColumns.
func scanRequest(row scannable) (*model.Request, error) {
	var r model.Request
	var (
		author   []byte
		playedAt sql.NullTime
	)

	err := row.Scan(
		&r.ID,
		&author,
		&r.Title,
		&r.Artist,
		&r.Status,
		&r.CreatedAt,
		&playedAt,
		&r.VoteCount,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(author, &r.Author); err != nil {
		return nil, fmt.Errorf("unmarshal author for request %s: %w", r.ID, err)
	}
	if playedAt.Valid {
		t := playedAt.Time
		r.PlayedAt = &t
	}
	r.Stage = model.StageConfirmed
	return &r, nil
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
