package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/alfredjeanlab/waveroom/internal/store"
)

// uniqueViolation is the PostgreSQL error code for unique-constraint hits.
const uniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// messageColumns is the column list used for SELECT statements on the
// messages table.
const messageColumns = `id, author, body, created_at`

// requestColumns selects requests joined with their vote tallies.
const requestColumns = `r.id, r.author, r.title, r.artist, r.status, r.created_at, r.played_at,
	(SELECT COUNT(*) FROM votes v WHERE v.request_id = r.id) AS vote_count`

func queryCreateMessage(ctx context.Context, db executor, m *model.Message) error {
	author, err := authorJSON(m.Author)
	if err != nil {
		return err
	}
	// created_at comes back from the server so the caller holds the
	// authoritative timestamp.
	row := db.QueryRowContext(ctx, `
		INSERT INTO messages (id, author_key, author, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		m.ID, m.Author.Key(), author, m.Body,
	)
	return row.Scan(&m.CreatedAt)
}

func queryListMessages(ctx context.Context, db executor, limit int) ([]*model.Message, error) {
	// Newest N, returned oldest-first for an append-only transcript.
	rows, err := db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM messages
			ORDER BY created_at DESC
			LIMIT $1
		) recent
		ORDER BY created_at ASC`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func queryCreateRequest(ctx context.Context, db executor, r *model.Request) error {
	author, err := authorJSON(r.Author)
	if err != nil {
		return err
	}
	if r.Status == "" {
		r.Status = model.StatusPending
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO requests (id, author_key, author, title, artist, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		r.ID, r.Author.Key(), author, r.Title, r.Artist, string(r.Status),
	)
	return row.Scan(&r.CreatedAt)
}

func queryGetRequest(ctx context.Context, db executor, id string) (*model.Request, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM requests r WHERE r.id = $1`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return r, err
}

func queryListRequests(ctx context.Context, db executor, horizon time.Time) ([]*model.Request, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM requests r
		WHERE r.status IN ('pending', 'playing')
		  AND r.created_at >= $1
		ORDER BY r.created_at ASC`,
		horizon,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func queryUpdateRequestStatus(ctx context.Context, db executor, id string, status model.RequestStatus, playedAt *time.Time) (*model.Request, error) {
	_, err := db.ExecContext(ctx, `
		UPDATE requests SET status = $2, played_at = COALESCE($3, played_at)
		WHERE id = $1`,
		id, string(status), nullTimePtr(playedAt),
	)
	if err != nil {
		return nil, err
	}
	return queryGetRequest(ctx, db, id)
}

func queryCreateVote(ctx context.Context, db executor, v *model.Vote) error {
	voter, err := authorJSON(v.Voter)
	if err != nil {
		return err
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO votes (id, request_id, voter_key, voter)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		v.ID, v.RequestID, v.Voter.Key(), voter,
	)
	if err := row.Scan(&v.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return store.ErrDuplicateVote
		}
		return err
	}
	return nil
}

func queryDeleteVote(ctx context.Context, db executor, requestID, voterKey string) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM votes WHERE request_id = $1 AND voter_key = $2`,
		requestID, voterKey,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryCountVotes(ctx context.Context, db executor, requestID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM votes WHERE request_id = $1`, requestID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count votes for %s: %w", requestID, err)
	}
	return count, nil
}

func queryVotedRequestIDs(ctx context.Context, db executor, voterKey string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT request_id FROM votes WHERE voter_key = $1`, voterKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func queryListHistory(ctx context.Context, db executor, limit int) ([]*model.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT title, artist, played_at FROM requests
		WHERE status = 'played' AND played_at IS NOT NULL
		ORDER BY played_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.Track, &e.Artist, &e.PlayedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
