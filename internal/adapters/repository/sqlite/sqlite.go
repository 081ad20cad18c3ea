// Package sqlite implements repository.Store on the pure-Go modernc SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/okian/bookrec/internal/adapters/repository"
	"github.com/okian/bookrec/internal/domain/model"
)

//go:embed schema.sql
var schema string

const recordColumns = `id, user_id, item_key, title, author, description, thumbnail,
	preview_link, external_id, categories, score, created_ts, updated_ts`

// Store is a SQLite-backed repository.Store.
type Store struct {
	db   *sql.DB
	opts repository.Options
}

var _ repository.Store = (*Store)(nil)

// Open opens the database at dsn (a file path or "file:" URI).
// With the modernc driver every pragma must be prefixed with "_pragma=".
func Open(ctx context.Context, dsn string, opts ...repository.Option) (*Store, error) {
	if dsn == "" {
		return nil, repository.ErrMissingDSN
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+"_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite db %s", dsn)
	}
	// One writer at a time; WAL lets the single connection serve reads too.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping sqlite db")
	}
	return &Store{db: db, opts: repository.NewOptions(opts...)}, nil
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range repository.Statements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply sqlite schema")
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Upsert(ctx context.Context, rec model.RecommendationRecord) (out model.RecommendationRecord, err error) {
	defer repository.ObserveQuery("upsert", time.Now())
	defer func() { repository.ObserveUpsert(err) }()

	if err := repository.ValidateRecord(rec); err != nil {
		return model.RecommendationRecord{}, err
	}
	cats, err := encodeCategories(rec.Categories)
	if err != nil {
		return model.RecommendationRecord{}, err
	}
	now := s.opts.Clock().UnixMicro()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO recommendations (
			user_id, item_key, title, author, description, thumbnail,
			preview_link, external_id, categories, score, created_ts, updated_ts
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, item_key) DO UPDATE SET
			score = excluded.score,
			preview_link = excluded.preview_link,
			thumbnail = excluded.thumbnail,
			updated_ts = excluded.updated_ts
		RETURNING `+recordColumns,
		rec.UserID, rec.ItemKey, rec.Title, rec.Author, rec.Description, rec.Thumbnail,
		rec.PreviewLink, rec.ExternalID, cats, rec.Score, now, now,
	)
	out, err = scanRecord(row)
	if err != nil {
		return model.RecommendationRecord{}, errors.Wrap(err, "failed to upsert recommendation")
	}
	return out, nil
}

func (s *Store) ListRecommendations(ctx context.Context, userID string, limit int) ([]model.RecommendationRecord, error) {
	defer repository.ObserveQuery("list_recommendations", time.Now())

	if err := repository.ValidateLimit(limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM recommendations
		WHERE user_id = ?
		ORDER BY updated_ts DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recommendations")
	}
	defer rows.Close()

	list := []model.RecommendationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan recommendation")
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate recommendations")
	}
	return list, nil
}

func (s *Store) AppendSignal(ctx context.Context, ev model.SignalEvent) (model.SignalEvent, error) {
	defer repository.ObserveQuery("append_signal", time.Now())

	if err := repository.ValidateSignal(ev); err != nil {
		return model.SignalEvent{}, err
	}
	var emb sql.NullString
	if len(ev.Embedding) > 0 {
		b, err := json.Marshal(ev.Embedding)
		if err != nil {
			return model.SignalEvent{}, errors.Wrap(err, "failed to encode embedding")
		}
		emb = sql.NullString{String: string(b), Valid: true}
	}
	created := ev.CreatedAt
	if created.IsZero() {
		created = s.opts.Clock()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO signal_events (user_id, subject, description, embedding, created_ts)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, user_id, subject, description, embedding, created_ts`,
		ev.UserID, ev.Subject, ev.Description, emb, created.UnixMicro(),
	)
	out, err := scanSignal(row)
	if err != nil {
		return model.SignalEvent{}, errors.Wrap(err, "failed to append signal")
	}
	return out, nil
}

func (s *Store) RecentSignals(ctx context.Context, userID string, limit int) ([]model.SignalEvent, error) {
	defer repository.ObserveQuery("recent_signals", time.Now())

	if err := repository.ValidateLimit(limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, subject, description, embedding, created_ts
		FROM signal_events
		WHERE user_id = ?
		ORDER BY created_ts DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list signals")
	}
	defer rows.Close()

	list := []model.SignalEvent{}
	for rows.Next() {
		ev, err := scanSignal(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan signal")
		}
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate signals")
	}
	return list, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.RecommendationRecord, error) {
	var (
		rec              model.RecommendationRecord
		cats             string
		created, updated int64
	)
	if err := row.Scan(
		&rec.ID, &rec.UserID, &rec.ItemKey, &rec.Title, &rec.Author, &rec.Description,
		&rec.Thumbnail, &rec.PreviewLink, &rec.ExternalID, &cats, &rec.Score, &created, &updated,
	); err != nil {
		return model.RecommendationRecord{}, err
	}
	if err := json.Unmarshal([]byte(cats), &rec.Categories); err != nil {
		return model.RecommendationRecord{}, errors.Wrap(err, "failed to decode categories")
	}
	rec.CreatedAt = time.UnixMicro(created).UTC()
	rec.UpdatedAt = time.UnixMicro(updated).UTC()
	return rec, nil
}

func scanSignal(row scanner) (model.SignalEvent, error) {
	var (
		ev      model.SignalEvent
		emb     sql.NullString
		created int64
	)
	if err := row.Scan(&ev.ID, &ev.UserID, &ev.Subject, &ev.Description, &emb, &created); err != nil {
		return model.SignalEvent{}, err
	}
	if emb.Valid && emb.String != "" {
		if err := json.Unmarshal([]byte(emb.String), &ev.Embedding); err != nil {
			return model.SignalEvent{}, errors.Wrap(err, "failed to decode embedding")
		}
	}
	ev.CreatedAt = time.UnixMicro(created).UTC()
	return ev, nil
}

func encodeCategories(cats []string) (string, error) {
	if cats == nil {
		cats = []string{}
	}
	b, err := json.Marshal(cats)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode categories")
	}
	return string(b), nil
}
