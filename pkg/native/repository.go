package native

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/daybook/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	StoreEvent(ctx context.Context, userId int, event calendar.CanonicalEvent) (calendar.CanonicalEvent, error)
	// StoreEventIfAbsent inserts the event unless the user already has one with the same
	// recurrence key. It reports whether a row was created.
	StoreEventIfAbsent(ctx context.Context, userId int, event calendar.CanonicalEvent) (bool, error)
	GetEvent(ctx context.Context, userId int, eventId string) (calendar.CanonicalEvent, error)
	GetEvents(ctx context.Context, userId int, from, to time.Time) ([]calendar.CanonicalEvent, error)
	UpdateEvent(ctx context.Context, userId int, event calendar.CanonicalEvent) (calendar.CanonicalEvent, error)
	DeleteEvent(ctx context.Context, userId int, eventId string) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepositoryImpl) getQueryer() interface {
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	txRepo := &RepositoryImpl{db: r.db, tx: tx}
	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const eventColumns = `uid, title, start_time, end_time, all_day, calendar_name, location, description, recurrence_key`

func (r *RepositoryImpl) StoreEvent(ctx context.Context, userId int, event calendar.CanonicalEvent) (calendar.CanonicalEvent, error) {
	query := `INSERT INTO native_event (` + eventColumns + `, user_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	uid := uuid.New()
	_, err := r.getQueryer().Exec(ctx, query, insertArgs(uid, event, userId)...)
	if err != nil {
		err := fmt.Errorf("could not store native event: %w", err)
		log.Error(err)
		return calendar.CanonicalEvent{}, err
	}
	event.ID = uid.String()
	event.SourceType = calendar.SourceNative
	return event, nil
}

func (r *RepositoryImpl) StoreEventIfAbsent(ctx context.Context, userId int, event calendar.CanonicalEvent) (bool, error) {
	if event.RecurrenceKey == "" {
		return false, fmt.Errorf("%w: event without recurrence key", calendar.ErrMalformedEvent)
	}
	query := `INSERT INTO native_event (` + eventColumns + `, user_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (user_id, recurrence_key) DO NOTHING`

	tag, err := r.getQueryer().Exec(ctx, query, insertArgs(uuid.New(), event, userId)...)
	if err != nil {
		err := fmt.Errorf("could not store native event %s: %w", event.RecurrenceKey, err)
		log.Error(err)
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func insertArgs(uid uuid.UUID, event calendar.CanonicalEvent, userId int) []interface{} {
	var recurrenceKey sql.NullString
	if event.RecurrenceKey != "" {
		recurrenceKey = sql.NullString{String: event.RecurrenceKey, Valid: true}
	}
	return []interface{}{
		uid,
		event.Title,
		event.Start.UTC(),
		event.End.UTC(),
		event.AllDay,
		event.SourceCalendarName,
		event.Location,
		event.Description,
		recurrenceKey,
		userId,
	}
}

func (r *RepositoryImpl) GetEvent(ctx context.Context, userId int, eventId string) (calendar.CanonicalEvent, error) {
	uid, err := uuid.Parse(eventId)
	if err != nil {
		return calendar.CanonicalEvent{}, fmt.Errorf("%w: %s", calendar.ErrEventNotFound, eventId)
	}
	query := `SELECT ` + eventColumns + ` FROM native_event WHERE user_id = $1 AND uid = $2`
	event, err := scanEvent(r.getQueryer().QueryRow(ctx, query, userId, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return calendar.CanonicalEvent{}, fmt.Errorf("%w: %s", calendar.ErrEventNotFound, eventId)
	}
	if err != nil {
		log.Errorf("could not get native event %s: %v", eventId, err)
		return calendar.CanonicalEvent{}, err
	}
	return event, nil
}

func (r *RepositoryImpl) GetEvents(ctx context.Context, userId int, from, to time.Time) ([]calendar.CanonicalEvent, error) {
	// Events overlapping [from, to); zero-length events at from are included.
	query := `SELECT ` + eventColumns + `
			  FROM native_event
			  WHERE user_id = $1
			    AND start_time < $3
			    AND end_time >= $2
			  ORDER BY start_time, uid`

	rows, err := r.getQueryer().Query(ctx, query, userId, from.UTC(), to.UTC())
	if err != nil {
		err := fmt.Errorf("could not query native events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	events := make([]calendar.CanonicalEvent, 0, 16)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *RepositoryImpl) UpdateEvent(ctx context.Context, userId int, event calendar.CanonicalEvent) (calendar.CanonicalEvent, error) {
	uid, err := uuid.Parse(event.ID)
	if err != nil {
		return calendar.CanonicalEvent{}, fmt.Errorf("%w: %s", calendar.ErrEventNotFound, event.ID)
	}
	query := `UPDATE native_event
				SET title = $1, start_time = $2, end_time = $3, all_day = $4, calendar_name = $5, location = $6, description = $7
				WHERE user_id = $8 AND uid = $9
				RETURNING ` + eventColumns

	updated, err := scanEvent(r.getQueryer().QueryRow(ctx, query,
		event.Title,
		event.Start.UTC(),
		event.End.UTC(),
		event.AllDay,
		event.SourceCalendarName,
		event.Location,
		event.Description,
		userId,
		uid,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return calendar.CanonicalEvent{}, fmt.Errorf("%w: %s", calendar.ErrEventNotFound, event.ID)
	}
	if err != nil {
		err := fmt.Errorf("could not update native event %s: %w", event.ID, err)
		log.Error(err)
		return calendar.CanonicalEvent{}, err
	}
	return updated, nil
}

func (r *RepositoryImpl) DeleteEvent(ctx context.Context, userId int, eventId string) error {
	uid, err := uuid.Parse(eventId)
	if err != nil {
		return fmt.Errorf("%w: %s", calendar.ErrEventNotFound, eventId)
	}
	tag, err := r.getQueryer().Exec(ctx, `DELETE FROM native_event WHERE user_id = $1 AND uid = $2`, userId, uid)
	if err != nil {
		err := fmt.Errorf("could not delete native event %s: %w", eventId, err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", calendar.ErrEventNotFound, eventId)
	}
	return nil
}

func scanEvent(row pgx.Row) (calendar.CanonicalEvent, error) {
	var (
		uid           uuid.UUID
		event         calendar.CanonicalEvent
		recurrenceKey sql.NullString
	)
	err := row.Scan(
		&uid,
		&event.Title,
		&event.Start,
		&event.End,
		&event.AllDay,
		&event.SourceCalendarName,
		&event.Location,
		&event.Description,
		&recurrenceKey,
	)
	if err != nil {
		return calendar.CanonicalEvent{}, err
	}
	event.ID = uid.String()
	event.Start = event.Start.UTC()
	event.End = event.End.UTC()
	event.SourceType = calendar.SourceNative
	event.RecurrenceKey = recurrenceKey.String
	return event, nil
}
