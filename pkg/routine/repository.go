package routine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/daybook/pkg/timeutil"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	ListRules(ctx context.Context, userId int) ([]Rule, error)
	ListEnabledRules(ctx context.Context, userId int) ([]Rule, error)
	GetRule(ctx context.Context, userId int, ruleId string) (Rule, error)
	// StoreRule inserts the rule or replaces the one with the same id.
	StoreRule(ctx context.Context, userId int, rule Rule) (Rule, error)
	DeleteRule(ctx context.Context, userId int, ruleId string) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const ruleColumns = `id, title, kind, time_of_day, days_of_week, duration_minutes, valid_from, valid_until, enabled`

func (r *RepositoryImpl) ListRules(ctx context.Context, userId int) ([]Rule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+` FROM routine_rule WHERE user_id = $1 ORDER BY time_of_day, id`, userId)
}

func (r *RepositoryImpl) ListEnabledRules(ctx context.Context, userId int) ([]Rule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+` FROM routine_rule WHERE user_id = $1 AND enabled ORDER BY time_of_day, id`, userId)
}

func (r *RepositoryImpl) queryRules(ctx context.Context, query string, userId int) ([]Rule, error) {
	rows, err := r.db.Query(ctx, query, userId)
	if err != nil {
		err := fmt.Errorf("could not query routine rules: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	rules := make([]Rule, 0, 8)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			err := fmt.Errorf("could not scan routine rule: %w", err)
			log.Error(err)
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *RepositoryImpl) GetRule(ctx context.Context, userId int, ruleId string) (Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM routine_rule WHERE user_id = $1 AND id = $2`
	rule, err := scanRule(r.db.QueryRow(ctx, query, userId, ruleId))
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleId)
	}
	if err != nil {
		log.Errorf("could not get routine rule %s: %v", ruleId, err)
		return Rule{}, err
	}
	return rule, nil
}

func (r *RepositoryImpl) StoreRule(ctx context.Context, userId int, rule Rule) (Rule, error) {
	query := `INSERT INTO routine_rule (` + ruleColumns + `, user_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (user_id, id) DO UPDATE SET
					title = EXCLUDED.title,
					kind = EXCLUDED.kind,
					time_of_day = EXCLUDED.time_of_day,
					days_of_week = EXCLUDED.days_of_week,
					duration_minutes = EXCLUDED.duration_minutes,
					valid_from = EXCLUDED.valid_from,
					valid_until = EXCLUDED.valid_until,
					enabled = EXCLUDED.enabled`

	days := make([]int32, 0, len(rule.DaysOfWeek))
	for _, d := range rule.DaysOfWeek {
		days = append(days, int32(d))
	}
	_, err := r.db.Exec(ctx, query,
		rule.ID,
		rule.Title,
		string(rule.Kind),
		rule.TimeOfDay.String(),
		days,
		rule.DurationMinutes,
		nullableDate(rule.ValidFrom),
		nullableDate(rule.ValidUntil),
		rule.Enabled,
		userId,
	)
	if err != nil {
		err := fmt.Errorf("could not store routine rule %s: %w", rule.ID, err)
		log.Error(err)
		return Rule{}, err
	}
	return rule, nil
}

func (r *RepositoryImpl) DeleteRule(ctx context.Context, userId int, ruleId string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM routine_rule WHERE user_id = $1 AND id = $2`, userId, ruleId)
	if err != nil {
		err := fmt.Errorf("could not delete routine rule %s: %w", ruleId, err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, ruleId)
	}
	return nil
}

func nullableDate(d timeutil.Date) *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.UTCMidnight()
	return &t
}

func scanRule(row pgx.Row) (Rule, error) {
	var (
		rule       Rule
		kind       string
		timeOfDay  string
		days       []int32
		validFrom  *time.Time
		validUntil *time.Time
	)
	err := row.Scan(
		&rule.ID,
		&rule.Title,
		&kind,
		&timeOfDay,
		&days,
		&rule.DurationMinutes,
		&validFrom,
		&validUntil,
		&rule.Enabled,
	)
	if err != nil {
		return Rule{}, err
	}
	rule.Kind = Kind(kind)
	rule.TimeOfDay, err = timeutil.ParseClock(timeOfDay)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	for _, d := range days {
		rule.DaysOfWeek = append(rule.DaysOfWeek, time.Weekday(d))
	}
	if validFrom != nil {
		rule.ValidFrom = timeutil.DateOf(validFrom.UTC())
	}
	if validUntil != nil {
		rule.ValidUntil = timeutil.DateOf(validUntil.UTC())
	}
	return rule, nil
}
