package routine

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/daybook/internal/test_utils"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var pgContainer *postgres.PostgresContainer
var openDb func() *pgxpool.Pool

func TestMain(m *testing.M) {
	pgContainer, openDb = test_utils.TestWithDB()
	defer func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			log.Errorf("failed to terminate container: %s", err)
		}
	}()
	code := m.Run()
	os.Exit(code)
}

func setupTestRepository(t *testing.T) (context.Context, Repository, int) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		require.NoError(t, pgContainer.Restore(ctx))
	})
	return ctx, NewRepository(db), 1
}

func TestRepositoryImpl_StoreAndList(t *testing.T) {
	// given
	ctx, repo, userId := setupTestRepository(t)
	rule := wakeRule()
	rule.ValidFrom = mustDate(t, "2024-01-01")
	disabled := wakeRule()
	disabled.ID = "nap"
	disabled.Enabled = false

	// when
	_, err := repo.StoreRule(ctx, userId, rule)
	require.NoError(t, err)
	_, err = repo.StoreRule(ctx, userId, disabled)
	require.NoError(t, err)

	// then
	all, err := repo.ListRules(ctx, userId)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := repo.ListEnabledRules(ctx, userId)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, rule, enabled[0])
}

func TestRepositoryImpl_StoreRule_Replaces(t *testing.T) {
	ctx, repo, userId := setupTestRepository(t)
	rule := wakeRule()
	_, err := repo.StoreRule(ctx, userId, rule)
	require.NoError(t, err)

	rule.Title = "Rise and shine"
	rule.DurationMinutes = 10
	_, err = repo.StoreRule(ctx, userId, rule)
	require.NoError(t, err)

	stored, err := repo.GetRule(ctx, userId, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rise and shine", stored.Title)
	assert.Equal(t, 10, stored.DurationMinutes)
}

func TestRepositoryImpl_DeleteRule(t *testing.T) {
	ctx, repo, userId := setupTestRepository(t)
	_, err := repo.StoreRule(ctx, userId, wakeRule())
	require.NoError(t, err)

	require.NoError(t, repo.DeleteRule(ctx, userId, "wake"))
	_, err = repo.GetRule(ctx, userId, "wake")
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.ErrorIs(t, repo.DeleteRule(ctx, userId, "wake"), ErrRuleNotFound)
}
