package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "homebuilder-pricing/internal/common/errors"
	"homebuilder-pricing/internal/common/logger"
	"homebuilder-pricing/internal/models"
)

const testCacheTTL = 5 * time.Minute

func createTestStore(t *testing.T, db *sql.DB, redisClient *redis.Client) *Store {
	return NewStore(db, redisClient, testCacheTTL, logger.NewTestLogger(t))
}

func optionColumns() []string {
	return []string{"id", "plan_id", "name", "classification", "cost", "markup", "min_markup", "is_active", "client_price"}
}

func testOption() models.CatalogOption {
	return models.CatalogOption{
		ID:             "opt-1",
		PlanID:         "plan-1",
		Name:           "Elevation A",
		Classification: models.ClassificationElevation,
		Cost:           1_000_000,
		Markup:         0.20,
		MinMarkup:      50_000,
		IsActive:       true,
		ClientPrice:    1_200_000,
	}
}

func addOptionRow(rows *sqlmock.Rows, opt models.CatalogOption) *sqlmock.Rows {
	return rows.AddRow(opt.ID, opt.PlanID, opt.Name, string(opt.Classification),
		opt.Cost, opt.Markup, opt.MinMarkup, opt.IsActive, opt.ClientPrice)
}

func assertErrorCode(t *testing.T, err error, code commonerrors.ErrorCode) {
	t.Helper()
	var stdErr *commonerrors.StandardError
	require.True(t, errors.As(err, &stdErr), "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
}

func TestStore_GetOption_CacheMissThenHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	store := createTestStore(t, db, redisClient)
	ctx := context.Background()

	opt := testOption()
	cacheKey := cacheKeyOption + opt.ID

	// First read: cache miss, Postgres hit, cache write.
	redisMock.ExpectGet(cacheKey).RedisNil()
	mock.ExpectQuery(`SELECT id, plan_id, name, classification, cost, markup, min_markup, is_active, client_price`).
		WithArgs(opt.ID).
		WillReturnRows(addOptionRow(sqlmock.NewRows(optionColumns()), opt))
	cachedData, _ := json.Marshal(opt)
	redisMock.ExpectSet(cacheKey, cachedData, testCacheTTL).SetVal("OK")

	got, err := store.GetOption(ctx, opt.ID)
	require.NoError(t, err)
	assert.Equal(t, opt, *got)

	// Second read: served entirely from cache.
	redisMock.ExpectGet(cacheKey).SetVal(string(cachedData))

	got, err = store.GetOption(ctx, opt.ID)
	require.NoError(t, err)
	assert.Equal(t, opt, *got)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestStore_GetOption_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := createTestStore(t, db, nil)

	mock.ExpectQuery(`FROM catalog_options`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = store.GetOption(context.Background(), "missing")
	assertErrorCode(t, err, commonerrors.ErrCodeRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateOptionPrice_InvalidatesCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	store := createTestStore(t, db, redisClient)

	mock.ExpectExec(`UPDATE catalog_options`).
		WithArgs("opt-1", int64(1_200_000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	redisMock.ExpectDel(cacheKeyOption + "opt-1").SetVal(1)

	err = store.UpdateOptionPrice(context.Background(), "opt-1", 1_200_000)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestStore_UpdateOptionPrice_MissingRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := createTestStore(t, db, nil)

	mock.ExpectExec(`UPDATE catalog_options`).
		WithArgs("gone", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.UpdateOptionPrice(context.Background(), "gone", 100)
	assertErrorCode(t, err, commonerrors.ErrCodeRecordNotFound)
}

func TestStore_GetBasePackage_NoneIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := createTestStore(t, db, nil)

	mock.ExpectQuery(`FROM interior_packages`).
		WithArgs("plan-1").
		WillReturnError(sql.ErrNoRows)

	base, err := store.GetBasePackage(context.Background(), "plan-1")
	assert.NoError(t, err)
	assert.Nil(t, base)
}

func TestStore_ResolveSelections_MissingRecordsResolveToNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := createTestStore(t, db, nil)
	ctx := context.Background()

	elevation := testOption()
	sel := models.SelectionSet{
		UserID:        "user-1",
		PlanID:        "plan-1",
		ElevationID:   elevation.ID,
		StructuralIDs: []string{"str-gone"},
	}

	mock.ExpectQuery(`FROM catalog_options`).
		WithArgs(elevation.ID).
		WillReturnRows(addOptionRow(sqlmock.NewRows(optionColumns()), elevation))
	mock.ExpectQuery(`FROM catalog_options`).
		WithArgs("str-gone").
		WillReturnError(sql.ErrNoRows)

	recs, err := store.ResolveSelections(ctx, sel)
	require.NoError(t, err)
	require.NotNil(t, recs.Elevation)
	assert.Equal(t, elevation.ID, recs.Elevation.ID)
	assert.Empty(t, recs.Structural)
	assert.Nil(t, recs.InteriorPackage)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveConfiguration_ReplacesUntilComplete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := createTestStore(t, db, nil)

	cfg := &models.HomeConfiguration{
		ID:     "cfg-1",
		UserID: "user-1",
		PlanID: "plan-1",
		Selections: models.SelectionSet{
			UserID:      "user-1",
			PlanID:      "plan-1",
			ElevationID: "elev-a",
		},
		TotalPrice: 34_500_000,
	}
	selections, _ := json.Marshal(cfg.Selections)

	mock.ExpectQuery(`SELECT completed FROM home_configurations`).
		WithArgs(cfg.UserID, cfg.PlanID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO home_configurations`).
		WithArgs(cfg.ID, cfg.UserID, cfg.PlanID, selections, cfg.TotalPrice, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.SaveConfiguration(context.Background(), cfg)
	assert.NoError(t, err)

	// Replacing an existing in-progress configuration upserts.
	mock.ExpectQuery(`SELECT completed FROM home_configurations`).
		WithArgs(cfg.UserID, cfg.PlanID).
		WillReturnRows(sqlmock.NewRows([]string{"completed"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO home_configurations`).
		WithArgs(cfg.ID, cfg.UserID, cfg.PlanID, selections, cfg.TotalPrice, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.SaveConfiguration(context.Background(), cfg)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveConfiguration_RejectsCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := createTestStore(t, db, nil)

	cfg := &models.HomeConfiguration{ID: "cfg-1", UserID: "user-1", PlanID: "plan-1"}

	mock.ExpectQuery(`SELECT completed FROM home_configurations`).
		WithArgs(cfg.UserID, cfg.PlanID).
		WillReturnRows(sqlmock.NewRows([]string{"completed"}).AddRow(true))

	err = store.SaveConfiguration(context.Background(), cfg)
	assertErrorCode(t, err, commonerrors.ErrCodeConfigurationCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteConfiguration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := createTestStore(t, db, nil)

	mock.ExpectExec(`DELETE FROM home_configurations`).
		WithArgs("cfg-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.DeleteConfiguration(context.Background(), "cfg-1", "user-1"))

	// Deleting someone else's configuration looks like a missing record.
	mock.ExpectExec(`DELETE FROM home_configurations`).
		WithArgs("cfg-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.DeleteConfiguration(context.Background(), "cfg-1", "user-2")
	assertErrorCode(t, err, commonerrors.ErrCodeRecordNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ExpiredDeadlineReportsQueryTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := createTestStore(t, db, nil)

	mock.ExpectQuery(`FROM catalog_options`).
		WithArgs("opt-slow").
		WillReturnError(context.DeadlineExceeded)

	_, err = store.GetOption(context.Background(), "opt-slow")
	assertErrorCode(t, err, commonerrors.ErrCodeQueryTimeout)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetConfiguration_RoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := createTestStore(t, db, nil)

	sel := models.SelectionSet{UserID: "user-1", PlanID: "plan-1", ElevationID: "elev-a"}
	selections, _ := json.Marshal(sel)
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`FROM home_configurations`).
		WithArgs("user-1", "plan-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "plan_id", "selections", "total_price", "completed", "created_at", "updated_at",
		}).AddRow("cfg-1", "user-1", "plan-1", selections, int64(34_500_000), false, now, now))

	cfg, err := store.GetConfiguration(context.Background(), "user-1", "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "cfg-1", cfg.ID)
	assert.Equal(t, sel, cfg.Selections)
	assert.Equal(t, int64(34_500_000), cfg.TotalPrice)
	assert.False(t, cfg.Completed)
}
