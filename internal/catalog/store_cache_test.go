package catalog

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homebuilder-pricing/internal/common/logger"
)

// Tests here run the store against a real in-memory Redis, so cache writes,
// TTL expiry and invalidation are exercised for real rather than mocked
// command by command.

func createMiniredisStore(t *testing.T, db *sql.DB) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(db, client, testCacheTTL, logger.NewTestLogger(t)), mr
}

func TestStore_GetPlan_ReadThroughCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, mr := createMiniredisStore(t, db)
	ctx := context.Background()

	mock.ExpectQuery(`FROM plans`).
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "base_price"}).
			AddRow("plan-1", "The Aspen", int64(3_250_000_000)))

	plan, err := store.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3_250_000_000), plan.BasePrice)
	assert.True(t, mr.Exists(cacheKeyPlan+"plan-1"))

	// Second read is served from Redis; no further query expectations exist,
	// so a second Postgres round trip would fail the test.
	plan, err = store.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "The Aspen", plan.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetPlan_CacheExpiresAfterTTL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, mr := createMiniredisStore(t, db)
	ctx := context.Background()

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name", "base_price"}).
			AddRow("plan-1", "The Aspen", int64(3_250_000_000))
	}

	mock.ExpectQuery(`FROM plans`).WithArgs("plan-1").WillReturnRows(rows())

	_, err = store.GetPlan(ctx, "plan-1")
	require.NoError(t, err)

	mr.FastForward(testCacheTTL * 2)

	mock.ExpectQuery(`FROM plans`).WithArgs("plan-1").WillReturnRows(rows())

	_, err = store.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdatePackagePrice_DropsCachedPackage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, mr := createMiniredisStore(t, db)
	ctx := context.Background()

	mock.ExpectQuery(`FROM interior_packages`).
		WithArgs("pkg-1").
		WillReturnRows(addPackageRow(sqlmock.NewRows(packageRowColumns()),
			"pkg-1", false, 0.35, 900_000, 800_000, 1_100_000))

	_, err = store.GetPackage(ctx, "pkg-1")
	require.NoError(t, err)
	require.True(t, mr.Exists(cacheKeyPackage+"pkg-1"))

	mock.ExpectExec(`SET total_cost = \$2, client_price = \$3`).
		WithArgs("pkg-1", int64(2_800_000), int64(3_055_000)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdatePackagePrice(ctx, "pkg-1", 2_800_000, 3_055_000))
	assert.False(t, mr.Exists(cacheKeyPackage+"pkg-1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetBasePackage_AlwaysHitsPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, mr := createMiniredisStore(t, db)
	ctx := context.Background()

	baseRows := func() *sqlmock.Rows {
		return addPackageRow(sqlmock.NewRows(packageRowColumns()),
			"pkg-base", true, 0.35, 500_000, 400_000, 600_000)
	}

	// Two reads, two round trips: a promotion committed by another process
	// must show up immediately, so base lookups never populate the cache.
	mock.ExpectQuery(`base_package = TRUE`).WithArgs("plan-1").WillReturnRows(baseRows())
	mock.ExpectQuery(`base_package = TRUE`).WithArgs("plan-1").WillReturnRows(baseRows())

	for i := 0; i < 2; i++ {
		base, err := store.GetBasePackage(ctx, "plan-1")
		require.NoError(t, err)
		require.NotNil(t, base)
		assert.Equal(t, "pkg-base", base.ID)
	}

	assert.Empty(t, mr.Keys())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CacheGet_DropsCorruptEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, mr := createMiniredisStore(t, db)
	ctx := context.Background()

	require.NoError(t, mr.Set(cacheKeyPlan+"plan-1", "{not json"))

	mock.ExpectQuery(`FROM plans`).
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "base_price"}).
			AddRow("plan-1", "The Aspen", int64(3_250_000_000)))

	plan, err := store.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "plan-1", plan.ID)

	// The corrupt entry was replaced with a decodable one.
	cached, err := mr.Get(cacheKeyPlan + "plan-1")
	require.NoError(t, err)
	assert.Contains(t, cached, "The Aspen")

	assert.NoError(t, mock.ExpectationsWereMet())
}
