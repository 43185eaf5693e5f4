package promotebasepackage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homebuilder-pricing/internal/catalog"
	commonerrors "homebuilder-pricing/internal/common/errors"
	"homebuilder-pricing/internal/common/logger"
)

func createTestHandler(t *testing.T, db *sql.DB) *Handler {
	store := catalog.NewStore(db, nil, 5*time.Minute, logger.NewTestLogger(t))
	resolver := catalog.NewResolver(db, store, logger.NewTestLogger(t))
	return NewHandler(&Config{Timeout: 10 * time.Second}, resolver, logger.NewTestLogger(t))
}

func packageRows() *sqlmock.Rows {
	columns := []string{
		"id", "plan_id", "name", "base_package", "markup", "min_markup",
		"fixtures_cost", "lvp_cost", "carpet_cost", "backsplash_cost", "master_bath_tile_cost",
		"countertop_cost", "primary_cabinets_cost", "secondary_cabinets_cost", "cabinet_hardware_cost",
		"soft_close", "soft_close_price", "is_active", "total_cost", "client_price",
	}
	rows := sqlmock.NewRows(columns)
	rows.AddRow("pkg-new-base", "plan-1", "Classic", false, 0.35, int64(20_000),
		int64(500_000), int64(400_000), nil, nil, nil,
		int64(600_000), nil, nil, nil,
		false, int64(0), true, int64(0), int64(0))
	rows.AddRow("pkg-upgrade", "plan-1", "Luxe", false, 0.35, int64(20_000),
		int64(1_000_000), int64(800_000), nil, nil, nil,
		int64(1_000_000), nil, nil, nil,
		false, int64(0), true, int64(0), int64(0))
	return rows
}

func TestHandler_Execute_PromotesAndReportsCascade(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM plans WHERE id = \$1 FOR UPDATE`).
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("plan-1"))
	mock.ExpectExec(`SET base_package = TRUE`).
		WithArgs("pkg-new-base", "plan-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET base_package = FALSE`).
		WithArgs("plan-1", "pkg-new-base").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM interior_packages`).
		WithArgs("plan-1").
		WillReturnRows(packageRows())
	mock.ExpectExec(`SET total_cost = \$2, client_price = \$3`).
		WithArgs("pkg-new-base", int64(1_500_000), int64(20_000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET total_cost = \$2, client_price = \$3`).
		WithArgs("pkg-upgrade", int64(2_800_000), int64(3_055_000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	handler := createTestHandler(t, db)
	output, err := handler.Execute(context.Background(), &Input{
		PlanID:    "plan-1",
		PackageID: "pkg-new-base",
	})

	require.NoError(t, err)
	assert.Equal(t, "pkg-new-base", output.PackageID)
	assert.Equal(t, 2, output.RecomputedPackages)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_MissingIDs(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := createTestHandler(t, db)

	for _, input := range []*Input{
		{},
		{PlanID: "plan-1"},
		{PackageID: "pkg-1"},
	} {
		output, err := handler.Execute(context.Background(), input)
		assert.Nil(t, output)
		var stdErr *commonerrors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, commonerrors.ErrCodeValidationFailed, stdErr.Code)
	}
}

func TestHandler_Execute_UnknownPackage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM plans WHERE id = \$1 FOR UPDATE`).
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("plan-1"))
	mock.ExpectExec(`SET base_package = TRUE`).
		WithArgs("pkg-gone", "plan-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	handler := createTestHandler(t, db)
	output, err := handler.Execute(context.Background(), &Input{
		PlanID:    "plan-1",
		PackageID: "pkg-gone",
	})

	assert.Nil(t, output)
	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeRecordNotFound, stdErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}
