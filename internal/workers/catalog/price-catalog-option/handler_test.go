package pricecatalogoption

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

func createTestConfig() *Config {
	return &Config{Timeout: 10 * time.Second}
}

func createTestHandler(t *testing.T, db *sql.DB) *Handler {
	store := catalog.NewStore(db, nil, 5*time.Minute, logger.NewTestLogger(t))
	return NewHandler(createTestConfig(), store, nil, logger.NewTestLogger(t))
}

func optionRows(id string, cost int64, markup float64, minMarkup int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "plan_id", "name", "classification", "cost", "markup", "min_markup", "is_active", "client_price",
	}).AddRow(id, "plan-1", "Elevation A", "elevation", cost, markup, minMarkup, true, int64(0))
}

func TestHandler_Execute_PricesAndPersists(t *testing.T) {
	tests := []struct {
		name          string
		cost          int64
		markup        float64
		minMarkup     int64
		expectedPrice int64
	}{
		{"percentage markup dominates", 1_000_000, 0.20, 50_000, 1_200_000},
		{"floor dominates", 10_000, 0.10, 5_000, 15_000},
		{"free option floors to minMarkup", 0, 0.20, 2_500, 2_500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(`FROM catalog_options`).
				WithArgs("opt-1").
				WillReturnRows(optionRows("opt-1", tt.cost, tt.markup, tt.minMarkup))
			mock.ExpectExec(`UPDATE catalog_options`).
				WithArgs("opt-1", tt.expectedPrice).
				WillReturnResult(sqlmock.NewResult(0, 1))

			handler := createTestHandler(t, db)
			output, err := handler.Execute(context.Background(), &Input{OptionID: "opt-1"})

			require.NoError(t, err)
			assert.Equal(t, "opt-1", output.OptionID)
			assert.Equal(t, tt.expectedPrice, output.ClientPrice)
			assert.False(t, output.Indexed)

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Execute_MissingOption(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM catalog_options`).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)

	handler := createTestHandler(t, db)
	output, err := handler.Execute(context.Background(), &Input{OptionID: "gone"})

	assert.Nil(t, output)
	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeRecordNotFound, stdErr.Code)
}

func TestHandler_Execute_InvalidInputsRejectedBeforeWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// A markup above 1 must never reach the UPDATE.
	mock.ExpectQuery(`FROM catalog_options`).
		WithArgs("opt-bad").
		WillReturnRows(optionRows("opt-bad", 1_000_000, 1.5, 0))

	handler := createTestHandler(t, db)
	output, err := handler.Execute(context.Background(), &Input{OptionID: "opt-bad"})

	assert.Nil(t, output)
	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeValidationFailed, stdErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_EmptyOptionID(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := createTestHandler(t, db)
	output, err := handler.Execute(context.Background(), &Input{})

	assert.Nil(t, output)
	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeValidationFailed, stdErr.Code)
}
