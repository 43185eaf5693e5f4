// Package catalog is the persistence layer for plans, options, interior
// packages, lots and saved configurations. Reads go through a Redis
// read-through cache; every write invalidates the keys it touches so the
// wizard never prices against a stale record.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	commonerrors "homebuilder-pricing/internal/common/errors"
	"homebuilder-pricing/internal/common/logger"
	"homebuilder-pricing/internal/models"
)

const (
	cacheKeyOption  = "catalog:option:"
	cacheKeyPackage = "catalog:package:"
	cacheKeyPlan    = "catalog:plan:"
	cacheKeyLot     = "catalog:lot:"
)

type Store struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewStore(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *Store {
	return &Store{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "catalog-store"}),
	}
}

// cacheGet unmarshals a cached record into dest. A miss or a cache error is
// reported the same way; the caller falls through to Postgres either way.
func (s *Store) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.redis == nil {
		return false
	}
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		s.logger.Debug("dropping undecodable cache entry", map[string]interface{}{
			"key": key, "error": err.Error(),
		})
		s.redis.Del(ctx, key)
		return false
	}
	return true
}

func (s *Store) cacheSet(ctx context.Context, key string, v interface{}) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("cache write failed", map[string]interface{}{
			"key": key, "error": err.Error(),
		})
	}
}

func (s *Store) invalidate(ctx context.Context, keys ...string) {
	if s.redis == nil || len(keys) == 0 {
		return
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("cache invalidation failed", map[string]interface{}{
			"keys": keys, "error": err.Error(),
		})
	}
}

func (s *Store) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	var plan models.Plan
	if s.cacheGet(ctx, cacheKeyPlan+id, &plan) {
		return &plan, nil
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, base_price
		FROM plans
		WHERE id = $1`, id).Scan(&plan.ID, &plan.Name, &plan.BasePrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, commonerrors.NewRecordNotFoundError("plan", id)
		}
		return nil, queryError("get plan", err)
	}

	s.cacheSet(ctx, cacheKeyPlan+id, plan)
	return &plan, nil
}

func (s *Store) GetOption(ctx context.Context, id string) (*models.CatalogOption, error) {
	var opt models.CatalogOption
	if s.cacheGet(ctx, cacheKeyOption+id, &opt) {
		return &opt, nil
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, plan_id, name, classification, cost, markup, min_markup, is_active, client_price
		FROM catalog_options
		WHERE id = $1`, id).Scan(
		&opt.ID, &opt.PlanID, &opt.Name, &opt.Classification,
		&opt.Cost, &opt.Markup, &opt.MinMarkup, &opt.IsActive, &opt.ClientPrice,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, commonerrors.NewRecordNotFoundError("catalog option", id)
		}
		return nil, queryError("get option", err)
	}

	s.cacheSet(ctx, cacheKeyOption+id, opt)
	return &opt, nil
}

// GetOptions loads several options at once, preserving only the rows that
// exist. Missing ids are silently skipped; resolution decides what absence
// means.
func (s *Store) GetOptions(ctx context.Context, ids []string) ([]models.CatalogOption, error) {
	opts := make([]models.CatalogOption, 0, len(ids))
	for _, id := range ids {
		opt, err := s.GetOption(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		opts = append(opts, *opt)
	}
	return opts, nil
}

const packageColumns = `
	id, plan_id, name, base_package, markup, min_markup,
	fixtures_cost, lvp_cost, carpet_cost, backsplash_cost, master_bath_tile_cost,
	countertop_cost, primary_cabinets_cost, secondary_cabinets_cost, cabinet_hardware_cost,
	soft_close, soft_close_price, is_active, total_cost, client_price`

func scanPackage(row interface{ Scan(...interface{}) error }) (*models.InteriorPackage, error) {
	var pkg models.InteriorPackage
	var fixtures, lvp, carpet, backsplash, masterBathTile sql.NullInt64
	var countertop, primaryCabinets, secondaryCabinets, cabinetHardware sql.NullInt64

	err := row.Scan(
		&pkg.ID, &pkg.PlanID, &pkg.Name, &pkg.BasePackage, &pkg.Markup, &pkg.MinMarkup,
		&fixtures, &lvp, &carpet, &backsplash, &masterBathTile,
		&countertop, &primaryCabinets, &secondaryCabinets, &cabinetHardware,
		&pkg.SoftClose, &pkg.SoftClosePrice, &pkg.IsActive, &pkg.TotalCost, &pkg.ClientPrice,
	)
	if err != nil {
		return nil, err
	}

	assign := func(n sql.NullInt64) *int64 {
		if !n.Valid {
			return nil
		}
		v := n.Int64
		return &v
	}
	pkg.Components = models.ComponentRefs{
		Fixtures:          assign(fixtures),
		LVP:               assign(lvp),
		Carpet:            assign(carpet),
		Backsplash:        assign(backsplash),
		MasterBathTile:    assign(masterBathTile),
		Countertop:        assign(countertop),
		PrimaryCabinets:   assign(primaryCabinets),
		SecondaryCabinets: assign(secondaryCabinets),
		CabinetHardware:   assign(cabinetHardware),
	}
	return &pkg, nil
}

func (s *Store) GetPackage(ctx context.Context, id string) (*models.InteriorPackage, error) {
	var cached models.InteriorPackage
	if s.cacheGet(ctx, cacheKeyPackage+id, &cached) {
		return &cached, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+packageColumns+`
		FROM interior_packages
		WHERE id = $1`, id)
	pkg, err := scanPackage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, commonerrors.NewRecordNotFoundError("interior package", id)
		}
		return nil, queryError("get package", err)
	}

	s.cacheSet(ctx, cacheKeyPackage+id, pkg)
	return pkg, nil
}

// GetBasePackage returns the plan's active base package, or nil when the plan
// has none. Nil is a legitimate state the callers price around or promote out
// of, so it is not an error here.
//
// Base lookups read Postgres directly and never the cache. The base defines
// the pricing baseline for every sibling package, and a promotion committed
// in another process must be visible on the very next read.
func (s *Store) GetBasePackage(ctx context.Context, planID string) (*models.InteriorPackage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+packageColumns+`
		FROM interior_packages
		WHERE plan_id = $1 AND base_package = TRUE AND is_active = TRUE
		LIMIT 1`, planID)
	pkg, err := scanPackage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, queryError("get base package", err)
	}
	return pkg, nil
}

func (s *Store) ListActivePackages(ctx context.Context, planID string) ([]models.InteriorPackage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+packageColumns+`
		FROM interior_packages
		WHERE plan_id = $1 AND is_active = TRUE
		ORDER BY id`, planID)
	if err != nil {
		return nil, queryError("list packages", err)
	}
	defer rows.Close()

	var pkgs []models.InteriorPackage
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, queryError("scan package", err)
		}
		pkgs = append(pkgs, *pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("list packages", err)
	}
	return pkgs, nil
}

func (s *Store) UpdateOptionPrice(ctx context.Context, id string, clientPrice int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE catalog_options
		SET client_price = $2, updated_at = NOW()
		WHERE id = $1`, id, clientPrice)
	if err != nil {
		return queryError("update option price", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commonerrors.NewRecordNotFoundError("catalog option", id)
	}

	s.invalidate(ctx, cacheKeyOption+id)
	return nil
}

func (s *Store) UpdatePackagePrice(ctx context.Context, id string, totalCost, clientPrice int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE interior_packages
		SET total_cost = $2, client_price = $3, updated_at = NOW()
		WHERE id = $1`, id, totalCost, clientPrice)
	if err != nil {
		return queryError("update package price", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commonerrors.NewRecordNotFoundError("interior package", id)
	}

	s.invalidate(ctx, cacheKeyPackage+id)
	return nil
}

func (s *Store) GetLotPricing(ctx context.Context, id string) (*models.LotPricing, error) {
	var lot models.LotPricing
	if s.cacheGet(ctx, cacheKeyLot+id, &lot) {
		return &lot, nil
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, plan_id, lot_number, lot_premium, is_active
		FROM lot_pricing
		WHERE id = $1`, id).Scan(&lot.ID, &lot.PlanID, &lot.LotNumber, &lot.LotPremium, &lot.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, commonerrors.NewRecordNotFoundError("lot pricing", id)
		}
		return nil, queryError("get lot pricing", err)
	}

	s.cacheSet(ctx, cacheKeyLot+id, lot)
	return &lot, nil
}

// ResolveSelections loads the catalog records a selection set points at.
// Selections referencing records that no longer exist resolve to nil and
// contribute nothing; a buyer's stale tab must not break their running total.
func (s *Store) ResolveSelections(ctx context.Context, sel models.SelectionSet) (models.ResolvedSelections, error) {
	var recs models.ResolvedSelections

	if sel.ElevationID != "" {
		opt, err := s.getOptionIfPresent(ctx, sel.ElevationID)
		if err != nil {
			return recs, err
		}
		recs.Elevation = opt
	}
	if sel.InteriorPackageID != "" {
		pkg, err := s.GetPackage(ctx, sel.InteriorPackageID)
		if err != nil {
			if isNotFound(err) {
				pkg = nil
			} else {
				return recs, err
			}
		}
		recs.InteriorPackage = pkg
	}
	if len(sel.StructuralIDs) > 0 {
		opts, err := s.GetOptions(ctx, sel.StructuralIDs)
		if err != nil {
			return recs, err
		}
		recs.Structural = opts
	}
	if len(sel.AdditionalIDs) > 0 {
		opts, err := s.GetOptions(ctx, sel.AdditionalIDs)
		if err != nil {
			return recs, err
		}
		recs.Additional = opts
	}
	if sel.KitchenApplianceID != "" {
		opt, err := s.getOptionIfPresent(ctx, sel.KitchenApplianceID)
		if err != nil {
			return recs, err
		}
		recs.KitchenAppliance = opt
	}
	if sel.LaundryApplianceID != "" {
		opt, err := s.getOptionIfPresent(ctx, sel.LaundryApplianceID)
		if err != nil {
			return recs, err
		}
		recs.LaundryAppliance = opt
	}
	if sel.LotPricingID != "" {
		lot, err := s.GetLotPricing(ctx, sel.LotPricingID)
		if err != nil {
			if isNotFound(err) {
				lot = nil
			} else {
				return recs, err
			}
		}
		recs.LotPricing = lot
	}

	return recs, nil
}

func (s *Store) getOptionIfPresent(ctx context.Context, id string) (*models.CatalogOption, error) {
	opt, err := s.GetOption(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return opt, nil
}

func isNotFound(err error) bool {
	var stdErr *commonerrors.StandardError
	return errors.As(err, &stdErr) && stdErr.Code == commonerrors.ErrCodeRecordNotFound
}

// queryError classifies a failed query: an expired deadline becomes a
// retryable timeout, anything else an execution failure.
func queryError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return commonerrors.NewQueryTimeoutError(op)
	}
	return commonerrors.NewQueryExecutionFailedError(op, err)
}

// SaveConfiguration persists a configuration. A user has at most one
// in-progress configuration per plan; saving again replaces it until it is
// completed, after which further saves are rejected.
func (s *Store) SaveConfiguration(ctx context.Context, cfg *models.HomeConfiguration) error {
	var completed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT completed FROM home_configurations
		WHERE user_id = $1 AND plan_id = $2`, cfg.UserID, cfg.PlanID).Scan(&completed)
	switch {
	case err == nil && completed:
		return commonerrors.NewConfigurationCompletedError(cfg.ID)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return queryError("check configuration", err)
	}

	selections, err := json.Marshal(cfg.Selections)
	if err != nil {
		return fmt.Errorf("marshal selections: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO home_configurations (id, user_id, plan_id, selections, total_price, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id, plan_id)
		DO UPDATE SET id = $1, selections = $4, total_price = $5, completed = $6, updated_at = NOW()`,
		cfg.ID, cfg.UserID, cfg.PlanID, selections, cfg.TotalPrice, cfg.Completed)
	if err != nil {
		return commonerrors.NewDatabaseInsertFailedError("home_configurations", err)
	}
	return nil
}

func (s *Store) GetConfiguration(ctx context.Context, userID, planID string) (*models.HomeConfiguration, error) {
	var cfg models.HomeConfiguration
	var selections []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, selections, total_price, completed, created_at, updated_at
		FROM home_configurations
		WHERE user_id = $1 AND plan_id = $2`, userID, planID).Scan(
		&cfg.ID, &cfg.UserID, &cfg.PlanID, &selections,
		&cfg.TotalPrice, &cfg.Completed, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, commonerrors.NewRecordNotFoundError("home configuration", userID+"/"+planID)
		}
		return nil, queryError("get configuration", err)
	}
	if err := json.Unmarshal(selections, &cfg.Selections); err != nil {
		return nil, fmt.Errorf("unmarshal selections: %w", err)
	}
	return &cfg, nil
}

func (s *Store) DeleteConfiguration(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM home_configurations
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return queryError("delete configuration", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commonerrors.NewRecordNotFoundError("home configuration", id)
	}
	return nil
}
