package catalog

import (
	"context"
	"database/sql"
	"errors"

	commonerrors "homebuilder-pricing/internal/common/errors"
	"homebuilder-pricing/internal/common/logger"
	"homebuilder-pricing/internal/common/metrics"
	"homebuilder-pricing/internal/common/observability"
	"homebuilder-pricing/internal/models"
	"homebuilder-pricing/internal/pricing"
)

// Resolver owns base package identity for a plan. Promotion changes the
// pricing baseline of every sibling package, so it runs as one transaction:
// either the new base is set and every sibling carries a recomputed price, or
// nothing changed.
type Resolver struct {
	db     *sql.DB
	store  *Store
	logger logger.Logger
}

func NewResolver(db *sql.DB, store *Store, log logger.Logger) *Resolver {
	return &Resolver{
		db:     db,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "base-package-resolver"}),
	}
}

// ResolveBase returns the plan's active base package, or nil when none exists.
func (r *Resolver) ResolveBase(ctx context.Context, planID string) (*models.InteriorPackage, error) {
	return r.store.GetBasePackage(ctx, planID)
}

// Promote makes the given package the plan's base package and recomputes the
// derived pricing of every active sibling against the new baseline.
//
// The plan row is locked FOR UPDATE for the duration, so two concurrent
// promotions for the same plan serialize: the second waits, then runs against
// the committed state of the first. Promotions for different plans do not
// contend.
func (r *Resolver) Promote(ctx context.Context, planID, packageID string) (recomputed int, err error) {
	ctx, span := observability.StartSpan(ctx, "resolver.promote")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.Promotions.WithLabelValues("error").Inc()
		return 0, commonerrors.NewDatabaseConnectionFailedError(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var lockedID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM plans WHERE id = $1 FOR UPDATE`, planID).Scan(&lockedID)
	if err != nil {
		metrics.Promotions.WithLabelValues("error").Inc()
		if errors.Is(err, sql.ErrNoRows) {
			return 0, commonerrors.NewRecordNotFoundError("plan", planID)
		}
		return 0, commonerrors.NewPromotionConflictError(planID, err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE interior_packages
		SET base_package = TRUE, updated_at = NOW()
		WHERE id = $1 AND plan_id = $2 AND is_active = TRUE`, packageID, planID)
	if err != nil {
		metrics.Promotions.WithLabelValues("error").Inc()
		return 0, queryError("promote package", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		metrics.Promotions.WithLabelValues("not_found").Inc()
		return 0, commonerrors.NewRecordNotFoundError("interior package", packageID)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE interior_packages
		SET base_package = FALSE, updated_at = NOW()
		WHERE plan_id = $1 AND id <> $2 AND base_package = TRUE`, planID, packageID)
	if err != nil {
		metrics.Promotions.WithLabelValues("error").Inc()
		return 0, queryError("demote previous base", err)
	}

	recomputed, err = r.recomputePlanPackages(ctx, tx, planID, packageID)
	if err != nil {
		metrics.Promotions.WithLabelValues("cascade_failed").Inc()
		return 0, commonerrors.NewCascadeFailedError(planID, err)
	}

	if err = tx.Commit(); err != nil {
		metrics.Promotions.WithLabelValues("error").Inc()
		return 0, commonerrors.NewPromotionConflictError(planID, err)
	}

	r.invalidatePlanPackages(ctx, planID)

	metrics.Promotions.WithLabelValues("promoted").Inc()
	metrics.CascadeRecomputed.Observe(float64(recomputed))
	r.logger.Info("base package promoted", map[string]interface{}{
		"planId":     planID,
		"packageId":  packageID,
		"recomputed": recomputed,
	})
	return recomputed, nil
}

// recomputePlanPackages reprices every active package of the plan inside the
// promotion transaction. Any formula or write failure aborts the whole
// promotion.
func (r *Resolver) recomputePlanPackages(ctx context.Context, tx *sql.Tx, planID, baseID string) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+packageColumns+`
		FROM interior_packages
		WHERE plan_id = $1 AND is_active = TRUE
		ORDER BY id`, planID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var pkgs []models.InteriorPackage
	var base *models.InteriorPackage
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return 0, err
		}
		pkg.BasePackage = pkg.ID == baseID
		if pkg.BasePackage {
			base = pkg
		}
		pkgs = append(pkgs, *pkg)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if base == nil {
		return 0, errors.New("promoted package missing from active set")
	}

	recomputed := 0
	for _, pkg := range pkgs {
		priced, err := pricing.PackagePrice(pkg, base)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE interior_packages
			SET total_cost = $2, client_price = $3, updated_at = NOW()
			WHERE id = $1`, pkg.ID, priced.TotalCost, priced.ClientPrice)
		if err != nil {
			return 0, err
		}
		recomputed++
	}
	return recomputed, nil
}

// invalidatePlanPackages drops cached package entries for the plan after a
// promotion commits. The next read repopulates from the recomputed rows.
func (r *Resolver) invalidatePlanPackages(ctx context.Context, planID string) {
	if r.store.redis == nil {
		return
	}
	pkgs, err := r.store.ListActivePackages(ctx, planID)
	if err != nil {
		r.logger.Warn("post-promotion cache invalidation skipped", map[string]interface{}{
			"planId": planID, "error": err.Error(),
		})
		return
	}
	keys := make([]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		keys = append(keys, cacheKeyPackage+pkg.ID)
	}
	r.store.invalidate(ctx, keys...)
}

// AutoPromoteIfMissing promotes pkg to base when its plan has no base package
// yet. The first package created for a plan becomes the pricing baseline
// without an explicit promotion step.
func (r *Resolver) AutoPromoteIfMissing(ctx context.Context, pkg *models.InteriorPackage) (bool, error) {
	base, err := r.ResolveBase(ctx, pkg.PlanID)
	if err != nil {
		return false, err
	}
	if base != nil {
		return false, nil
	}

	r.logger.Warn("plan has no base package, promoting", map[string]interface{}{
		"planId":    pkg.PlanID,
		"packageId": pkg.ID,
	})
	if _, err := r.Promote(ctx, pkg.PlanID, pkg.ID); err != nil {
		return false, err
	}
	return true, nil
}
