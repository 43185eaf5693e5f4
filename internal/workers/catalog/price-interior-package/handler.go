// Package priceinteriorpackage reprices one interior package after a
// component or markup change. Upgrade packages price as a delta against the
// plan's base package; if the plan has none yet, this package is promoted to
// base on the spot.
package priceinteriorpackage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"homebuilder-pricing/internal/catalog"
	commonerrors "homebuilder-pricing/internal/common/errors"
	"homebuilder-pricing/internal/common/logger"
	"homebuilder-pricing/internal/common/metrics"
	"homebuilder-pricing/internal/common/observability"
	"homebuilder-pricing/internal/pricing"
)

const (
	TaskType = "price-interior-package"
)

type Handler struct {
	config       *Config
	store        *catalog.Store
	resolver     *catalog.Resolver
	logger       logger.Logger
	errorHandler *commonerrors.ErrorHandler
}

func NewHandler(config *Config, store *catalog.Store, resolver *catalog.Resolver, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        store,
		resolver:     resolver,
		logger:       scoped,
		errorHandler: commonerrors.NewErrorHandler(scoped),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job,
			commonerrors.NewValidationFailedError(fmt.Sprintf("parse input: %v", err)))
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(commonerrors.ErrCodeValidationFailed)).Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := observability.StartJobSpan(ctx, TaskType, job.Key)
	defer span.End()

	output, err := h.execute(ctx, &input)
	if err != nil {
		span.RecordError(err)
		h.errorHandler.HandleJobError(ctx, client, job, err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode(err)).Inc()
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.PackageID == "" {
		return nil, commonerrors.NewValidationFailedError("packageId is required")
	}

	pkg, err := h.store.GetPackage(ctx, input.PackageID)
	if err != nil {
		return nil, err
	}
	if err := pricing.ValidatePackageInputs(*pkg); err != nil {
		return nil, commonerrors.NewValidationFailedError(err.Error())
	}

	if !pkg.BasePackage {
		promoted, err := h.resolver.AutoPromoteIfMissing(ctx, pkg)
		if err != nil {
			return nil, err
		}
		if promoted {
			// The promotion already repriced this package along with its
			// siblings; report the committed numbers.
			fresh, err := h.store.GetPackage(ctx, pkg.ID)
			if err != nil {
				return nil, err
			}
			return &Output{
				PackageID:    fresh.ID,
				TotalCost:    fresh.TotalCost,
				ClientPrice:  fresh.ClientPrice,
				BasePromoted: true,
			}, nil
		}
	}

	base, err := h.resolver.ResolveBase(ctx, pkg.PlanID)
	if err != nil {
		return nil, err
	}

	priced, err := pricing.PackagePrice(*pkg, base)
	if err != nil {
		if errors.Is(err, pricing.ErrNoBasePackage) {
			return nil, commonerrors.NewNoBasePackageError(pkg.PlanID)
		}
		return nil, commonerrors.NewValidationFailedError(err.Error())
	}

	if err := h.store.UpdatePackagePrice(ctx, pkg.ID, priced.TotalCost, priced.ClientPrice); err != nil {
		return nil, err
	}
	metrics.PricesComputed.WithLabelValues("package").Inc()

	h.logger.Info("package repriced", map[string]interface{}{
		"packageId":   pkg.ID,
		"totalCost":   priced.TotalCost,
		"clientPrice": priced.ClientPrice,
	})

	return &Output{
		PackageID:   pkg.ID,
		TotalCost:   priced.TotalCost,
		ClientPrice: priced.ClientPrice,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func errorCode(err error) string {
	if stdErr, ok := err.(*commonerrors.StandardError); ok {
		return string(stdErr.Code)
	}
	return "INTERNAL_ERROR"
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
