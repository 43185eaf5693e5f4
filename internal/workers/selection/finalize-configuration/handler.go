// Package finalizeconfiguration persists a buyer's configuration at save
// time. Selections are re-resolved and re-aggregated server-side; the total
// the client displayed is compared against the recomputed one as an integrity
// check but never trusted.
package finalizeconfiguration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"homebuilder-pricing/internal/catalog"
	commonerrors "homebuilder-pricing/internal/common/errors"
	"homebuilder-pricing/internal/common/logger"
	"homebuilder-pricing/internal/common/metrics"
	"homebuilder-pricing/internal/common/observability"
	"homebuilder-pricing/internal/models"
	"homebuilder-pricing/internal/pricing"
)

const (
	TaskType = "finalize-configuration"
)

type Handler struct {
	config       *Config
	store        *catalog.Store
	logger       logger.Logger
	errorHandler *commonerrors.ErrorHandler
}

func NewHandler(config *Config, store *catalog.Store, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        store,
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
	sel := input.Selections
	if sel.PlanID == "" || sel.UserID == "" {
		return nil, commonerrors.NewValidationFailedError("selections.planId and selections.userId are required")
	}

	plan, err := h.store.GetPlan(ctx, sel.PlanID)
	if err != nil {
		return nil, err
	}
	recs, err := h.store.ResolveSelections(ctx, sel)
	if err != nil {
		return nil, err
	}
	breakdown := pricing.Aggregate(*plan, sel, recs)

	mismatch := input.ClientTotal != nil && *input.ClientTotal != breakdown.GrandTotal
	if mismatch {
		// The save proceeds with the server total; the mismatch means a
		// price changed between preview and save, or the client is wrong.
		metrics.TotalMismatches.Inc()
		h.logger.Warn("client total disagrees with server total", map[string]interface{}{
			"userId":      sel.UserID,
			"planId":      sel.PlanID,
			"errorCode":   string(commonerrors.ErrCodeTotalMismatch),
			"clientTotal": *input.ClientTotal,
			"serverTotal": breakdown.GrandTotal,
		})
	}

	cfg := &models.HomeConfiguration{
		ID:         uuid.New().String(),
		UserID:     sel.UserID,
		PlanID:     sel.PlanID,
		Selections: sel,
		TotalPrice: breakdown.GrandTotal,
		Completed:  input.Complete,
	}
	if err := h.store.SaveConfiguration(ctx, cfg); err != nil {
		return nil, err
	}

	h.logger.Info("configuration saved", map[string]interface{}{
		"configurationId": cfg.ID,
		"userId":          sel.UserID,
		"planId":          sel.PlanID,
		"totalPrice":      cfg.TotalPrice,
		"completed":       cfg.Completed,
	})

	return &Output{
		ConfigurationID: cfg.ID,
		TotalPrice:      breakdown.GrandTotal,
		LineItems:       breakdown.LineItems,
		Completed:       cfg.Completed,
		TotalMismatch:   mismatch,
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
