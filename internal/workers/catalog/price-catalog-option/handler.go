// Package pricecatalogoption reprices a single catalog option after an admin
// edits its cost or markup inputs, persists the derived client price, and
// republishes the option to the search index the wizard browses.
package pricecatalogoption

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"homebuilder-pricing/internal/catalog"
	"homebuilder-pricing/internal/common/database"
	commonerrors "homebuilder-pricing/internal/common/errors"
	"homebuilder-pricing/internal/common/logger"
	"homebuilder-pricing/internal/common/metrics"
	"homebuilder-pricing/internal/common/observability"
	"homebuilder-pricing/internal/pricing"
)

const (
	TaskType = "price-catalog-option"
)

type Handler struct {
	config       *Config
	store        *catalog.Store
	es           *database.ElasticsearchClient
	logger       logger.Logger
	errorHandler *commonerrors.ErrorHandler
}

func NewHandler(config *Config, store *catalog.Store, es *database.ElasticsearchClient, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        store,
		es:           es,
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
	if input.OptionID == "" {
		return nil, commonerrors.NewValidationFailedError("optionId is required")
	}

	opt, err := h.store.GetOption(ctx, input.OptionID)
	if err != nil {
		return nil, err
	}

	clientPrice, err := pricing.OptionPrice(opt.Cost, opt.Markup, opt.MinMarkup)
	if err != nil {
		return nil, commonerrors.NewValidationFailedError(err.Error())
	}

	if err := h.store.UpdateOptionPrice(ctx, opt.ID, clientPrice); err != nil {
		return nil, err
	}
	metrics.PricesComputed.WithLabelValues("option").Inc()

	opt.ClientPrice = clientPrice
	indexed := h.indexOption(ctx, opt.ID, opt)

	h.logger.Info("option repriced", map[string]interface{}{
		"optionId":    opt.ID,
		"clientPrice": clientPrice,
		"indexed":     indexed,
	})

	return &Output{
		OptionID:    opt.ID,
		ClientPrice: clientPrice,
		Indexed:     indexed,
	}, nil
}

// indexOption republishes the priced option. Indexing is best effort: a
// search lag is acceptable, a blocked repricing is not.
func (h *Handler) indexOption(ctx context.Context, id string, doc interface{}) bool {
	if h.es == nil || !h.config.IndexOnWrite {
		return false
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return false
	}

	res, err := h.es.Client.Index(
		h.config.OptionIndex,
		bytes.NewReader(body),
		h.es.Client.Index.WithDocumentID(id),
		h.es.Client.Index.WithContext(ctx),
	)
	if err != nil {
		h.logger.Warn("option index update failed", map[string]interface{}{
			"optionId":  id,
			"errorCode": string(commonerrors.ErrCodeSearchIndexFailed),
			"error":     err.Error(),
		})
		return false
	}
	defer res.Body.Close()

	if res.IsError() {
		h.logger.Warn("option index update rejected", map[string]interface{}{
			"optionId":  id,
			"errorCode": string(commonerrors.ErrCodeSearchIndexFailed),
			"status":    res.Status(),
		})
		return false
	}
	return true
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
