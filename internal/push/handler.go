// Package push serves the HTTP push contract and the operator endpoints of the worker.
package push

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"logworker/internal/logger"
	"logworker/internal/orchestrator"
	"logworker/internal/store"
	pkgerrors "logworker/pkg/errors"
	"logworker/pkg/models"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	msgDecodeFailed     = "Failed to decode message"
	msgProcessingFailed = "Processing failed"
	msgStorageFailed    = "Storage failed"
)

type Orchestrator interface {
	Handle(ctx context.Context, env models.PushEnvelope) orchestrator.Result
}

type RecordReader interface {
	Get(ctx context.Context, tenantID, logID string) (models.ProcessedRecord, error)
}

// Response is the body returned for every bindable push delivery.
type Response struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	TenantID  string `json:"tenant_id,omitempty"`
	LogID     string `json:"log_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Handler struct {
	orchestrator   Orchestrator
	records        RecordReader
	logger         logger.Logger
	requestTimeout time.Duration
}

// NewHandler builds the push handler. A zero requestTimeout leaves the request context unbounded.
func NewHandler(o Orchestrator, records RecordReader, log logger.Logger, requestTimeout time.Duration) *Handler {
	return &Handler{
		orchestrator:   o,
		records:        records,
		logger:         log,
		requestTimeout: requestTimeout,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	status := pkgerrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, pkgerrors.ToErrorResponse(err))
}

// Push godoc
// @Summary      Deliver a push message
// @Description  Decodes, redacts and stores one queued log. 2xx acknowledges the delivery, any other status asks for redelivery.
// @Tags         push
// @Accept       json
// @Produce      json
// @Param        envelope  body      models.PushEnvelope  true  "Push envelope"
// @Success      200       {object}  Response
// @Failure      400       {object}  map[string]interface{}
// @Failure      429       {object}  map[string]interface{}
// @Failure      500       {object}  Response
// @Router       /push [post]
func (h *Handler) Push(c *gin.Context) {
	var env models.PushEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		h.HandleError(c, pkgerrors.ErrBadEnvelope.WithCause(err))
		return
	}

	ctx := orchestrator.WithTransport(c.Request.Context(), "push")
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	res := h.orchestrator.Handle(ctx, env)
	status, body := respond(res)
	c.JSON(status, body)
}

// respond maps a result onto the push contract: an Ack is always 200, a Nack is always 500.
func respond(res orchestrator.Result) (int, Response) {
	body := Response{MessageID: res.MessageID}

	switch {
	case res.Acked() && res.Err == nil:
		body.Status = statusSuccess
		body.TenantID = res.TenantID
		body.LogID = res.LogID
		return http.StatusOK, body
	case res.Acked():
		body.Status = statusError
		body.Error = msgDecodeFailed
		return http.StatusOK, body
	case res.Stage == orchestrator.StageStore:
		body.Status = statusError
		body.Error = msgStorageFailed
		return http.StatusInternalServerError, body
	default:
		body.Status = statusError
		body.Error = msgProcessingFailed
		return http.StatusInternalServerError, body
	}
}

// GetRecord godoc
// @Summary      Read a processed log
// @Description  Returns the stored record at tenants/{tenant_id}/processed_logs/{log_id}
// @Tags         records
// @Produce      json
// @Param        tenant_id  path      string  true  "Tenant ID"
// @Param        log_id     path      string  true  "Log ID"
// @Success      200        {object}  models.ProcessedRecord
// @Failure      400        {object}  map[string]interface{}
// @Failure      404        {object}  map[string]interface{}
// @Failure      500        {object}  map[string]interface{}
// @Failure      503        {object}  map[string]interface{}
// @Router       /api/v1/tenants/{tenant_id}/logs/{log_id} [get]
func (h *Handler) GetRecord(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	logID := c.Param("log_id")

	rec, err := h.records.Get(c.Request.Context(), tenantID, logID)
	if err != nil {
		h.HandleError(c, recordError(err))
		return
	}
	c.JSON(http.StatusOK, rec)
}

func recordError(err error) error {
	var storeErr *store.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		return pkgerrors.ErrNotFound.WithCause(err)
	case errors.As(err, &storeErr) && storeErr.Kind == store.KindInvalidKey:
		return pkgerrors.ErrValidation.WithCause(err)
	case errors.As(err, &storeErr) && storeErr.Kind == store.KindUnavailable:
		return pkgerrors.ErrServiceUnavailable.WithCause(err)
	default:
		return pkgerrors.ErrInternal.WithCause(err)
	}
}
