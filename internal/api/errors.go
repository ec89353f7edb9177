package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/orchestrator"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/router"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/strategy"
)

// StatusClientClosedRequest answers requests whose client went away mid-flight.
const StatusClientClosedRequest = 499

type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// classify maps a domain error to its HTTP status and code.
func classify(err error) (int, string) {
	var (
		violation *risk.Violation
		limitErr  *risk.DailyLimitError
		clientErr *order.RouterClientError
	)
	switch {
	case errors.As(err, &violation):
		return http.StatusBadRequest, "RISK_VIOLATION"
	case errors.As(err, &limitErr):
		return http.StatusForbidden, "DAILY_LIMIT_EXCEEDED"
	case errors.Is(err, router.ErrDuplicateInFlight):
		return http.StatusConflict, "DUPLICATE_IN_FLIGHT"
	case errors.Is(err, orchestrator.ErrStrategyDisabled):
		return http.StatusConflict, "STRATEGY_DISABLED"
	case errors.Is(err, orchestrator.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.As(err, &clientErr):
		return http.StatusBadGateway, "ROUTING_FAILED"
	case errors.Is(err, order.ErrInvalidRequest),
		errors.Is(err, risk.ErrInvalidUpdate),
		errors.Is(err, strategy.ErrUnknownType),
		errors.Is(err, strategy.ErrInvalidParameters):
		return http.StatusUnprocessableEntity, "INVALID_REQUEST"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "CLIENT_CLOSED_REQUEST"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, errorResponse{Detail: msg, Code: code})
}

// respondDomainError answers with the classified status. Server faults are
// logged and their text is not exposed.
func respondDomainError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString(requestIDKey), "error", err)
		respondError(c, status, code, "internal server error")
		return
	}
	if status == StatusClientClosedRequest {
		logger.Info("client closed request", "path", c.FullPath(), "request_id", c.GetString(requestIDKey))
	}
	respondError(c, status, code, err.Error())
}

func respondInvalidPayload(c *gin.Context, err error) {
	respondError(c, http.StatusUnprocessableEntity, "INVALID_PAYLOAD", "invalid request payload: "+err.Error())
}
