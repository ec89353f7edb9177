package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/orchestrator"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/strategy"
)

// EngineServer serves the strategy orchestrator endpoints.
type EngineServer struct {
	Router *gin.Engine
	Engine *orchestrator.Orchestrator
	Health *Health
	opts   Options
}

func NewEngineServer(engine *orchestrator.Orchestrator, opts Options) *EngineServer {
	opts = opts.withDefaults()
	r, api := newEngine(opts, events.EventStrategyStatus)
	s := &EngineServer{Router: r, Engine: engine, Health: opts.Health, opts: opts}

	api.GET("/strategies", s.listStrategies)
	api.GET("/strategies/:id", s.getStrategy)
	api.GET("/state", s.state)

	protected := api.Group("")
	protected.Use(AuthMiddleware(opts.JWTSecret))
	{
		protected.POST("/strategies", s.createStrategy)
		protected.PATCH("/strategies/:id", s.updateStrategy)
		protected.POST("/strategies/:id/execute", s.executeStrategy)
	}
	return s
}

type createStrategyRequest struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type" binding:"required"`
	Parameters map[string]any `json:"parameters"`
	Enabled    bool           `json:"enabled"`
	Metadata   map[string]any `json:"metadata"`
}

type updateStrategyRequest struct {
	Enabled *bool `json:"enabled"`
}

type executeRequest struct {
	MarketState strategy.MarketState `json:"market_state"`
}

type executeFailure struct {
	errorResponse
	LastError  string            `json:"last_error,omitempty"`
	Executions []order.Execution `json:"executions"`
}

func (s *EngineServer) createStrategy(c *gin.Context) {
	var req createStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c, err)
		return
	}
	rec, err := s.Engine.Register(c.Request.Context(), strategy.Record{
		ID:         req.ID,
		Name:       req.Name,
		Type:       req.Type,
		Parameters: req.Parameters,
		Enabled:    req.Enabled,
		Metadata:   req.Metadata,
	})
	if err != nil {
		respondDomainError(c, s.opts.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *EngineServer) listStrategies(c *gin.Context) {
	recs, err := s.Engine.List(c.Request.Context())
	if err != nil {
		respondDomainError(c, s.opts.Logger, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (s *EngineServer) getStrategy(c *gin.Context) {
	rec, err := s.Engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, s.opts.Logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *EngineServer) updateStrategy(c *gin.Context) {
	var req updateStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c, err)
		return
	}
	if req.Enabled == nil {
		respondError(c, http.StatusUnprocessableEntity, "INVALID_REQUEST", "enabled is required")
		return
	}
	rec, err := s.Engine.SetEnabled(c.Request.Context(), c.Param("id"), *req.Enabled)
	if err != nil {
		respondDomainError(c, s.opts.Logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *EngineServer) executeStrategy(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c, err)
		return
	}
	id := c.Param("id")
	ctx := c.Request.Context()
	execs, err := s.Engine.ExecuteStrategy(ctx, id, req.MarketState)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"executions": execs})
		return
	}
	if errors.Is(err, orchestrator.ErrNotFound) || errors.Is(err, orchestrator.ErrStrategyDisabled) {
		respondDomainError(c, s.opts.Logger, err)
		return
	}

	status, code := classify(err)
	body := executeFailure{
		errorResponse: errorResponse{Detail: err.Error(), Code: code},
		Executions:    execs,
	}
	if body.Executions == nil {
		body.Executions = []order.Execution{}
	}
	if rec, getErr := s.Engine.Get(ctx, id); getErr == nil {
		body.LastError = rec.LastError
	}
	if status == http.StatusInternalServerError {
		s.opts.Logger.Error("strategy execution failed", "strategy_id", id, "error", err)
	}
	c.JSON(status, body)
}

func (s *EngineServer) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.State())
}
