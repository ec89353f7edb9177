package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/router"
)

// RouterServer serves the order router endpoints.
type RouterServer struct {
	Router *gin.Engine
	Orders *router.Router
	Health *Health
	opts   Options
}

func NewRouterServer(orders *router.Router, opts Options) *RouterServer {
	opts = opts.withDefaults()
	r, api := newEngine(opts, events.RouterEvents...)
	s := &RouterServer{Router: r, Orders: orders, Health: opts.Health, opts: opts}

	api.GET("/orders/log", s.ordersLog)
	api.GET("/executions", s.executions)
	api.GET("/state", s.state)

	// Mutating routes require a token when a secret is configured.
	protected := api.Group("")
	protected.Use(AuthMiddleware(opts.JWTSecret))
	{
		protected.POST("/orders", s.createOrder)
		protected.POST("/plans", s.createPlan)
		protected.PUT("/state", s.updateState)
		protected.POST("/state/reset", s.resetState)
	}
	return s
}

func (s *RouterServer) bindOrder(c *gin.Context) (order.Request, bool) {
	var req order.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c, err)
		return order.Request{}, false
	}
	if key := strings.TrimSpace(c.GetHeader("Idempotency-Key")); key != "" && req.ClientOrderID == "" {
		req.ClientOrderID = key
	}
	return req, true
}

func (s *RouterServer) createOrder(c *gin.Context) {
	req, ok := s.bindOrder(c)
	if !ok {
		return
	}
	exec, replayed, err := s.Orders.RouteOrder(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, s.opts.Logger, err)
		return
	}
	if replayed {
		s.opts.Logger.Info("order replayed", "order_id", exec.OrderID, "client_order_id", req.ClientOrderID, "subject", CurrentSubject(c))
		c.JSON(http.StatusOK, exec)
		return
	}
	c.JSON(http.StatusCreated, exec)
}

func (s *RouterServer) createPlan(c *gin.Context) {
	req, ok := s.bindOrder(c)
	if !ok {
		return
	}
	plan, err := s.Orders.PreviewPlan(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, s.opts.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (s *RouterServer) ordersLog(c *gin.Context) {
	c.JSON(http.StatusOK, s.Orders.OrdersLog())
}

func (s *RouterServer) executions(c *gin.Context) {
	c.JSON(http.StatusOK, s.Orders.Executions())
}

func (s *RouterServer) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.Orders.State())
}

func (s *RouterServer) updateState(c *gin.Context) {
	var u risk.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		respondInvalidPayload(c, err)
		return
	}
	st, err := s.Orders.UpdateState(u)
	if err != nil {
		respondDomainError(c, s.opts.Logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *RouterServer) resetState(c *gin.Context) {
	c.JSON(http.StatusOK, s.Orders.Reset())
}
