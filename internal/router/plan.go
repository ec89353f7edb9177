package router

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
)

// previewer is implemented by venues that can describe a fill without executing it.
type previewer interface {
	Preview(o order.Order, price decimal.Decimal) order.Execution
}

// Plan is the dry-run outcome of a request.
type Plan struct {
	Order             order.Order      `json:"order"`
	Stage             Stage            `json:"stage"`
	Accepted          bool             `json:"accepted"`
	Reason            string           `json:"reason,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	Notional          *decimal.Decimal `json:"notional,omitempty"`
	Mode              risk.Mode        `json:"mode"`
	Venue             string           `json:"venue,omitempty"`
	DailyNotional     decimal.Decimal  `json:"daily_notional"`
	DailyLimit        decimal.Decimal  `json:"daily_limit"`
	ProjectedNotional *decimal.Decimal `json:"projected_notional,omitempty"`
	ExpectedExecution *order.Execution `json:"expected_execution,omitempty"`

	err error
}

// Err returns the error RouteOrder would have returned for the same request
// at the same instant, or nil when the plan is accepted.
func (p Plan) Err() error { return p.err }

// PreviewPlan runs the same decisions as RouteOrder without touching the
// tracker, the venue or the logs. Only malformed requests return an error.
func (r *Router) PreviewPlan(_ context.Context, req order.Request) (Plan, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return Plan{}, err
	}

	st := r.tracker.Snapshot()
	plan := Plan{
		Order:         order.New("preview", req, r.now()),
		Stage:         StageReceived,
		Mode:          st.Mode,
		DailyNotional: st.CurrentNotional,
		DailyLimit:    st.Limit,
	}

	assessment, err := risk.Evaluate(req, r.rules, r.prices)
	if err != nil {
		return plan.fail(StageRejectedRisk, err), nil
	}
	plan.Stage = StageRiskChecked
	plan.Price = &assessment.Price
	plan.Notional = &assessment.Notional

	amount := r.holdAmount(st.Mode, req, assessment.Notional)
	projected := st.CurrentNotional.Add(amount)
	plan.ProjectedNotional = &projected
	if err := r.tracker.Check(amount); err != nil {
		return plan.fail(StageRejectedLimit, err), nil
	}
	plan.Stage = StageLimitChecked

	adapter, err := r.adapterFor(st.Mode, req.Broker)
	if err != nil {
		return plan.fail(StageRoutingFailed, err), nil
	}
	plan.Venue = adapter.Name()
	if adapter != r.paper {
		plan.Order.LimitPrice = r.collarPrice(req, assessment.Price)
	}
	if p, ok := adapter.(previewer); ok {
		expected := p.Preview(plan.Order, assessment.Price)
		plan.ExpectedExecution = &expected
	}
	plan.Accepted = true
	return plan, nil
}

func (p Plan) fail(s Stage, err error) Plan {
	p.Stage = s
	p.Reason = err.Error()
	p.err = err
	return p
}
