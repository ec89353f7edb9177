package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/strategy"
)

type executeResult struct {
	StrategyID string            `json:"strategy_id"`
	Symbol     string            `json:"symbol"`
	Executions []order.Execution `json:"executions"`
	Error      string            `json:"error,omitempty"`
}

func newExecuteCmd(a *app) *cobra.Command {
	var marketPath, strategiesPath string

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run every enabled strategy once against market snapshots",
		Long: `Load strategies and market snapshots from YAML, run each enabled strategy
against every snapshot and submit the resulting orders to the configured router.
Example: order-router execute --market market.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if strategiesPath == "" {
				strategiesPath = a.cfg.Engine.StrategiesFile
			}
			states, err := strategy.LoadMarketStates(marketPath)
			if err != nil {
				return fmt.Errorf("load market: %w", err)
			}
			recs, err := loadStrategies(strategiesPath, a.logger)
			if err != nil {
				return err
			}

			eng, err := buildEngine(ctx, a.cfg, a.logger, nil, events.NewBus())
			if err != nil {
				return err
			}
			defer eng.Close()
			if err := eng.orch.Sync(ctx, recs); err != nil {
				return err
			}

			var (
				results []executeResult
				errs    []error
			)
			// snapshots in file order; every enabled strategy sees each one
			for _, st := range states {
				if st.Timestamp.IsZero() {
					st.Timestamp = time.Now().UTC()
				}
				for _, rec := range recs {
					if !rec.Enabled {
						continue
					}
					execs, err := eng.orch.ExecuteStrategy(ctx, rec.ID, st)
					res := executeResult{StrategyID: rec.ID, Symbol: st.Symbol, Executions: execs}
					if err != nil {
						res.Error = err.Error()
						errs = append(errs, fmt.Errorf("strategy %s: %w", rec.ID, err))
					}
					results = append(results, res)
				}
			}

			if err := writeJSON(cmd.OutOrStdout(), map[string]any{
				"results": results,
				"state":   eng.orch.State(),
			}); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&marketPath, "market", "", "YAML file with market snapshots under a top-level market key")
	cmd.Flags().StringVar(&strategiesPath, "strategies", "", "Strategies YAML file (defaults to engine.strategies_file)")
	_ = cmd.MarkFlagRequired("market")

	return cmd
}
