package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/routerclient"
)

func newPlanCmd(a *app) *cobra.Command {
	var (
		symbol, side, orderType, broker, venue string
		quantity, price                        string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview how the router would handle an order",
		Long: `Send an order to the router's /plans endpoint and print the plan.
Nothing is committed. Example: order-router plan --symbol AAPL --side buy --quantity 10 --price 190`,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := decimal.NewFromString(quantity)
			if err != nil {
				return fmt.Errorf("invalid --quantity %q", quantity)
			}
			req := order.Request{
				Broker:   broker,
				Venue:    venue,
				Symbol:   symbol,
				Side:     order.Side(side),
				Type:     order.Type(orderType),
				Quantity: qty,
			}
			if price != "" {
				p, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("invalid --price %q", price)
				}
				req.Price = &p
			}

			client := routerclient.New(routerclient.Options{
				BaseURL: a.cfg.Engine.RouterURL,
				Timeout: a.cfg.Engine.RouterTimeout,
				Token:   a.cfg.Engine.RouterToken,
			})
			plan, err := client.PreviewPlan(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"plan": plan})
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Instrument symbol")
	cmd.Flags().StringVar(&side, "side", "buy", "buy or sell")
	cmd.Flags().StringVar(&orderType, "type", "market", "market, limit or stop")
	cmd.Flags().StringVar(&quantity, "quantity", "", "Order quantity")
	cmd.Flags().StringVar(&price, "price", "", "Limit/stop price, or the expected price of a market order")
	cmd.Flags().StringVar(&broker, "broker", "paper", "Broker name")
	cmd.Flags().StringVar(&venue, "venue", "sim", "Venue name")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("quantity")

	return cmd
}
