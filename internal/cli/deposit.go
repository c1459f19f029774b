package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/usecases"
)

var (
	depositTxHash string
	depositAmount float64
	depositToken  string
	depositMode   string
)

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Top up credits with a stablecoin transfer",
}

var depositSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Report a transfer for manual review",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		billing := usecases.NewBillingService(a.logger, a.api, nil)

		deposit, err := billing.SubmitDeposit(ctx, usecases.DepositInput{
			Token:     depositToken,
			TxHash:    depositTxHash,
			AmountUSD: depositAmount,
			OrderMode: entities.OrderMode(depositMode),
		})
		if err != nil {
			return explain(err)
		}
		if jsonOutput {
			return printJSON(deposit)
		}
		_, _ = fmt.Fprintln(stdout, "Submitted for review, credits are added once the transfer is confirmed.")
		return nil
	}),
}

var depositHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List submitted deposits",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		billing := usecases.NewBillingService(a.logger, a.api, nil)

		deposits, err := billing.History(ctx)
		if err != nil {
			return explain(err)
		}
		if jsonOutput {
			return printJSON(deposits)
		}

		w := newTable("ID", "CREATED", "TOKEN", "AMOUNT", "MODE", "STATUS", "TX")
		for _, d := range deposits {
			row(w, d.ID, orDash(d.CreatedAt), orDash(d.Token), floatOrDash(d.AmountUSD), orDash(string(d.OrderMode)), d.Status, orDash(d.TxHash))
		}
		return w.Flush()
	}),
}

func init() {
	depositSubmitCmd.Flags().StringVar(&depositTxHash, "tx", "", "transaction hash of the transfer")
	depositSubmitCmd.Flags().Float64Var(&depositAmount, "amount", 0, "amount in USD (minimum 10)")
	depositSubmitCmd.Flags().StringVar(&depositToken, "token", usecases.TokenUSDT, "USDT or USDC")
	depositSubmitCmd.Flags().StringVar(&depositMode, "mode", string(entities.OrderModePayAsYouGo), "payg or subscription")
	_ = depositSubmitCmd.MarkFlagRequired("tx")
	_ = depositSubmitCmd.MarkFlagRequired("amount")

	depositCmd.AddCommand(depositSubmitCmd, depositHistoryCmd)
	rootCmd.AddCommand(depositCmd)
}
