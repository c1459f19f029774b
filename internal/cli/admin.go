package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.openly.dev/pointy"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
)

var (
	adminUsername string
	adminPassword string
	adminOTP      string

	patchCredits     float64
	patchPrepaid     float64
	patchActive      bool
	patchDisplayName string
	patchPlan        string

	approveAmount float64
	reviewNote    string
	ledgerUser    int64
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Internal console operations",
}

var adminLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the internal console",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		_, err := a.api.AdminLogin(ctx, clients.AdminCredentials{
			Username: adminUsername,
			Password: adminPassword,
			OTP:      adminOTP,
		})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "Admin signed in.")
		return nil
	}),
}

var adminDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show today's numbers",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		d, err := a.api.Dashboard(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(d)
		}

		w := newTable("METRIC", "VALUE")
		row(w, "Users today", d.UsersToday)
		row(w, "Active users today", d.ActiveUsersToday)
		row(w, "Total users", d.TotalUsers)
		row(w, "Deposits today (USD)", fmt.Sprintf("%.2f", d.DepositsTodayUSD))
		row(w, "Deposits this month (USD)", fmt.Sprintf("%.2f", d.MonthDepositsUSD))
		row(w, "Engine calls today", d.EngineCallsToday)
		row(w, "Engine calls total", d.TotalEngineCalls)
		return w.Flush()
	}),
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		users, err := a.api.Users(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(users)
		}

		w := newTable("ID", "EMAIL", "NAME", "PLAN", "CREDITS", "ACTIVE", "LAST LOGIN")
		for _, u := range users {
			row(w, u.ID, orDash(u.Email), orDash(u.DisplayName), orDash(u.PlanLabel), fmt.Sprintf("%.2f", u.Credits), u.IsActive, orDash(u.LastLoginAt))
		}
		return w.Flush()
	}),
}

var adminUserUpdateCmd = &cobra.Command{
	Use:   "user-update <user-id>",
	Short: "Change credits, plan, name or status of an account",
	Args:  cobra.ExactArgs(1),
	RunE: withAppCmd(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}

		patch := userPatch(cmd.Flags().Changed)
		user, err := a.api.UpdateUser(ctx, id, patch)
		if err != nil {
			return err
		}
		return printJSON(user)
	}),
}

var adminDepositsCmd = &cobra.Command{
	Use:   "deposits",
	Short: "List deposits waiting for review",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		deposits, err := a.api.PendingDeposits(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(deposits)
		}

		w := newTable("ID", "USER", "EMAIL", "TOKEN", "AMOUNT", "MODE", "TX", "CREATED")
		for _, d := range deposits {
			row(w, d.ID, d.UserID, stringOrDash(d.Email), orDash(d.Token), floatOrDash(d.AmountUSD), orDash(string(d.OrderMode)), orDash(d.TxHash), orDash(d.CreatedAt))
		}
		return w.Flush()
	}),
}

var adminApproveCmd = &cobra.Command{
	Use:   "approve <deposit-id>",
	Short: "Confirm a deposit and credit the account",
	Args:  cobra.ExactArgs(1),
	RunE: withAppCmd(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid deposit id %q", args[0])
		}

		var amount *float64
		if cmd.Flags().Changed("amount") {
			amount = pointy.Float64(approveAmount)
		}
		if err := a.api.ApproveDeposit(ctx, id, amount, reviewNote); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Deposit %d approved.\n", id)
		return nil
	}),
}

var adminRejectCmd = &cobra.Command{
	Use:   "reject <deposit-id>",
	Short: "Decline a deposit",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid deposit id %q", args[0])
		}
		if err := a.api.RejectDeposit(ctx, id, reviewNote); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Deposit %d rejected.\n", id)
		return nil
	}),
}

var adminLedgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List credit changes",
	Args:  cobra.NoArgs,
	RunE: withAppCmd(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		var userID *int64
		if cmd.Flags().Changed("user") {
			userID = pointy.Int64(ledgerUser)
		}

		entries, err := a.api.Ledger(ctx, userID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(entries)
		}

		w := newTable("ID", "USER", "DELTA", "BALANCE", "SOURCE", "NOTE", "CREATED")
		for _, e := range entries {
			row(w, e.ID, e.UserID, fmt.Sprintf("%+.2f", e.Delta), floatOrDash(e.BalanceAfter), stringOrDash(e.SourceType), stringOrDash(e.Note), stringOrDash(e.CreatedAt))
		}
		return w.Flush()
	}),
}

// userPatch sends only the flags the admin actually set.
func userPatch(changed func(string) bool) entities.AdminUserPatch {
	var patch entities.AdminUserPatch
	if changed("credits") {
		patch.Credits = pointy.Float64(patchCredits)
	}
	if changed("prepaid") {
		patch.PrepaidCredits = pointy.Float64(patchPrepaid)
	}
	if changed("active") {
		patch.IsActive = pointy.Bool(patchActive)
	}
	if changed("display-name") {
		patch.DisplayName = pointy.String(patchDisplayName)
	}
	if changed("plan") {
		patch.PlanLabel = pointy.String(patchPlan)
	}
	return patch
}

func init() {
	adminLoginCmd.Flags().StringVar(&adminUsername, "username", "", "console username")
	adminLoginCmd.Flags().StringVar(&adminPassword, "password", "", "console password")
	adminLoginCmd.Flags().StringVar(&adminOTP, "otp", "", "one-time code")
	_ = adminLoginCmd.MarkFlagRequired("username")
	_ = adminLoginCmd.MarkFlagRequired("password")

	adminUserUpdateCmd.Flags().Float64Var(&patchCredits, "credits", 0, "subscription credits")
	adminUserUpdateCmd.Flags().Float64Var(&patchPrepaid, "prepaid", 0, "prepaid credits")
	adminUserUpdateCmd.Flags().BoolVar(&patchActive, "active", true, "whether the account may sign in")
	adminUserUpdateCmd.Flags().StringVar(&patchDisplayName, "display-name", "", "display name")
	adminUserUpdateCmd.Flags().StringVar(&patchPlan, "plan", "", "plan label")

	adminApproveCmd.Flags().Float64Var(&approveAmount, "amount", 0, "credited amount in USD (default: as submitted)")
	adminApproveCmd.Flags().StringVar(&reviewNote, "note", "", "review note")
	adminRejectCmd.Flags().StringVar(&reviewNote, "note", "", "review note")
	adminLedgerCmd.Flags().Int64Var(&ledgerUser, "user", 0, "only entries of this user id")

	adminCmd.AddCommand(
		adminLoginCmd,
		adminDashboardCmd,
		adminUsersCmd,
		adminUserUpdateCmd,
		adminDepositsCmd,
		adminApproveCmd,
		adminRejectCmd,
		adminLedgerCmd,
	)
	rootCmd.AddCommand(adminCmd)
}
