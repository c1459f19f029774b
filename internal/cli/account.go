package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/usecases"
)

var googleIDToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a Google id token",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		if _, err := a.api.LoginWithGoogle(ctx, googleIDToken); err != nil {
			return explain(err)
		}

		user, err := a.api.Me(ctx)
		if err != nil {
			_, _ = fmt.Fprintln(stdout, "Signed in.")
			return nil
		}
		if err := a.creds.Remember(ctx, clients.KeyUserEmail, user.Email); err != nil {
			a.logger.Warn("Failed to remember email", "error", err)
		}
		_, _ = fmt.Fprintf(stdout, "Signed in as %s.\n", orDash(user.Email))
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		if err := a.creds.ClearToken(ctx, clients.ScopeUser); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "Signed out.")
		return nil
	}),
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		users := usecases.NewUserService(a.logger, a.api, a.creds)
		user, err := users.Current(ctx)
		if err != nil {
			return explain(err)
		}
		if jsonOutput {
			return printJSON(user)
		}

		w := newTable("EMAIL", "NAME", "PROVIDER", "PLAN", "CREDITS")
		row(w, orDash(user.Email), orDash(user.DisplayName), orDash(user.Provider), stringOrDash(user.PlanLabel), floatOrDash(user.TotalCredits))
		return w.Flush()
	}),
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show the credit balance",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		users := usecases.NewUserService(a.logger, a.api, a.creds)
		billing := usecases.NewBillingService(a.logger, a.api, users)

		credits, err := billing.Credits(ctx)
		if err != nil {
			return explain(err)
		}
		if jsonOutput {
			return printJSON(credits)
		}

		w := newTable("TOTAL", "PREPAID", "SUBSCRIPTION")
		row(w, fmt.Sprintf("%.2f", credits.Total()), floatOrDash(credits.PrepaidCredits), floatOrDash(credits.SubscriptionCredits))
		return w.Flush()
	}),
}

func init() {
	loginCmd.Flags().StringVar(&googleIDToken, "id-token", "", "Google id token from the sign-in flow")
	_ = loginCmd.MarkFlagRequired("id-token")

	rootCmd.AddCommand(loginCmd, logoutCmd, meCmd, creditsCmd)
}
