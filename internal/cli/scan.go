package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/usecases"
)

var (
	scanChain string
	scanWait  bool
	watchScan bool
	aiLang    string
)

var scanCmd = &cobra.Command{
	Use:   "scan <token-address>",
	Short: "Submit a token for a risk scan",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		session := a.newSession()
		defer session.Close()

		state, err := session.Submit(ctx, entities.Chain(scanChain), args[0])
		if err != nil {
			return explain(err)
		}
		if scanWait && !state.Status.IsTerminal() {
			state = follow(ctx, session)
		}
		return printState(state)
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last scan, resuming it if it is still running",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		session := a.newSession()
		defer session.Close()

		state, err := session.Restore(ctx)
		if err != nil {
			return err
		}
		if watchScan && state.HasJob() && !state.Status.IsTerminal() {
			state = follow(ctx, session)
		}
		return printState(state)
	}),
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the last scan",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		session := a.newSession()
		defer session.Close()

		if err := session.Clear(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "Scan cleared.")
		return nil
	}),
}

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Explain the finished scan with AI (once per scan)",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		session := a.newSession()
		defer session.Close()

		if _, err := session.Restore(ctx); err != nil {
			return err
		}

		state, err := session.RequestAISummary(ctx, entities.Language(aiLang))
		if err != nil {
			return explain(err)
		}
		return printState(state)
	}),
}

func init() {
	scanCmd.Flags().StringVar(&scanChain, "chain", string(entities.ChainEthereum), "chain: ethereum, bsc, arbitrum or base")
	scanCmd.Flags().BoolVar(&scanWait, "wait", true, "follow the scan until it finishes")
	statusCmd.Flags().BoolVar(&watchScan, "watch", false, "follow a running scan until it finishes")
	aiCmd.Flags().StringVar(&aiLang, "lang", "", "summary language: zh or en (default from config)")

	rootCmd.AddCommand(scanCmd, statusCmd, clearCmd, aiCmd)
}

func (a *app) newSession() *usecases.ScanSession {
	cache := usecases.NewJobCache(a.logger, a.store, a.config.Scan.CacheKey, a.config.Scan.ExpiryWindow())
	return usecases.NewScanSession(a.logger, a.api, cache, usecases.ScanOptions{
		PollInterval:    a.config.Scan.PollEvery(),
		DefaultLanguage: entities.Language(a.config.Scan.DefaultLanguage),
	})
}

// follow prints stage changes until the job is terminal, dropped, or ctx is
// cancelled, and returns the last state seen.
func follow(ctx context.Context, session *usecases.ScanSession) entities.ScanState {
	updates, cancel := session.Subscribe()
	defer cancel()

	last := session.State()
	for {
		select {
		case <-ctx.Done():
			return last
		case state, ok := <-updates:
			if !ok {
				return last
			}
			if state.Status != last.Status && !jsonOutput {
				_, _ = fmt.Fprintf(stdout, "status: %s\n", state.Status)
			}
			last = state
			if !state.HasJob() || state.Status.IsTerminal() || state.Error != "" {
				return last
			}
		}
	}
}

// explain turns typed failures into the messages the web app shows.
func explain(err error) error {
	var validationErr *entities.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return fmt.Errorf("invalid input: %s", validationErr.Message)
	case clients.IsInsufficientCredit(err):
		return fmt.Errorf("insufficient credits, top up with `omniscan deposit submit`: %w", err)
	case errors.Is(err, usecases.ErrSignedOut), clients.KindOf(err) == clients.KindUnauthorized:
		return fmt.Errorf("not signed in, run `omniscan login`: %w", err)
	case clients.KindOf(err) == clients.KindAccountDisabled:
		return fmt.Errorf("account disabled, contact support: %w", err)
	case errors.Is(err, usecases.ErrAILocked):
		return errors.New("the AI summary for this scan was already used, submit a new scan to get another one")
	case errors.Is(err, usecases.ErrJobNotDone):
		return errors.New("the scan has not finished yet, check `omniscan status --watch`")
	case errors.Is(err, usecases.ErrNoJob):
		return errors.New("no scan to explain, run `omniscan scan` first")
	}
	return err
}
