package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	reportadapter "github.com/billingops/account-rescue-cli/internal/adapters/render/report"
	"github.com/billingops/account-rescue-cli/internal/application"
	"github.com/billingops/account-rescue-cli/internal/domain"
	"github.com/billingops/account-rescue-cli/internal/ports"
)

func newRunCmd(app *app) *cobra.Command {
	flags := &discoverFlags{}
	var (
		dryRun bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover rescue candidates and reactivate them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := flags.params(app)
			if err != nil {
				return err
			}

			client, err := app.billingClient(cmd.Context())
			if err != nil {
				return err
			}

			store, err := app.stateStore(runMode(dryRun))
			if err != nil {
				return err
			}

			discoverer := application.NewDiscoverer(client, app.log)
			var candidates []domain.Account
			err = runDiscoverSpinner(cmd.Context(), cmd.ErrOrStderr(), progressLogger(app), func(ctx context.Context, progress ports.ProgressFunc) error {
				params.OnProgress = progress
				var discoverErr error
				candidates, discoverErr = discoverer.Discover(ctx, params)
				return discoverErr
			})
			if err != nil {
				return err
			}

			if len(candidates) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No accounts need rescue in this window.")
				return err
			}

			output, err := app.renderCandidates(candidates, reportadapter.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render candidates: %w", err)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), output); err != nil {
				return err
			}

			if !yes && !dryRun {
				confirmed, err := confirm(cmd, fmt.Sprintf("Reactivate %d account(s)?", len(candidates)))
				if err != nil {
					return err
				}
				if !confirmed {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return err
				}
			}

			runner := application.NewRunner(application.RunnerConfig{
				API:        client,
				Store:      store,
				Log:        app.log,
				DryRun:     dryRun,
				OnProgress: progressLogger(app),
			})
			summary, err := runner.Run(cmd.Context(), candidates, false)
			if err != nil {
				return err
			}

			return printSummary(cmd, app, summary)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Record what would happen without touching the billing service")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runMode(dryRun bool) string {
	if dryRun {
		return "dry-run"
	}
	return "live"
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt); err != nil {
		return false, err
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	answer, err := reader.ReadString('\n')
	if err != nil && answer == "" {
		return false, nil
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func printSummary(cmd *cobra.Command, app *app, summary application.RunSummary) error {
	output, err := app.renderSummary(summary)
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
	return err
}
