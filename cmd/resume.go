package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	stateadapter "github.com/billingops/account-rescue-cli/internal/adapters/state"
	"github.com/billingops/account-rescue-cli/internal/application"
	"github.com/billingops/account-rescue-cli/internal/domain"
)

func newResumeCmd(app *app) *cobra.Command {
	var (
		dryRun bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue the most recent interrupted rescue run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.stateStore(runMode(dryRun))
			if err != nil {
				return err
			}

			path, err := stateadapter.FindLatest(app.cfg.StateDir, app.cfg.Project)
			if err != nil {
				return err
			}
			if path == "" {
				return domain.ErrNoResumableRun
			}

			loaded, err := stateadapter.Load(path)
			if err != nil {
				return fmt.Errorf("load state from %s: %w", path, err)
			}
			if err := store.ResumeFrom(loaded, path); err != nil {
				return err
			}

			pending := store.PendingIDs()
			if len(pending) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Nothing left to process; cleaning up.")
				if err != nil {
					return err
				}
				return store.Cleanup()
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Resuming %s: %d of %d remaining\n",
				path, len(pending), store.TotalCount())
			if err != nil {
				return err
			}

			client, err := app.billingClient(cmd.Context())
			if err != nil {
				return err
			}

			if !yes && !dryRun {
				confirmed, err := confirm(cmd, fmt.Sprintf("Reactivate %d remaining account(s)?", len(pending)))
				if err != nil {
					return err
				}
				if !confirmed {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return err
				}
			}

			// Re-fetch each pending account so the runner reverifies
			// against live data, not the stale candidate snapshot.
			candidates := make([]domain.Account, 0, len(pending))
			for _, id := range pending {
				account, err := client.GetAccount(cmd.Context(), id)
				if err != nil {
					if errors.Is(err, domain.ErrAccountNotFound) {
						app.log.Warn().Str("account", string(id)).Msg("account no longer exists, skipping")
						if markErr := store.MarkProcessed(id, domain.Outcome{
							Status: domain.OutcomeStatusSkipped,
							Error:  "account no longer exists",
						}); markErr != nil {
							return markErr
						}
						continue
					}
					return fmt.Errorf("fetch account %s: %w", id, err)
				}
				candidates = append(candidates, account)
			}

			runner := application.NewRunner(application.RunnerConfig{
				API:        client,
				Store:      store,
				Log:        app.log,
				DryRun:     dryRun,
				OnProgress: progressLogger(app),
			})
			summary, err := runner.Run(cmd.Context(), candidates, true)
			if err != nil {
				return err
			}

			return printSummary(cmd, app, summary)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Record what would happen without touching the billing service")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
