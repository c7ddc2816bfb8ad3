package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	reportadapter "github.com/billingops/account-rescue-cli/internal/adapters/render/report"
	"github.com/billingops/account-rescue-cli/internal/application"
	"github.com/billingops/account-rescue-cli/internal/domain"
	"github.com/billingops/account-rescue-cli/internal/ports"
)

type discoverFlags struct {
	start      string
	end        string
	pageSize   int
	maxResults int
	jsonOutput bool
}

func (f *discoverFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "Window start date (YYYY-MM-DD or RFC3339), required")
	cmd.Flags().StringVar(&f.end, "end", "", "Window end date (YYYY-MM-DD or RFC3339), required")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Accounts per page (1-200, default from config)")
	cmd.Flags().IntVar(&f.maxResults, "max-results", 0, "Stop after this many candidates (0 = unbounded)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
}

func (f *discoverFlags) params(app *app) (application.DiscoveryParams, error) {
	start, err := parseDate(f.start)
	if err != nil {
		return application.DiscoveryParams{}, fmt.Errorf("parse --start: %w", err)
	}
	end, err := parseDate(f.end)
	if err != nil {
		return application.DiscoveryParams{}, fmt.Errorf("parse --end: %w", err)
	}
	// A bare end date means the whole of that day.
	if len(f.end) == len("2006-01-02") {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}

	pageSize := f.pageSize
	if pageSize == 0 {
		pageSize = app.cfg.PageSize
	}

	return application.DiscoveryParams{
		StartDate:  start,
		EndDate:    end,
		PageSize:   pageSize,
		MaxResults: f.maxResults,
	}, nil
}

func newDiscoverCmd(app *app) *cobra.Command {
	flags := &discoverFlags{}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List accounts whose newest subscription lapsed for nonpayment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := flags.params(app)
			if err != nil {
				return err
			}

			client, err := app.billingClient(cmd.Context())
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

			if flags.jsonOutput {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(candidates)
			}

			output, err := app.renderCandidates(candidates, reportadapter.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render candidates: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Emit candidates as JSON")

	return cmd
}

// progressLogger routes discovery events into the structured log.
func progressLogger(app *app) ports.ProgressFunc {
	return func(event ports.ProgressEvent) {
		switch event.Kind {
		case ports.ProgressStart:
			app.log.Debug().Msg("discovery started")
		case ports.ProgressPage:
			app.log.Debug().
				Int("page", event.Page).
				Int("count", event.Count).
				Int("fetched", event.Fetched).
				Int("candidates", event.Total).
				Msg("page filtered")
		case ports.ProgressWarning:
			app.log.Warn().Str("account", string(event.AccountID)).Msg(event.Message)
		case ports.ProgressSkip:
			app.log.Info().Str("account", string(event.AccountID)).Msg(event.Message)
		case ports.ProgressComplete:
			app.log.Debug().Int("candidates", event.Total).Msg("discovery complete")
		}
	}
}

func parseDate(value string) (time.Time, error) {
	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, value)
}
