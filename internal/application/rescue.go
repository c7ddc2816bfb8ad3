package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/billingops/account-rescue-cli/internal/domain"
	"github.com/billingops/account-rescue-cli/internal/ports"
	"github.com/billingops/account-rescue-cli/internal/redact"
)

const rescueNote = "Subscription reactivated by automated rescue after nonpayment expiration"

type RunnerConfig struct {
	API   ports.BillingAPI
	Store ports.RunStateStore
	Log   zerolog.Logger
	// DryRun records every candidate as skipped without touching the
	// billing service.
	DryRun     bool
	OnProgress ports.ProgressFunc
}

// Runner drives the per-candidate rescue loop: reverify, reactivate the
// lapsed subscription, leave an audit note, and checkpoint. Checkpoints are
// durable before the next candidate begins.
type Runner struct {
	api    ports.BillingAPI
	store  ports.RunStateStore
	log    zerolog.Logger
	dryRun bool
	notify ports.ProgressFunc
}

type AccountOutcome struct {
	AccountID domain.AccountID
	Outcome   domain.Outcome
}

type RunSummary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Outcomes  []AccountOutcome
}

func NewRunner(cfg RunnerConfig) *Runner {
	notify := cfg.OnProgress
	if notify == nil {
		notify = func(ports.ProgressEvent) {}
	}

	return &Runner{
		api:    cfg.API,
		store:  cfg.Store,
		log:    cfg.Log,
		dryRun: cfg.DryRun,
		notify: notify,
	}
}

// Run processes candidates in order. When resuming, the store already holds
// the run's bookkeeping and Initialize is skipped. One candidate failing
// does not stop the batch; the state file is removed only after a run with
// no failures.
func (r *Runner) Run(ctx context.Context, candidates []domain.Account, resume bool) (RunSummary, error) {
	if !resume {
		ids := make([]domain.AccountID, 0, len(candidates))
		for _, account := range candidates {
			ids = append(ids, account.ID)
		}
		if err := r.store.Initialize(ids); err != nil {
			return RunSummary{}, fmt.Errorf("initialize run state: %w", err)
		}
	}

	r.notify(ports.ProgressEvent{Kind: ports.ProgressStart, Total: len(candidates)})

	summary := RunSummary{}
	for i, account := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run interrupted: %w", err)
		}

		outcome := r.process(ctx, account)
		if err := r.store.MarkProcessed(account.ID, outcome); err != nil {
			return summary, fmt.Errorf("record outcome for %s: %w", account.ID, err)
		}

		summary.Outcomes = append(summary.Outcomes, AccountOutcome{AccountID: account.ID, Outcome: outcome})
		switch outcome.Status {
		case domain.OutcomeStatusSuccess:
			summary.Succeeded++
		case domain.OutcomeStatusFailed:
			summary.Failed++
		case domain.OutcomeStatusSkipped:
			summary.Skipped++
		}

		r.notify(ports.ProgressEvent{
			Kind:      ports.ProgressPage,
			Page:      i + 1,
			Count:     1,
			Fetched:   i + 1,
			Total:     len(candidates),
			AccountID: account.ID,
			Message:   string(outcome.Status),
		})
	}

	if summary.Failed == 0 {
		if err := r.store.Cleanup(); err != nil {
			r.log.Warn().Err(err).Msg("state cleanup failed")
		}
	}

	r.notify(ports.ProgressEvent{Kind: ports.ProgressComplete, Total: len(candidates)})
	return summary, nil
}

// process reverifies a candidate against live data and performs the
// reactivation. The verdict is recomputed because the account may have
// changed between discovery and execution. Failure text is scrubbed here
// because outcomes surface on the terminal and in logs, not only in the
// state file.
func (r *Runner) process(ctx context.Context, account domain.Account) domain.Outcome {
	subscriptions, err := r.api.ListAccountSubscriptions(ctx, account.ID)
	if err != nil {
		return domain.Outcome{
			Status: domain.OutcomeStatusFailed,
			Error:  redact.Sanitize(fmt.Sprintf("fetch subscriptions: %v", err)),
		}
	}

	verdict := domain.EvaluateRescue(subscriptions)
	if !verdict.NeedsRescue {
		return domain.Outcome{
			Status: domain.OutcomeStatusSkipped,
			Error:  "no longer needs rescue",
		}
	}

	target := newestExpiredForNonpayment(subscriptions)
	if target == nil {
		return domain.Outcome{
			Status: domain.OutcomeStatusSkipped,
			Error:  "no nonpayment-expired subscription found",
		}
	}

	if r.dryRun {
		return domain.Outcome{
			Status:         domain.OutcomeStatusSkipped,
			SubscriptionID: target.ID,
			Error:          "dry run",
		}
	}

	reactivated, err := r.api.ReactivateSubscription(ctx, target.ID)
	if err != nil {
		return domain.Outcome{
			Status:         domain.OutcomeStatusFailed,
			SubscriptionID: target.ID,
			Error:          redact.Sanitize(fmt.Sprintf("reactivate subscription: %v", err)),
		}
	}

	// The rescue itself succeeded; a missing audit note is not worth
	// failing the account over.
	if err := r.api.CreateAccountNote(ctx, account.ID, rescueNote); err != nil {
		r.log.Warn().Err(err).Str("account", string(account.ID)).Msg("could not leave audit note")
	}

	return domain.Outcome{
		Status:         domain.OutcomeStatusSuccess,
		SubscriptionID: reactivated.ID,
	}
}

func newestExpiredForNonpayment(subscriptions []domain.Subscription) *domain.Subscription {
	var newest *domain.Subscription
	for i := range subscriptions {
		sub := &subscriptions[i]
		if !sub.ExpiredForNonpayment() {
			continue
		}
		if newest == nil || sub.CreatedAt.After(newest.CreatedAt) {
			newest = sub
		}
	}
	return newest
}
