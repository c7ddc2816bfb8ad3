package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/billingops/account-rescue-cli/internal/domain"
	"github.com/billingops/account-rescue-cli/internal/ports"
	"github.com/billingops/account-rescue-cli/internal/redact"
)

const (
	// The collection endpoint caps page size at 200.
	maxPageSize = 200

	// maxDiscoveryPages bounds a single traversal regardless of what the
	// server claims about continuation.
	maxDiscoveryPages = 1000

	// verdictDiagnosticLimit caps the per-run debug records emitted while
	// computing verdicts.
	verdictDiagnosticLimit = 5
)

var (
	ErrInvalidDateRange = errors.New("start date must not be after end date")
	ErrInvalidPageSize  = fmt.Errorf("page size must be between 1 and %d", maxPageSize)
)

// DiscoveryParams selects the account window to scan. MaxResults of zero
// means unbounded; OnProgress may be nil.
type DiscoveryParams struct {
	StartDate  time.Time
	EndDate    time.Time
	PageSize   int
	MaxResults int
	OnProgress ports.ProgressFunc
}

func (p DiscoveryParams) validate() error {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return errors.New("start and end dates are required")
	}
	if p.StartDate.After(p.EndDate) {
		return ErrInvalidDateRange
	}
	if p.PageSize < 1 || p.PageSize > maxPageSize {
		return ErrInvalidPageSize
	}
	if p.MaxResults < 0 {
		return errors.New("max results must not be negative")
	}
	return nil
}

// Discoverer walks the account collection page by page and keeps the
// accounts whose newest subscription lapsed for nonpayment. The remote API
// cannot filter by closure state, so the listing is windowed by last-updated
// time and every page is filtered client-side.
type Discoverer struct {
	api ports.BillingAPI
	log zerolog.Logger
}

func NewDiscoverer(api ports.BillingAPI, log zerolog.Logger) *Discoverer {
	return &Discoverer{api: api, log: log}
}

// Discover returns rescue candidates in server listing order. Pagination
// anomalies (missing cursor, page bound) end the traversal early with a
// warning event and a partial result rather than an error.
func (d *Discoverer) Discover(ctx context.Context, params DiscoveryParams) ([]domain.Account, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	notify := params.OnProgress
	if notify == nil {
		notify = func(ports.ProgressEvent) {}
	}

	notify(ports.ProgressEvent{Kind: ports.ProgressStart})

	var (
		candidates  []domain.Account
		seen        = make(map[domain.AccountID]struct{})
		cursor      string
		fetched     int
		diagnostics int
	)

	for page := 1; ; page++ {
		if page > maxDiscoveryPages {
			notify(ports.ProgressEvent{
				Kind:    ports.ProgressWarning,
				Message: fmt.Sprintf("stopped after %d pages, results may be incomplete", maxDiscoveryPages),
			})
			break
		}

		result, err := d.api.ListAccounts(ctx, ports.ListAccountsParams{
			BeginTime: params.StartDate,
			EndTime:   params.EndDate,
			Limit:     params.PageSize,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("list accounts page %d: %w", page, err)
		}

		fetched += len(result.Accounts)
		notify(ports.ProgressEvent{
			Kind:    ports.ProgressPage,
			Page:    page,
			Count:   len(result.Accounts),
			Fetched: fetched,
			Total:   len(candidates),
		})

		for _, account := range result.Accounts {
			if _, dup := seen[account.ID]; dup {
				continue
			}
			seen[account.ID] = struct{}{}

			if !d.retain(account, params) {
				continue
			}

			verdict, err := d.evaluate(ctx, account, &diagnostics)
			if err != nil {
				// Event messages reach logs and the terminal, so the
				// error text is scrubbed before it leaves this layer.
				notify(ports.ProgressEvent{
					Kind:      ports.ProgressWarning,
					AccountID: account.ID,
					Message: fmt.Sprintf("could not fetch subscriptions for %s, skipping: %s",
						account.ID, redact.Sanitize(err.Error())),
				})
				continue
			}

			if verdict.Conflicted() {
				notify(ports.ProgressEvent{
					Kind:      ports.ProgressSkip,
					AccountID: account.ID,
					Message:   "has both an active subscription and a nonpayment expiration, skipping",
				})
				continue
			}
			if !verdict.NeedsRescue {
				continue
			}

			candidates = append(candidates, account)
			if params.MaxResults > 0 && len(candidates) >= params.MaxResults {
				candidates = candidates[:params.MaxResults]
				notify(ports.ProgressEvent{Kind: ports.ProgressComplete, Total: len(candidates)})
				return candidates, nil
			}
		}

		if !result.HasMore {
			break
		}
		if result.Cursor == "" {
			notify(ports.ProgressEvent{
				Kind:    ports.ProgressWarning,
				Message: "server reported more pages but returned no cursor, results may be incomplete",
			})
			break
		}
		cursor = result.Cursor
	}

	notify(ports.ProgressEvent{Kind: ports.ProgressComplete, Total: len(candidates)})
	return candidates, nil
}

// retain applies the cheap per-account filters that need no extra requests.
func (d *Discoverer) retain(account domain.Account, params DiscoveryParams) bool {
	switch account.State {
	case domain.AccountStateClosed, domain.AccountStateInactive, domain.AccountStateActive:
	default:
		return false
	}

	// Accounts without a closure timestamp already passed the server-side
	// update-time filter.
	if account.ClosedAt != nil {
		if account.ClosedAt.Before(params.StartDate) || account.ClosedAt.After(params.EndDate) {
			return false
		}
	}

	return true
}

func (d *Discoverer) evaluate(ctx context.Context, account domain.Account, diagnostics *int) (domain.RescueVerdict, error) {
	subscriptions, err := d.api.ListAccountSubscriptions(ctx, account.ID)
	if err != nil {
		return domain.RescueVerdict{}, err
	}

	verdict := domain.EvaluateRescue(subscriptions)

	if *diagnostics < verdictDiagnosticLimit {
		*diagnostics++
		d.log.Debug().
			Str("account", string(account.ID)).
			Int("subscriptions", len(subscriptions)).
			Bool("needsRescue", verdict.NeedsRescue).
			Bool("hasActive", verdict.HasActiveSubscription).
			Bool("expiredNonpayment", verdict.ExpiredForNonpayment).
			Msg("verdict computed")
	}

	return verdict, nil
}
