package ports

import "github.com/billingops/account-rescue-cli/internal/domain"

// RunStateStore tracks per-run batch progress with one durable checkpoint per
// processed candidate. Persistence failures after initialization are
// best-effort: implementations log them and keep the bookkeeping in memory so
// the caller's main-line work continues.
type RunStateStore interface {
	Initialize(candidates []domain.AccountID) error
	MarkProcessed(id domain.AccountID, outcome domain.Outcome) error
	PendingIDs() []domain.AccountID
	ProcessedCount() int
	TotalCount() int
	Cleanup() error
}
