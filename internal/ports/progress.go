package ports

import "github.com/billingops/account-rescue-cli/internal/domain"

type ProgressKind string

const (
	ProgressStart    ProgressKind = "start"
	ProgressPage     ProgressKind = "page"
	ProgressWarning  ProgressKind = "warning"
	ProgressSkip     ProgressKind = "skip"
	ProgressComplete ProgressKind = "complete"
)

// ProgressEvent is an observational notification emitted synchronously during
// discovery. Field population depends on Kind: page events carry the page
// counters, warnings carry Message, skips carry AccountID and Message.
type ProgressEvent struct {
	Kind      ProgressKind
	Page      int
	Count     int
	Fetched   int
	Total     int
	Message   string
	AccountID domain.AccountID
}

// ProgressFunc receives progress events. No control decision depends on it;
// a nil ProgressFunc disables reporting.
type ProgressFunc func(ProgressEvent)
