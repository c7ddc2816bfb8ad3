package domain

type OutcomeStatus string

const (
	OutcomeStatusSuccess OutcomeStatus = "success"
	OutcomeStatusFailed  OutcomeStatus = "failed"
	OutcomeStatusSkipped OutcomeStatus = "skipped"
)

// Outcome records what happened to a single candidate during a rescue run.
type Outcome struct {
	Status         OutcomeStatus
	SubscriptionID string
	Error          string
}
