package domain

import "time"

type AccountID string

type AccountState string

const (
	AccountStateActive   AccountState = "active"
	AccountStateClosed   AccountState = "closed"
	AccountStateInactive AccountState = "inactive"
)

type Account struct {
	ID            AccountID
	Code          string
	Email         string
	State         AccountState
	ClosedAt      *time.Time
	UpdatedAt     time.Time
	Subscriptions []Subscription
}

// NewestSubscription returns the most recently created subscription, or nil
// when the account has none.
func (a Account) NewestSubscription() *Subscription {
	if len(a.Subscriptions) == 0 {
		return nil
	}

	newest := 0
	for i := range a.Subscriptions {
		if a.Subscriptions[i].CreatedAt.After(a.Subscriptions[newest].CreatedAt) {
			newest = i
		}
	}

	return &a.Subscriptions[newest]
}
