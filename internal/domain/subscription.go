package domain

import "time"

type SubscriptionState string

const (
	SubscriptionStateActive   SubscriptionState = "active"
	SubscriptionStateTrial    SubscriptionState = "trial"
	SubscriptionStateExpired  SubscriptionState = "expired"
	SubscriptionStateCanceled SubscriptionState = "canceled"
)

// ExpirationReasonNonpayment is set by the billing service when dunning runs
// out of payment retries.
const ExpirationReasonNonpayment = "nonpayment"

type Subscription struct {
	ID               string
	PlanCode         string
	State            SubscriptionState
	ExpirationReason string
	CreatedAt        time.Time
}

func (s Subscription) IsActive() bool {
	return s.State == SubscriptionStateActive || s.State == SubscriptionStateTrial
}

func (s Subscription) ExpiredForNonpayment() bool {
	return s.State == SubscriptionStateExpired && s.ExpirationReason == ExpirationReasonNonpayment
}
