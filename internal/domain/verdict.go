package domain

// RescueVerdict captures whether an account should have its lapsed
// subscription reactivated.
//
// The most recently created subscription decides ExpiredForNonpayment; any
// active or trial subscription, regardless of age, sets
// HasActiveSubscription and supersedes the expired one.
type RescueVerdict struct {
	NeedsRescue           bool
	HasActiveSubscription bool
	ExpiredForNonpayment  bool
}

// Conflicted reports the noteworthy case where the account carries both an
// active subscription and a newest subscription expired for nonpayment. Such
// accounts are skipped, not rescued.
func (v RescueVerdict) Conflicted() bool {
	return v.ExpiredForNonpayment && v.HasActiveSubscription
}

// EvaluateRescue computes the verdict for a subscription history. An empty
// history never needs rescue.
func EvaluateRescue(subscriptions []Subscription) RescueVerdict {
	if len(subscriptions) == 0 {
		return RescueVerdict{}
	}

	var verdict RescueVerdict
	newest := subscriptions[0]
	for _, sub := range subscriptions {
		if sub.CreatedAt.After(newest.CreatedAt) {
			newest = sub
		}
		if sub.IsActive() {
			verdict.HasActiveSubscription = true
		}
	}

	verdict.ExpiredForNonpayment = newest.ExpiredForNonpayment()
	verdict.NeedsRescue = verdict.ExpiredForNonpayment && !verdict.HasActiveSubscription

	return verdict
}
