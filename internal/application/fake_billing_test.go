package application

import (
	"context"
	"fmt"

	"github.com/billingops/account-rescue-cli/internal/domain"
	"github.com/billingops/account-rescue-cli/internal/ports"
)

// fakeBilling scripts the billing API page by page so tests can drive
// pagination and per-account subscription lookups deterministically.
type fakeBilling struct {
	pages         []ports.AccountsPage
	pageErr       error
	pageCalls     []ports.ListAccountsParams
	subscriptions map[domain.AccountID][]domain.Subscription
	subErrs       map[domain.AccountID]error
	subCalls      []domain.AccountID

	reactivated    []string
	reactivateErrs map[string]error
	notes          map[domain.AccountID][]string
	noteErr        error
}

var _ ports.BillingAPI = (*fakeBilling)(nil)

func newFakeBilling() *fakeBilling {
	return &fakeBilling{
		subscriptions:  make(map[domain.AccountID][]domain.Subscription),
		subErrs:        make(map[domain.AccountID]error),
		reactivateErrs: make(map[string]error),
		notes:          make(map[domain.AccountID][]string),
	}
}

func (f *fakeBilling) ListAccounts(_ context.Context, params ports.ListAccountsParams) (ports.AccountsPage, error) {
	f.pageCalls = append(f.pageCalls, params)
	if f.pageErr != nil {
		return ports.AccountsPage{}, f.pageErr
	}
	if len(f.pages) == 0 {
		return ports.AccountsPage{}, nil
	}

	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeBilling) GetAccount(_ context.Context, id domain.AccountID) (domain.Account, error) {
	return domain.Account{ID: id, State: domain.AccountStateClosed}, nil
}

func (f *fakeBilling) CreateAccount(_ context.Context, params ports.CreateAccountParams) (domain.Account, error) {
	return domain.Account{ID: domain.AccountID(params.Code), Code: params.Code, Email: params.Email}, nil
}

func (f *fakeBilling) DeactivateAccount(context.Context, domain.AccountID) error { return nil }

func (f *fakeBilling) ReopenAccount(context.Context, domain.AccountID) error { return nil }

func (f *fakeBilling) CreateAccountNote(_ context.Context, id domain.AccountID, message string) error {
	if f.noteErr != nil {
		return f.noteErr
	}
	f.notes[id] = append(f.notes[id], message)
	return nil
}

func (f *fakeBilling) ListAccountSubscriptions(_ context.Context, id domain.AccountID) ([]domain.Subscription, error) {
	f.subCalls = append(f.subCalls, id)
	if err, ok := f.subErrs[id]; ok {
		return nil, err
	}
	return f.subscriptions[id], nil
}

func (f *fakeBilling) ReactivateSubscription(_ context.Context, subscriptionID string) (domain.Subscription, error) {
	if err, ok := f.reactivateErrs[subscriptionID]; ok {
		return domain.Subscription{}, err
	}
	f.reactivated = append(f.reactivated, subscriptionID)
	return domain.Subscription{ID: subscriptionID, State: domain.SubscriptionStateActive}, nil
}

// fakeStateStore keeps run bookkeeping in memory and records calls.
type fakeStateStore struct {
	initialized []domain.AccountID
	pending     map[domain.AccountID]bool
	processed   []struct {
		ID      domain.AccountID
		Outcome domain.Outcome
	}
	initErr    error
	markErr    error
	cleanedUp  bool
	cleanupErr error
}

var _ ports.RunStateStore = (*fakeStateStore)(nil)

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{pending: make(map[domain.AccountID]bool)}
}

func (f *fakeStateStore) Initialize(candidates []domain.AccountID) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.initialized = append([]domain.AccountID(nil), candidates...)
	for _, id := range candidates {
		f.pending[id] = true
	}
	return nil
}

func (f *fakeStateStore) MarkProcessed(id domain.AccountID, outcome domain.Outcome) error {
	if f.markErr != nil {
		return f.markErr
	}
	if !f.pending[id] {
		return fmt.Errorf("account %s is not pending", id)
	}
	delete(f.pending, id)
	f.processed = append(f.processed, struct {
		ID      domain.AccountID
		Outcome domain.Outcome
	}{id, outcome})
	return nil
}

func (f *fakeStateStore) PendingIDs() []domain.AccountID {
	ids := make([]domain.AccountID, 0, len(f.pending))
	for id := range f.pending {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeStateStore) ProcessedCount() int { return len(f.processed) }

func (f *fakeStateStore) TotalCount() int { return len(f.initialized) }

func (f *fakeStateStore) Cleanup() error {
	f.cleanedUp = true
	return f.cleanupErr
}
