package ports

import (
	"context"
	"time"

	"github.com/billingops/account-rescue-cli/internal/domain"
)

// ListAccountsParams selects a page of accounts by last-updated time,
// ascending. Cursor is the opaque continuation token from a previous page.
type ListAccountsParams struct {
	BeginTime time.Time
	EndTime   time.Time
	Limit     int
	Cursor    string
}

// AccountsPage is one page of a paginated account listing. Cursor is empty
// when the server returned no usable continuation token.
type AccountsPage struct {
	Accounts []domain.Account
	HasMore  bool
	Cursor   string
}

type CreateAccountParams struct {
	Code  string
	Email string
}

// BillingAPI is the surface of the subscription-billing service the rescue
// flow consumes. Implementations own transport concerns (auth, retries, rate
// limiting); every method is a single logical request.
type BillingAPI interface {
	ListAccounts(ctx context.Context, params ListAccountsParams) (AccountsPage, error)
	GetAccount(ctx context.Context, id domain.AccountID) (domain.Account, error)
	CreateAccount(ctx context.Context, params CreateAccountParams) (domain.Account, error)
	DeactivateAccount(ctx context.Context, id domain.AccountID) error
	ReopenAccount(ctx context.Context, id domain.AccountID) error
	CreateAccountNote(ctx context.Context, id domain.AccountID, message string) error
	ListAccountSubscriptions(ctx context.Context, id domain.AccountID) ([]domain.Subscription, error)
	ReactivateSubscription(ctx context.Context, subscriptionID string) (domain.Subscription, error)
}
