package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billingops/account-rescue-cli/internal/domain"
	"github.com/billingops/account-rescue-cli/internal/ports"
)

var (
	windowStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
)

func rescueableSubs(id string) []domain.Subscription {
	return []domain.Subscription{{
		ID:               id,
		State:            domain.SubscriptionStateExpired,
		ExpirationReason: domain.ExpirationReasonNonpayment,
		CreatedAt:        windowStart,
	}}
}

func closedAccount(id string) domain.Account {
	closedAt := windowStart.Add(24 * time.Hour)
	return domain.Account{
		ID:       domain.AccountID(id),
		State:    domain.AccountStateClosed,
		ClosedAt: &closedAt,
	}
}

func defaultParams() DiscoveryParams {
	return DiscoveryParams{
		StartDate: windowStart,
		EndDate:   windowEnd,
		PageSize:  50,
	}
}

func TestDiscoverValidatesParams(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	d := NewDiscoverer(api, zerolog.Nop())

	tests := []struct {
		name   string
		params DiscoveryParams
	}{
		{"missing dates", DiscoveryParams{PageSize: 50}},
		{"start after end", DiscoveryParams{StartDate: windowEnd, EndDate: windowStart, PageSize: 50}},
		{"zero page size", DiscoveryParams{StartDate: windowStart, EndDate: windowEnd}},
		{"oversized page", DiscoveryParams{StartDate: windowStart, EndDate: windowEnd, PageSize: 201}},
		{"negative max results", DiscoveryParams{StartDate: windowStart, EndDate: windowEnd, PageSize: 50, MaxResults: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Discover(context.Background(), tt.params)
			require.Error(t, err)
		})
	}

	assert.Empty(t, api.pageCalls, "validation failures must not issue requests")
}

func TestDiscoverFiltersAndKeepsCandidates(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	outsideWindow := windowEnd.Add(48 * time.Hour)
	api.pages = []ports.AccountsPage{{
		Accounts: []domain.Account{
			closedAccount("rescue-me"),
			{ID: "pending-signup", State: "pending"},
			{ID: "closed-late", State: domain.AccountStateClosed, ClosedAt: &outsideWindow},
			{ID: "healthy", State: domain.AccountStateActive},
		},
	}}
	api.subscriptions["rescue-me"] = rescueableSubs("sub-1")
	api.subscriptions["healthy"] = []domain.Subscription{{
		ID:        "sub-2",
		State:     domain.SubscriptionStateActive,
		CreatedAt: windowStart,
	}}

	d := NewDiscoverer(api, zerolog.Nop())
	candidates, err := d.Discover(context.Background(), defaultParams())
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, domain.AccountID("rescue-me"), candidates[0].ID)

	// Subscription lookups happen only for accounts that pass the cheap
	// filters.
	assert.ElementsMatch(t, []domain.AccountID{"rescue-me", "healthy"}, api.subCalls)
}

func TestDiscoverFollowsCursor(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	api.pages = []ports.AccountsPage{
		{Accounts: []domain.Account{closedAccount("a1")}, HasMore: true, Cursor: "tok-2"},
		{Accounts: []domain.Account{closedAccount("a2")}},
	}
	api.subscriptions["a1"] = rescueableSubs("sub-1")
	api.subscriptions["a2"] = rescueableSubs("sub-2")

	d := NewDiscoverer(api, zerolog.Nop())
	candidates, err := d.Discover(context.Background(), defaultParams())
	require.NoError(t, err)

	assert.Len(t, candidates, 2)
	require.Len(t, api.pageCalls, 2)
	assert.Empty(t, api.pageCalls[0].Cursor)
	assert.Equal(t, "tok-2", api.pageCalls[1].Cursor)
}

func TestDiscoverTruncatesAtMaxResults(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	first := make([]domain.Account, 0, 3)
	second := make([]domain.Account, 0, 4)
	for _, id := range []string{"a1", "a2", "a3"} {
		first = append(first, closedAccount(id))
		api.subscriptions[domain.AccountID(id)] = rescueableSubs("sub-" + id)
	}
	for _, id := range []string{"b1", "b2", "b3", "b4"} {
		second = append(second, closedAccount(id))
		api.subscriptions[domain.AccountID(id)] = rescueableSubs("sub-" + id)
	}
	api.pages = []ports.AccountsPage{
		{Accounts: first, HasMore: true, Cursor: "tok-2"},
		{Accounts: second, HasMore: true, Cursor: "tok-3"},
	}

	params := defaultParams()
	params.MaxResults = 5

	d := NewDiscoverer(api, zerolog.Nop())
	candidates, err := d.Discover(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, candidates, 5)
	assert.Equal(t, domain.AccountID("b2"), candidates[4].ID)
	assert.Len(t, api.pageCalls, 2, "paging must stop once the cap is reached")
}

func TestDiscoverWarnsOnMissingCursor(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	api.pages = []ports.AccountsPage{
		{Accounts: []domain.Account{closedAccount("a1")}, HasMore: true},
	}
	api.subscriptions["a1"] = rescueableSubs("sub-1")

	var warnings []string
	params := defaultParams()
	params.OnProgress = func(e ports.ProgressEvent) {
		if e.Kind == ports.ProgressWarning {
			warnings = append(warnings, e.Message)
		}
	}

	d := NewDiscoverer(api, zerolog.Nop())
	candidates, err := d.Discover(context.Background(), params)
	require.NoError(t, err)

	assert.Len(t, candidates, 1, "partial result is kept")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "no cursor")
	assert.Len(t, api.pageCalls, 1)
}

func TestDiscoverSkipsConflictedAccounts(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	api.pages = []ports.AccountsPage{{
		Accounts: []domain.Account{closedAccount("conflicted")},
	}}
	api.subscriptions["conflicted"] = []domain.Subscription{
		{ID: "old-active", State: domain.SubscriptionStateActive, CreatedAt: windowStart},
		{
			ID:               "new-expired",
			State:            domain.SubscriptionStateExpired,
			ExpirationReason: domain.ExpirationReasonNonpayment,
			CreatedAt:        windowStart.Add(time.Hour),
		},
	}

	var skips []ports.ProgressEvent
	params := defaultParams()
	params.OnProgress = func(e ports.ProgressEvent) {
		if e.Kind == ports.ProgressSkip {
			skips = append(skips, e)
		}
	}

	d := NewDiscoverer(api, zerolog.Nop())
	candidates, err := d.Discover(context.Background(), params)
	require.NoError(t, err)

	assert.Empty(t, candidates)
	require.Len(t, skips, 1)
	assert.Equal(t, domain.AccountID("conflicted"), skips[0].AccountID)
}

func TestDiscoverDegradesOnVerdictLookupFailure(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	api.pages = []ports.AccountsPage{{
		Accounts: []domain.Account{closedAccount("broken"), closedAccount("fine")},
	}}
	api.subErrs["broken"] = errors.New("boom")
	api.subscriptions["fine"] = rescueableSubs("sub-1")

	var warnings []ports.ProgressEvent
	params := defaultParams()
	params.OnProgress = func(e ports.ProgressEvent) {
		if e.Kind == ports.ProgressWarning {
			warnings = append(warnings, e)
		}
	}

	d := NewDiscoverer(api, zerolog.Nop())
	candidates, err := d.Discover(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, domain.AccountID("fine"), candidates[0].ID)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.AccountID("broken"), warnings[0].AccountID)
}

func TestDiscoverWarningScrubsCredentials(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	api.pages = []ports.AccountsPage{{
		Accounts: []domain.Account{closedAccount("broken")},
	}}
	api.subErrs["broken"] = errors.New("reauth: password=secret123")

	var warnings []string
	params := defaultParams()
	params.OnProgress = func(e ports.ProgressEvent) {
		if e.Kind == ports.ProgressWarning {
			warnings = append(warnings, e.Message)
		}
	}

	d := NewDiscoverer(api, zerolog.Nop())
	_, err := d.Discover(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "[REDACTED]")
	assert.NotContains(t, warnings[0], "secret123")
}

func TestDiscoverDeduplicatesAcrossPages(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	api.pages = []ports.AccountsPage{
		{Accounts: []domain.Account{closedAccount("dup")}, HasMore: true, Cursor: "tok-2"},
		{Accounts: []domain.Account{closedAccount("dup")}},
	}
	api.subscriptions["dup"] = rescueableSubs("sub-1")

	d := NewDiscoverer(api, zerolog.Nop())
	candidates, err := d.Discover(context.Background(), defaultParams())
	require.NoError(t, err)

	assert.Len(t, candidates, 1)
	assert.Len(t, api.subCalls, 1)
}

func TestDiscoverPropagatesListFailure(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	api.pageErr = errors.New("service unavailable")

	d := NewDiscoverer(api, zerolog.Nop())
	_, err := d.Discover(context.Background(), defaultParams())
	require.ErrorContains(t, err, "list accounts page 1")
}

func TestDiscoverEmitsLifecycleEvents(t *testing.T) {
	t.Parallel()

	api := newFakeBilling()
	api.pages = []ports.AccountsPage{{Accounts: []domain.Account{closedAccount("a1")}}}
	api.subscriptions["a1"] = rescueableSubs("sub-1")

	var kinds []ports.ProgressKind
	params := defaultParams()
	params.OnProgress = func(e ports.ProgressEvent) { kinds = append(kinds, e.Kind) }

	d := NewDiscoverer(api, zerolog.Nop())
	_, err := d.Discover(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, []ports.ProgressKind{ports.ProgressStart, ports.ProgressPage, ports.ProgressComplete}, kinds)
}
