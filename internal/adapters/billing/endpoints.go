package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/billingops/account-rescue-cli/internal/domain"
	"github.com/billingops/account-rescue-cli/internal/ports"
)

var _ ports.BillingAPI = (*Client)(nil)

type accountJSON struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Email     string     `json:"email"`
	State     string     `json:"state"`
	ClosedAt  *time.Time `json:"closed_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type subscriptionJSON struct {
	ID               string    `json:"id"`
	State            string    `json:"state"`
	ExpirationReason string    `json:"expiration_reason"`
	CreatedAt        time.Time `json:"created_at"`
	Plan             struct {
		Code string `json:"code"`
	} `json:"plan"`
}

// listEnvelope matches the paginated list shape {data, has_more, next}.
type listEnvelope struct {
	Data    json.RawMessage `json:"data"`
	HasMore bool            `json:"has_more"`
	Next    string          `json:"next"`
}

// ListAccounts fetches one page of accounts ordered by ascending update time.
func (c *Client) ListAccounts(ctx context.Context, params ports.ListAccountsParams) (ports.AccountsPage, error) {
	query := url.Values{}
	query.Set("order", "asc")
	query.Set("sort", "updated_at")
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if !params.BeginTime.IsZero() {
		query.Set("begin_time", params.BeginTime.UTC().Format(time.RFC3339))
	}
	if !params.EndTime.IsZero() {
		query.Set("end_time", params.EndTime.UTC().Format(time.RFC3339))
	}
	if params.Cursor != "" {
		query.Set("cursor", params.Cursor)
	}

	resp, err := c.Do(ctx, http.MethodGet, "/accounts?"+query.Encode(), nil)
	if err != nil {
		return ports.AccountsPage{}, fmt.Errorf("list accounts: %w", err)
	}

	var raw []accountJSON
	envelope, err := decodeList(resp.Body, &raw)
	if err != nil {
		return ports.AccountsPage{}, fmt.Errorf("decode accounts page: %w", err)
	}

	accounts := make([]domain.Account, 0, len(raw))
	for _, entry := range raw {
		accounts = append(accounts, fromAccountJSON(entry))
	}

	return ports.AccountsPage{
		Accounts: accounts,
		HasMore:  envelope.HasMore,
		Cursor:   ExtractCursor(envelope.Next),
	}, nil
}

func (c *Client) GetAccount(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(string(id)), nil)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound {
			return domain.Account{}, fmt.Errorf("get account %s: %w", id, domain.ErrAccountNotFound)
		}
		return domain.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}

	var raw accountJSON
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return domain.Account{}, fmt.Errorf("decode account %s: %w", id, err)
	}

	return fromAccountJSON(raw), nil
}

func (c *Client) CreateAccount(ctx context.Context, params ports.CreateAccountParams) (domain.Account, error) {
	body := map[string]string{"code": params.Code}
	if params.Email != "" {
		body["email"] = params.Email
	}

	resp, err := c.Do(ctx, http.MethodPost, "/accounts", body)
	if err != nil {
		return domain.Account{}, fmt.Errorf("create account %s: %w", params.Code, err)
	}

	var raw accountJSON
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return domain.Account{}, fmt.Errorf("decode created account: %w", err)
	}

	return fromAccountJSON(raw), nil
}

func (c *Client) DeactivateAccount(ctx context.Context, id domain.AccountID) error {
	if _, err := c.Do(ctx, http.MethodDelete, "/accounts/"+url.PathEscape(string(id)), nil); err != nil {
		return fmt.Errorf("deactivate account %s: %w", id, err)
	}
	return nil
}

func (c *Client) ReopenAccount(ctx context.Context, id domain.AccountID) error {
	if _, err := c.Do(ctx, http.MethodPut, "/accounts/"+url.PathEscape(string(id))+"/reopen", nil); err != nil {
		return fmt.Errorf("reopen account %s: %w", id, err)
	}
	return nil
}

func (c *Client) CreateAccountNote(ctx context.Context, id domain.AccountID, message string) error {
	body := map[string]string{"message": message}
	if _, err := c.Do(ctx, http.MethodPost, "/accounts/"+url.PathEscape(string(id))+"/notes", body); err != nil {
		return fmt.Errorf("create note on account %s: %w", id, err)
	}
	return nil
}

func (c *Client) ListAccountSubscriptions(ctx context.Context, id domain.AccountID) ([]domain.Subscription, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(string(id))+"/subscriptions", nil)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for account %s: %w", id, err)
	}

	var raw []subscriptionJSON
	if _, err := decodeList(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("decode subscriptions for account %s: %w", id, err)
	}

	subscriptions := make([]domain.Subscription, 0, len(raw))
	for _, entry := range raw {
		subscriptions = append(subscriptions, fromSubscriptionJSON(entry))
	}

	return subscriptions, nil
}

func (c *Client) ReactivateSubscription(ctx context.Context, subscriptionID string) (domain.Subscription, error) {
	resp, err := c.Do(ctx, http.MethodPut, "/subscriptions/"+url.PathEscape(subscriptionID)+"/reactivate", nil)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("reactivate subscription %s: %w", subscriptionID, err)
	}

	var raw subscriptionJSON
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return domain.Subscription{}, fmt.Errorf("decode reactivated subscription: %w", err)
	}

	return fromSubscriptionJSON(raw), nil
}

// decodeList accepts both list shapes the API serves: a bare JSON array and
// the {data, has_more, next} envelope.
func decodeList(body []byte, out any) (listEnvelope, error) {
	trimmed := firstNonSpaceByte(body)
	if trimmed == '[' {
		return listEnvelope{}, json.Unmarshal(body, out)
	}

	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return listEnvelope{}, err
	}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return listEnvelope{}, err
		}
	}

	return envelope, nil
}

func firstNonSpaceByte(body []byte) byte {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}

func fromAccountJSON(raw accountJSON) domain.Account {
	return domain.Account{
		ID:        domain.AccountID(raw.ID),
		Code:      raw.Code,
		Email:     raw.Email,
		State:     domain.AccountState(raw.State),
		ClosedAt:  raw.ClosedAt,
		UpdatedAt: raw.UpdatedAt,
	}
}

func fromSubscriptionJSON(raw subscriptionJSON) domain.Subscription {
	return domain.Subscription{
		ID:               raw.ID,
		PlanCode:         raw.Plan.Code,
		State:            domain.SubscriptionState(raw.State),
		ExpirationReason: raw.ExpirationReason,
		CreatedAt:        raw.CreatedAt,
	}
}
