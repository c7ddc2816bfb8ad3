package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	billingadapter "github.com/billingops/account-rescue-cli/internal/adapters/billing"
	reportadapter "github.com/billingops/account-rescue-cli/internal/adapters/render/report"
	chainstore "github.com/billingops/account-rescue-cli/internal/adapters/secrets/chain"
	stateadapter "github.com/billingops/account-rescue-cli/internal/adapters/state"
	"github.com/billingops/account-rescue-cli/internal/application"
	"github.com/billingops/account-rescue-cli/internal/config"
	"github.com/billingops/account-rescue-cli/internal/domain"
	"github.com/billingops/account-rescue-cli/internal/ports"
)

const apiKeySecret = "api_key"

type app struct {
	cfg         config.Config
	log         zerolog.Logger
	secretStore ports.SecretStore

	renderCandidates func([]domain.Account, reportadapter.RenderOptions) (string, error)
	renderSummary    func(application.RunSummary) (string, error)
	now              func() time.Time

	// billing is constructed lazily so commands that never hit the API
	// (version, config init) work without a credential.
	billing ports.BillingAPI
}

func wireApp() (*app, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	secretStore, err := chainstore.NewEnvFirstWithFileFallback("RESCUE", cfg.SecretsDir)
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	return &app{
		cfg:              cfg,
		log:              newLogger(cfg.LogLevel),
		secretStore:      secretStore,
		renderCandidates: reportadapter.RenderCandidates,
		renderSummary:    reportadapter.RenderSummary,
		now:              time.Now,
	}, nil
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(parsed).
		With().Timestamp().Logger()
}

func (a *app) billingClient(ctx context.Context) (ports.BillingAPI, error) {
	if a.billing != nil {
		return a.billing, nil
	}

	key, err := a.secretStore.Get(ctx, apiKeySecret)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return nil, errors.New("no API key found: set RESCUE_API_KEY or store an api_key secret")
		}
		return nil, fmt.Errorf("resolve API key: %w", err)
	}

	client, err := billingadapter.NewClient(billingadapter.Config{
		APIKey:             key,
		BaseURL:            a.cfg.APIBaseURL,
		Subdomain:          a.cfg.Subdomain,
		MaxRetries:         a.cfg.MaxRetries,
		BackoffBase:        a.cfg.BackoffBase,
		BackoffMaxSeconds:  a.cfg.BackoffMaxSeconds,
		RateLimitThreshold: a.cfg.RateLimitThreshold,
		RequestTimeout:     a.cfg.RequestTimeout(),
		Logger:             a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("wire billing client: %w", err)
	}

	a.billing = client
	return client, nil
}

func (a *app) stateStore(mode string) (*stateadapter.Store, error) {
	if strings.TrimSpace(a.cfg.Project) == "" {
		return nil, errors.New("project is not configured: set project in rescue.toml or RESCUE_PROJECT")
	}

	return stateadapter.NewStore(stateadapter.StoreConfig{
		Project:     a.cfg.Project,
		Environment: a.cfg.Environment,
		Mode:        mode,
		Dir:         a.cfg.StateDir,
		Clock:       ports.SystemClock{},
		Log:         a.log,
	})
}
