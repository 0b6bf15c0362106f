package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/kyptronix/spectrum-admin/admin"
	"github.com/kyptronix/spectrum-admin/auth"
	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/config"
	"github.com/kyptronix/spectrum-admin/observe"
	"github.com/kyptronix/spectrum-admin/transport"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg    config.Config
	obs    observe.Observer
	logger observe.Logger
	api    *transport.HTTP
	client *admin.Client
	out    *printer

	// tokens is nil unless the API is called with a bearer token.
	tokens oauth2.TokenSource
}

func newApp(ctx context.Context, opts *rootOptions, p *printer) (*app, error) {
	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.API.BaseURL = opts.baseURL
	}
	if opts.logLevel != "" {
		cfg.Telemetry.Logging.Enabled = true
		cfg.Telemetry.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	obs, err := observe.NewObserver(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	in, err := observe.InstrumentsFrom(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	httpClient, tokens, err := credentials(ctx, cfg, in)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	if cfg.Auth.Method() == "token" {
		if err := checkToken(ctx, in.Logger, cfg.Auth.Token); err != nil {
			_ = obs.Shutdown(ctx)
			return nil, err
		}
	}

	reads, writes := transport.NewExecutors(cfg.Transport())
	api, err := transport.New(cfg.API.BaseURL,
		transport.WithHTTPClient(httpClient),
		transport.WithExecutors(reads, writes),
		transport.WithInstruments(in),
		transport.WithUserAgent(cfg.API.UserAgent),
	)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	conflict, err := cfg.Cache.Conflict()
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	client := admin.NewClient(api,
		admin.WithInstruments(in),
		admin.WithConflictPolicy(conflict),
		admin.WithStoreOptions(cache.WithPolicy(cfg.Cache.Policy())),
	)

	in.Logger.Debug(ctx, "client ready",
		observe.F("base_url", cfg.API.BaseURL),
		observe.F("auth_method", cfg.Auth.Method()),
		observe.F("conflict_policy", conflict.String()),
	)
	return &app{cfg: cfg, obs: obs, logger: in.Logger, api: api, client: client, out: p, tokens: tokens}, nil
}

// checkToken refuses an expired static token and warns when it lacks the
// admin role. Opaque tokens are left for the API to judge.
func checkToken(ctx context.Context, logger observe.Logger, token string) error {
	id, err := auth.AdminIdentity(token, time.Now())
	switch {
	case errors.Is(err, auth.ErrTokenMalformed):
		logger.Debug(ctx, "token is not a JWT; skipping identity check")
		return nil
	case errors.Is(err, auth.ErrTokenExpired):
		return err
	case errors.Is(err, auth.ErrNotAdmin):
		logger.Warn(ctx, "token lacks the admin role; admin endpoints will refuse it",
			observe.F("principal", id.Principal),
			observe.F("roles", id.Roles),
		)
		return nil
	case err != nil:
		return err
	}
	logger.Debug(ctx, "authenticated", observe.F("principal", id.Principal), observe.F("email", id.Email))
	return nil
}

// credentials returns the HTTP client that authenticates API calls and,
// for bearer token methods, the token source behind it.
func credentials(ctx context.Context, cfg config.Config, in observe.Instruments) (*http.Client, oauth2.TokenSource, error) {
	switch cfg.Auth.Method() {
	case "token":
		src := auth.StaticToken(cfg.Auth.Token)
		return auth.NewClient(nil, src), src, nil
	case "password":
		reads, writes := transport.NewExecutors(cfg.Transport())
		login, err := transport.New(cfg.API.BaseURL,
			transport.WithExecutors(reads, writes),
			transport.WithInstruments(in),
			transport.WithUserAgent(cfg.API.UserAgent),
		)
		if err != nil {
			return nil, nil, err
		}
		src := auth.NewLoginTokenSource(ctx, auth.PasswordLogin{
			API:      login,
			Email:    cfg.Auth.Email,
			Password: cfg.Auth.Password,
		}, cfg.Auth.ExpiryLeeway)
		return auth.NewClient(nil, src), src, nil
	case "api_key":
		return &http.Client{Transport: &auth.APIKeyTransport{
			Key:    cfg.Auth.APIKey,
			Header: cfg.Auth.APIKeyHeader,
		}}, nil, nil
	default:
		return &http.Client{}, nil, nil
	}
}

func (a *app) close(ctx context.Context) error {
	a.client.Close()
	return a.obs.Shutdown(ctx)
}

func (a *app) page(page, limit int) cache.PageRequest {
	if limit == 0 {
		limit = a.cfg.Cache.PageSize
	}
	return cache.PageRequest{Page: page, Limit: limit}
}
