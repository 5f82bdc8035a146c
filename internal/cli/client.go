package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitabwire/workdesk/internal/apiclient"
	"github.com/pitabwire/workdesk/internal/capability"
	"github.com/pitabwire/workdesk/internal/config"
	"github.com/pitabwire/workdesk/internal/lookup"
	"github.com/pitabwire/workdesk/internal/transport"
	"github.com/pitabwire/workdesk/internal/workorder"
	"github.com/pitabwire/workdesk/model"
)

// clientTimeout bounds each API call made by the client commands.
const clientTimeout = 30 * time.Second

// remote is one client session against the maintenance API.
type remote struct {
	ctx     context.Context
	api     *apiclient.Client
	engine  *workorder.Engine
	session *model.Session
}

// connect builds a session from the --token claims. The signature is not
// checked here; the maintenance API verifies the token on every call.
func connect(ctx context.Context, app *App) (*remote, error) {
	if app.APIURL == "" {
		return nil, errors.New("--api-url (or WORKDESK_API_URL) is required")
	}
	if app.Token == "" {
		return nil, errors.New("--token (or WORKDESK_TOKEN) is required")
	}
	if _, err := time.LoadLocation(app.Timezone); err != nil {
		return nil, fmt.Errorf("unknown time zone %q", app.Timezone)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(app.Token, claims); err != nil {
		return nil, fmt.Errorf("reading token claims: %w", err)
	}
	defaults := config.Defaults()
	s := transport.SessionFromClaims(claims, defaults.Identity.ClaimPaths)
	s.Token = app.Token
	s.Timezone = app.Timezone
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("token does not identify a user: %w", err)
	}

	evaluator, err := capability.NewStaticPolicyEvaluator("")
	if err != nil {
		return nil, err
	}
	caps, err := evaluator.ResolveCapabilities(s)
	if err != nil {
		return nil, err
	}

	backend := defaults.Backend
	backend.BaseURL = app.APIURL
	backend.Timeout = clientTimeout
	api := apiclient.New(backend, nil, nil)
	lookups := lookup.NewCache(lookup.NewMemoryStore(0), api, "cli:", defaults.Lookup.Cache.TTL, nil, nil)

	return &remote{
		ctx:     model.WithSession(ctx, s),
		api:     api,
		engine:  workorder.New(api, lookups, s, caps),
		session: s,
	}, nil
}

// loaded connects and reads the work-order collection.
func loaded(ctx context.Context, app *App) (*remote, error) {
	r, err := connect(ctx, app)
	if err != nil {
		return nil, err
	}
	if err := r.engine.Reload(r.ctx); err != nil {
		return nil, err
	}
	return r, nil
}
