// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/minerva-ai/thinktank-cli/internal/config"
	"github.com/minerva-ai/thinktank-cli/internal/dispatch"
	"github.com/minerva-ai/thinktank-cli/internal/endpoint"
	"github.com/minerva-ai/thinktank-cli/internal/mock"
	"github.com/minerva-ai/thinktank-cli/internal/offline"
	"github.com/minerva-ai/thinktank-cli/internal/store"
)

// =============================================================================
// APP
// =============================================================================

// App holds the wired components every command runs against.
type App struct {
	Config     *config.Config
	Store      *store.Store
	Resolver   *endpoint.Resolver
	Dispatcher *dispatch.Dispatcher
	Renderer   *Renderer

	mockSrv *mock.Server
}

// NewApp wires the application from configuration and command-line flags.
// Flags override config file values. The in-process mock backend is started
// and appended as the final endpoint candidate, so the fallback walk always
// terminates at a reachable backend.
func NewApp(cfg *config.Config, args *ArgParser) (*App, error) {
	// Flag overrides.
	if url := args.Flag("endpoint"); url != "" {
		if !endpoint.Valid(url) {
			return nil, fmt.Errorf("invalid --endpoint URL: %s", url)
		}
		cfg.Endpoints.Candidates = append([]string{url}, cfg.Endpoints.Candidates...)
	}
	if args.BoolFlag("no-network") {
		cfg.Endpoints.NoNetwork = true
	}
	if args.BoolFlag("plain") {
		cfg.UI.Plain = true
	}
	if dir := args.Flag("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	if secs := args.FlagIntOrDefault("timeout", 0); secs > 0 {
		cfg.Endpoints.AttemptTimeoutSecs = secs
	}

	offline.SetEnabled(cfg.Endpoints.NoNetwork)

	app := &App{Config: cfg}

	// Mock backend: the guaranteed final candidate.
	app.mockSrv = mock.NewServer()
	if err := app.mockSrv.Start("127.0.0.1:0"); err != nil {
		return nil, fmt.Errorf("failed to start mock backend: %w", err)
	}
	cfg.EnsureMockTail(app.mockSrv.URL())

	app.Store = store.New(cfg.Storage.DataDir, store.Options{
		MaxConversations: cfg.Storage.MaxConversations,
		MaxMessages:      cfg.Storage.MaxMessages,
		Passphrase:       passphraseIfEnabled(cfg),
		DisableSearch:    cfg.Storage.DisableSearch,
	})

	app.Resolver = endpoint.NewResolver(cfg.Endpoints.Candidates, app.Store)
	app.Dispatcher = dispatch.New(app.Store, app.Resolver, dispatch.Config{
		AttemptTimeout:       time.Duration(cfg.Endpoints.AttemptTimeoutSecs) * time.Second,
		DisableWebSocket:     cfg.Transport.DisableWebSocket,
		DisableStoreInMemory: cfg.Transport.DisableStoreInMemory,
	})
	app.Renderer = NewRenderer(cfg.UI.Theme, cfg.UI.Plain)
	return app, nil
}

func passphraseIfEnabled(cfg *config.Config) string {
	if !cfg.Storage.Encrypt {
		return ""
	}
	return config.Passphrase()
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.mockSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		a.mockSrv.Shutdown(ctx)
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
