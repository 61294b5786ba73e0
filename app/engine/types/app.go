package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openrounds/roundsx/pkg/attest"
	"github.com/openrounds/roundsx/pkg/compliance"
	"github.com/openrounds/roundsx/pkg/db/grants"
	"github.com/openrounds/roundsx/pkg/db/postgres"
	"github.com/openrounds/roundsx/pkg/flows"
	"github.com/openrounds/roundsx/pkg/lifecycle"
	"github.com/openrounds/roundsx/pkg/streams"
)

// Authorizer is the caller-supplied "is this request permitted" check. Policy
// itself lives with the caller; the engine only invokes the predicate.
type Authorizer func(r *http.Request) bool

type App struct {
	// Persistence
	DB    *postgres.Client
	Store *grants.Store

	// External collaborators
	Denylist    compliance.Denylist
	Status      compliance.StatusSource
	FlowsClient *flows.Client
	Ledger      attest.Ledger

	// Engine components
	Publisher *attest.Publisher
	Lifecycle *lifecycle.Manager
	Processor *streams.Processor

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server

	// Request authorization hook
	Authorize Authorizer
}

// Start runs the HTTP server until the context is cancelled, then shuts down
// gracefully.
func (a *App) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("Server shutdown", zap.Error(err))
		}
	}()

	a.Logger.Info("Engine listening", zap.String("addr", a.Server.Addr))
	if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.Logger.Fatal("Server failed", zap.Error(err))
	}

	a.DB.Close()
}
