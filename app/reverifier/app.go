package reverifier

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/openrounds/roundsx/pkg/db/grants"
	"github.com/openrounds/roundsx/pkg/db/postgres"
	"github.com/openrounds/roundsx/pkg/logging"
	"github.com/openrounds/roundsx/pkg/streams"
	"github.com/openrounds/roundsx/pkg/utils"
)

// App periodically re-runs stream consolidation for every round. It is a
// caller of the synchronous engine code path, not a scheduler inside it:
// each round is processed by the same ProcessRound the HTTP API uses.
type App struct {
	Logger    *zap.Logger
	DB        *postgres.Client
	Store     *grants.Store
	Processor *streams.Processor

	cron *cron.Cron
	pool pond.Pool

	// inFlight guards against a round being re-entered while a previous
	// pass over it is still running.
	inFlight *xsync.Map[string, struct{}]
}

func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	dbName := utils.Env("GRANTS_DB", "roundsx")
	dbClient, err := postgres.New(ctx, logger, dbName, &postgres.PoolConfig{
		MinConns:  1,
		MaxConns:  10,
		Component: "reverifier",
	})
	if err != nil {
		logger.Fatal("Unable to initialize postgres", zap.Error(err))
	}

	store := grants.NewStore(&dbClient, logger)

	workers := utils.EnvInt("REVERIFY_WORKERS", 4)

	return &App{
		Logger:    logger,
		DB:        &dbClient,
		Store:     store,
		Processor: &streams.Processor{Store: store, Logger: logger},
		cron:      cron.New(),
		pool:      pond.NewPool(workers),
		inFlight:  xsync.NewMap[string, struct{}](),
	}
}

// Start schedules the periodic pass and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) {
	schedule := utils.Env("REVERIFY_SCHEDULE", "@every 15m")
	if _, err := a.cron.AddFunc(schedule, func() { a.runPass(ctx) }); err != nil {
		a.Logger.Fatal("Invalid reverify schedule", zap.String("schedule", schedule), zap.Error(err))
	}

	a.cron.Start()
	a.Logger.Info("Reverifier started", zap.String("schedule", schedule))

	<-ctx.Done()

	cronCtx := a.cron.Stop()
	<-cronCtx.Done()
	a.pool.StopAndWait()
	a.DB.Close()
	a.Logger.Info("Reverifier stopped")
}

// runPass re-verifies every round's streams through the worker pool. Rounds
// are independent of each other, so they run concurrently; each round's own
// processing stays sequential and deterministic.
func (a *App) runPass(ctx context.Context) {
	rounds, err := a.Store.RoundIDs(ctx)
	if err != nil {
		a.Logger.Error("Unable to list rounds", zap.Error(err))
		return
	}

	for _, roundID := range rounds {
		if _, loaded := a.inFlight.LoadOrStore(roundID, struct{}{}); loaded {
			a.Logger.Debug("Round still in flight, skipping", zap.String("round", roundID))
			continue
		}

		a.pool.Submit(func() {
			defer a.inFlight.Delete(roundID)
			if _, err := a.Processor.ProcessRound(ctx, roundID); err != nil {
				a.Logger.Error("Re-verification failed",
					zap.String("round", roundID),
					zap.Error(err))
			}
		})
	}
}
