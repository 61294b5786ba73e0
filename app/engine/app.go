package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/openrounds/roundsx/app/engine/types"
	"github.com/openrounds/roundsx/pkg/attest"
	"github.com/openrounds/roundsx/pkg/compliance"
	"github.com/openrounds/roundsx/pkg/db/grants"
	"github.com/openrounds/roundsx/pkg/db/postgres"
	"github.com/openrounds/roundsx/pkg/flows"
	"github.com/openrounds/roundsx/pkg/lifecycle"
	"github.com/openrounds/roundsx/pkg/logging"
	"github.com/openrounds/roundsx/pkg/streams"
	"github.com/openrounds/roundsx/pkg/utils"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	dbName := utils.Env("GRANTS_DB", "roundsx")
	dbClient, err := postgres.New(ctx, logger, dbName, &postgres.PoolConfig{
		MinConns:  2,
		MaxConns:  20,
		Component: "engine",
	})
	if err != nil {
		logger.Fatal("Unable to initialize postgres", zap.Error(err))
	}

	store := grants.NewStore(&dbClient, logger)
	if err := store.InitSchema(ctx); err != nil {
		logger.Fatal("Unable to initialize schema", zap.Error(err))
	}

	denylist, err := compliance.NewRedisDenylist(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to connect deny-list", zap.Error(err))
	}

	status := compliance.NewHTTPStatusClient()
	flowsClient := flows.NewClient(logger)
	ledger := attest.NewHTTPLedger()

	app := &types.App{
		DB:          &dbClient,
		Store:       store,
		Denylist:    denylist,
		Status:      status,
		FlowsClient: flowsClient,
		Ledger:      ledger,
		Publisher:   attest.NewPublisher(ledger, logger),
		Lifecycle: &lifecycle.Manager{
			Store:    store,
			Denylist: denylist,
			Status:   status,
			Flows:    flowsClient,
			Logger:   logger,
		},
		Processor: &streams.Processor{Store: store, Logger: logger},
		Logger:    logger,
	}

	if err := NewServer(app); err != nil {
		logger.Fatal("Unable to configure server", zap.Error(err))
	}

	return app
}
