package grants

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	models "github.com/openrounds/roundsx/pkg/db/models/grants"
	"github.com/openrounds/roundsx/pkg/db/postgres"
)

// Store is the persisted-state interface for the consolidation engine: record
// CRUD plus transactional grouping. All reads and writes go through the
// client's tx-in-context executor, so a method runs inside a transaction
// whenever the caller started one with BeginFunc + WithTx.
type Store struct {
	Client *postgres.Client
	Logger *zap.Logger
}

// NewStore wraps an established postgres client.
func NewStore(client *postgres.Client, logger *zap.Logger) *Store {
	return &Store{Client: client, Logger: logger}
}

// InitSchema creates every table the engine persists to.
func (s *Store) InitSchema(ctx context.Context) error {
	exec := s.Client.GetExecutor(ctx)
	inits := []func(context.Context, postgres.Executor) error{
		models.InitOrganizations,
		models.InitKycTeams,
		models.InitProjects,
		models.InitRecurringRewards,
		models.InitRewardStreams,
		models.InitSuperfluidStreams,
	}
	for _, init := range inits {
		if err := init(ctx, exec); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// InTx runs fn inside a single transaction; every store call made with the
// context it passes down observes that transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.Client.BeginFunc(ctx, func(tx pgx.Tx) error {
		return fn(s.Client.WithTx(ctx, tx))
	})
}

// executeBatch sends a pgx batch and surfaces the first per-statement error.
func (s *Store) executeBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := s.Client.GetExecutor(ctx).SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}
