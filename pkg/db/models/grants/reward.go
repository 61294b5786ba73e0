package grants

import (
	"context"

	"github.com/openrounds/roundsx/pkg/db/postgres"
)

// RecurringReward is one tranche-addressed award amount for a project in a
// round. Amount is an exact decimal string; it is never stored or summed as a
// float. Multiple rows may exist for the same (project, tranche) and must be
// summed, not overwritten.
type RecurringReward struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	RoundID   string `json:"roundId"`
	Tranche   int32  `json:"tranche"`
	Amount    string `json:"amount"`
}

// InitRecurringRewards creates the recurring_rewards table.
func InitRecurringRewards(ctx context.Context, exec postgres.Executor) error {
	query := `
		CREATE TABLE IF NOT EXISTS recurring_rewards (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			round_id TEXT NOT NULL,
			tranche INT NOT NULL CHECK (tranche >= 0),
			amount TEXT NOT NULL
		)
	`
	if _, err := exec.Exec(ctx, query); err != nil {
		return err
	}
	_, err := exec.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_recurring_rewards_round ON recurring_rewards (round_id, project_id)`)
	return err
}
