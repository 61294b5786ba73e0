package grants

import (
	"context"

	"github.com/google/uuid"

	"github.com/openrounds/roundsx/pkg/db/postgres"
)

// RewardStream is a recurring payout obligation. Its id is a content hash of
// the member project-id set (order independent), so recomputation from the
// same membership always lands on the same row. Rows are upserted, never
// deleted; membership changes produce a new id.
type RewardStream struct {
	ID         string    `json:"id"`
	RoundID    string    `json:"roundId"`
	KycTeamID  uuid.UUID `json:"kycTeamId"`
	ProjectIDs []string  `json:"projectIds"`
}

// InitRewardStreams creates the reward_streams table.
func InitRewardStreams(ctx context.Context, exec postgres.Executor) error {
	query := `
		CREATE TABLE IF NOT EXISTS reward_streams (
			id TEXT PRIMARY KEY,
			round_id TEXT NOT NULL,
			kyc_team_id UUID NOT NULL,
			project_ids TEXT[] NOT NULL
		)
	`
	if _, err := exec.Exec(ctx, query); err != nil {
		return err
	}
	_, err := exec.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_reward_streams_team ON reward_streams (kyc_team_id)`)
	return err
}
