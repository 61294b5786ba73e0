package grants

import (
	"context"

	"github.com/openrounds/roundsx/pkg/db/postgres"
)

// SuperfluidStream mirrors an on-chain money flow. Receiver is denormalized:
// it must always track the active KYC team's wallet address. It is the one
// place a foreign value can silently drift (a wallet evacuation renaming the
// address out from under it) and must be actively repaired.
type SuperfluidStream struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	FlowRate string `json:"flowRate"`
	Deposit  string `json:"deposit"`
}

// InitSuperfluidStreams creates the superfluid_streams table.
func InitSuperfluidStreams(ctx context.Context, exec postgres.Executor) error {
	query := `
		CREATE TABLE IF NOT EXISTS superfluid_streams (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			receiver TEXT NOT NULL,
			flow_rate TEXT NOT NULL DEFAULT '0',
			deposit TEXT NOT NULL DEFAULT '0'
		)
	`
	if _, err := exec.Exec(ctx, query); err != nil {
		return err
	}
	_, err := exec.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_superfluid_streams_receiver ON superfluid_streams (receiver)`)
	return err
}
