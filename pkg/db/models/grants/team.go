package grants

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openrounds/roundsx/pkg/db/postgres"
)

// TeamState is the domain-level lifecycle state of a KYC team. Persistence
// keeps only the deleted_at timestamp; the tagged state exists so callers
// never branch on a nullable column directly.
type TeamState int

const (
	TeamActive TeamState = iota
	TeamRetired
)

func (s TeamState) String() string {
	if s == TeamRetired {
		return "retired"
	}
	return "active"
}

// KycTeam is the compliance-verified identity a reward stream pays out to.
// Exactly one team per wallet address may be active at a time; the database
// UNIQUE constraint on wallet_address is the enforcement point. Retired teams
// keep their history but hold an evacuated placeholder address when their
// wallet has been reclaimed by a newer team.
type KycTeam struct {
	ID            uuid.UUID  `json:"id"`
	WalletAddress string     `json:"walletAddress"`
	CreatedAt     time.Time  `json:"createdAt"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
}

// State maps the persisted deleted_at column onto the domain state.
func (t *KycTeam) State() TeamState {
	if t.DeletedAt != nil {
		return TeamRetired
	}
	return TeamActive
}

// PlaceholderAddress is the collision-proof address a retired team's wallet is
// renamed to when the real address is reclaimed. Deterministic per team id so
// drift repair can always recognize it.
func (t *KycTeam) PlaceholderAddress() string {
	return "_deleted_" + t.ID.String()
}

// InitKycTeams creates the kyc_teams table.
func InitKycTeams(ctx context.Context, exec postgres.Executor) error {
	query := `
		CREATE TABLE IF NOT EXISTS kyc_teams (
			id UUID PRIMARY KEY,
			wallet_address TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)
	`
	_, err := exec.Exec(ctx, query)
	return err
}
