package grants

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openrounds/roundsx/pkg/db/postgres"
)

// Organization is the parent entity projects and KYC teams hang off.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OrganizationKycTeam links an organization to a KYC team identity. A new row
// is written whenever a wallet-reuse transition mints a new team id.
type OrganizationKycTeam struct {
	OrgID     string    `json:"orgId"`
	KycTeamID uuid.UUID `json:"kycTeamId"`
	CreatedAt time.Time `json:"createdAt"`
}

// InitOrganizations creates the organizations and link tables.
func InitOrganizations(ctx context.Context, exec postgres.Executor) error {
	query := `
		CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)
	`
	if _, err := exec.Exec(ctx, query); err != nil {
		return err
	}
	query = `
		CREATE TABLE IF NOT EXISTS organization_kyc_teams (
			org_id TEXT NOT NULL,
			kyc_team_id UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (org_id, kyc_team_id)
		)
	`
	_, err := exec.Exec(ctx, query)
	return err
}
