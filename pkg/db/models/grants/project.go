package grants

import (
	"context"

	"github.com/google/uuid"

	"github.com/openrounds/roundsx/pkg/db/postgres"
)

// Project is a grant-receiving project. Ownership of a project by a KYC team
// is a nullable foreign key: projects exist before compliance onboarding
// completes.
type Project struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	OrgID     string     `json:"orgId"`
	KycTeamID *uuid.UUID `json:"kycTeamId,omitempty"`
}

// InitProjects creates the projects table.
func InitProjects(ctx context.Context, exec postgres.Executor) error {
	query := `
		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			org_id TEXT NOT NULL DEFAULT '',
			kyc_team_id UUID
		)
	`
	_, err := exec.Exec(ctx, query)
	return err
}
