package grants

import (
	"context"
	"time"

	"github.com/google/uuid"

	models "github.com/openrounds/roundsx/pkg/db/models/grants"
)

// InsertKycTeam inserts a new team row. Deliberately a plain INSERT: a
// unique-constraint violation on wallet_address must surface to the caller
// (postgres.IsUniqueViolation), it is the serialization point for concurrent
// wallet claims.
func (s *Store) InsertKycTeam(ctx context.Context, team *models.KycTeam) error {
	query := `
		INSERT INTO kyc_teams (id, wallet_address, created_at, deleted_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.Client.GetExecutor(ctx).Exec(ctx, query,
		team.ID, team.WalletAddress, team.CreatedAt, team.DeletedAt)
	return err
}

// RetireTeam marks a team non-authoritative. Links and projects stay.
func (s *Store) RetireTeam(ctx context.Context, id uuid.UUID, when time.Time) error {
	query := `UPDATE kyc_teams SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	_, err := s.Client.GetExecutor(ctx).Exec(ctx, query, id, when)
	return err
}

// RenameTeamWallet rewrites a team's stored wallet address. Used to evacuate a
// retired team's address onto its placeholder so the real address becomes free.
func (s *Store) RenameTeamWallet(ctx context.Context, id uuid.UUID, wallet string) error {
	query := `UPDATE kyc_teams SET wallet_address = $2 WHERE id = $1`
	_, err := s.Client.GetExecutor(ctx).Exec(ctx, query, id, wallet)
	return err
}

// RepairFlowReceivers rewrites money-flow records that drifted onto a
// placeholder address back to the real one. Idempotent: matches zero rows once
// repaired. Returns the number of rows touched.
func (s *Store) RepairFlowReceivers(ctx context.Context, placeholder, real string) (int64, error) {
	query := `UPDATE superfluid_streams SET receiver = $2 WHERE receiver = $1`
	tag, err := s.Client.GetExecutor(ctx).Exec(ctx, query, placeholder, real)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RepointRewardStreams moves a retired team's streams to the new identity.
func (s *Store) RepointRewardStreams(ctx context.Context, from, to uuid.UUID) error {
	query := `UPDATE reward_streams SET kyc_team_id = $2 WHERE kyc_team_id = $1`
	_, err := s.Client.GetExecutor(ctx).Exec(ctx, query, from, to)
	return err
}

// RepointProjects moves the given projects' ownership to the new identity.
func (s *Store) RepointProjects(ctx context.Context, projectIDs []string, to uuid.UUID) error {
	if len(projectIDs) == 0 {
		return nil
	}
	query := `UPDATE projects SET kyc_team_id = $2 WHERE id = ANY($1)`
	_, err := s.Client.GetExecutor(ctx).Exec(ctx, query, projectIDs, to)
	return err
}

// LinkOrgTeam records the organization -> team identity link.
func (s *Store) LinkOrgTeam(ctx context.Context, orgID string, teamID uuid.UUID) error {
	query := `
		INSERT INTO organization_kyc_teams (org_id, kyc_team_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (org_id, kyc_team_id) DO NOTHING
	`
	_, err := s.Client.GetExecutor(ctx).Exec(ctx, query, orgID, teamID)
	return err
}
