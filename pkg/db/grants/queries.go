package grants

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	models "github.com/openrounds/roundsx/pkg/db/models/grants"
	"github.com/openrounds/roundsx/pkg/db/postgres"
)

func scanTeams(rows pgx.Rows) ([]*models.KycTeam, error) {
	defer rows.Close()
	var teams []*models.KycTeam
	for rows.Next() {
		t := &models.KycTeam{}
		if err := rows.Scan(&t.ID, &t.WalletAddress, &t.CreatedAt, &t.DeletedAt); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// TeamByID fetches a single team; returns pgx.ErrNoRows when absent.
func (s *Store) TeamByID(ctx context.Context, id uuid.UUID) (*models.KycTeam, error) {
	query := `SELECT id, wallet_address, created_at, deleted_at FROM kyc_teams WHERE id = $1`
	t := &models.KycTeam{}
	err := s.Client.GetExecutor(ctx).QueryRow(ctx, query, id).
		Scan(&t.ID, &t.WalletAddress, &t.CreatedAt, &t.DeletedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ActiveTeamsByWallet returns every non-retired team holding the given
// address. The UNIQUE constraint should make more than one impossible; the
// caller treats a longer result as an invariant violation, never picks one.
func (s *Store) ActiveTeamsByWallet(ctx context.Context, wallet string) ([]*models.KycTeam, error) {
	query := `
		SELECT id, wallet_address, created_at, deleted_at
		FROM kyc_teams
		WHERE wallet_address = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`
	rows, err := s.Client.GetExecutor(ctx).Query(ctx, query, wallet)
	if err != nil {
		return nil, err
	}
	return scanTeams(rows)
}

// RetiredTeamByWallet returns the retired team still holding the given
// address, or nil when the address is free.
func (s *Store) RetiredTeamByWallet(ctx context.Context, wallet string) (*models.KycTeam, error) {
	query := `
		SELECT id, wallet_address, created_at, deleted_at
		FROM kyc_teams
		WHERE wallet_address = $1 AND deleted_at IS NOT NULL
	`
	t := &models.KycTeam{}
	err := s.Client.GetExecutor(ctx).QueryRow(ctx, query, wallet).
		Scan(&t.ID, &t.WalletAddress, &t.CreatedAt, &t.DeletedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// TeamsByOrg returns every team identity an organization has ever been linked
// to, current and retired.
func (s *Store) TeamsByOrg(ctx context.Context, orgID string) ([]*models.KycTeam, error) {
	query := `
		SELECT t.id, t.wallet_address, t.created_at, t.deleted_at
		FROM kyc_teams t
		JOIN organization_kyc_teams l ON l.kyc_team_id = t.id
		WHERE l.org_id = $1
		ORDER BY t.created_at
	`
	rows, err := s.Client.GetExecutor(ctx).Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	return scanTeams(rows)
}

// ProjectsByIDs loads projects preserving no particular order.
func (s *Store) ProjectsByIDs(ctx context.Context, ids []string) ([]*models.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, name, org_id, kyc_team_id FROM projects WHERE id = ANY($1)`
	rows, err := s.Client.GetExecutor(ctx).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return scanProjects(rows)
}

// ProjectsByTeam returns the projects currently owned by a team.
func (s *Store) ProjectsByTeam(ctx context.Context, teamID uuid.UUID) ([]*models.Project, error) {
	query := `SELECT id, name, org_id, kyc_team_id FROM projects WHERE kyc_team_id = $1`
	rows, err := s.Client.GetExecutor(ctx).Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	return scanProjects(rows)
}

func scanProjects(rows pgx.Rows) ([]*models.Project, error) {
	defer rows.Close()
	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.OrgID, &p.KycTeamID); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// RewardsByRound returns every recurring reward contributing to a round.
func (s *Store) RewardsByRound(ctx context.Context, roundID string) ([]*models.RecurringReward, error) {
	query := `
		SELECT id, project_id, round_id, tranche, amount
		FROM recurring_rewards
		WHERE round_id = $1
		ORDER BY project_id, tranche
	`
	rows, err := s.Client.GetExecutor(ctx).Query(ctx, query, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rewards []*models.RecurringReward
	for rows.Next() {
		r := &models.RecurringReward{}
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.RoundID, &r.Tranche, &r.Amount); err != nil {
			return nil, err
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

// RoundIDs lists the distinct rounds carrying rewards.
func (s *Store) RoundIDs(ctx context.Context) ([]string, error) {
	rows, err := s.Client.GetExecutor(ctx).Query(ctx,
		`SELECT DISTINCT round_id FROM recurring_rewards ORDER BY round_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StreamsByTeam returns the reward streams owned by a team.
func (s *Store) StreamsByTeam(ctx context.Context, teamID uuid.UUID) ([]*models.RewardStream, error) {
	query := `SELECT id, round_id, kyc_team_id, project_ids FROM reward_streams WHERE kyc_team_id = $1`
	rows, err := s.Client.GetExecutor(ctx).Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var streams []*models.RewardStream
	for rows.Next() {
		st := &models.RewardStream{}
		if err := rows.Scan(&st.ID, &st.RoundID, &st.KycTeamID, &st.ProjectIDs); err != nil {
			return nil, err
		}
		streams = append(streams, st)
	}
	return streams, rows.Err()
}

// FlowsByReceiver returns money-flow records addressed to a wallet.
func (s *Store) FlowsByReceiver(ctx context.Context, receiver string) ([]*models.SuperfluidStream, error) {
	query := `SELECT id, sender, receiver, flow_rate, deposit FROM superfluid_streams WHERE receiver = $1`
	rows, err := s.Client.GetExecutor(ctx).Query(ctx, query, receiver)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var flows []*models.SuperfluidStream
	for rows.Next() {
		f := &models.SuperfluidStream{}
		if err := rows.Scan(&f.ID, &f.Sender, &f.Receiver, &f.FlowRate, &f.Deposit); err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}
