package grants

import (
	"context"

	"github.com/jackc/pgx/v5"

	models "github.com/openrounds/roundsx/pkg/db/models/grants"
)

// InsertOrganization upserts an organization.
func (s *Store) InsertOrganization(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`
	_, err := s.Client.GetExecutor(ctx).Exec(ctx, query, org.ID, org.Name)
	return err
}

// InsertProjects upserts projects.
func (s *Store) InsertProjects(ctx context.Context, projects []*models.Project) error {
	if len(projects) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO projects (id, name, org_id, kyc_team_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			org_id = EXCLUDED.org_id,
			kyc_team_id = EXCLUDED.kyc_team_id
	`
	for _, p := range projects {
		batch.Queue(query, p.ID, p.Name, p.OrgID, p.KycTeamID)
	}
	return s.executeBatch(ctx, batch)
}

// InsertRecurringRewards upserts reward rows. Amounts are exact decimal
// strings and pass through untouched.
func (s *Store) InsertRecurringRewards(ctx context.Context, rewards []*models.RecurringReward) error {
	if len(rewards) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO recurring_rewards (id, project_id, round_id, tranche, amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			round_id = EXCLUDED.round_id,
			tranche = EXCLUDED.tranche,
			amount = EXCLUDED.amount
	`
	for _, r := range rewards {
		batch.Queue(query, r.ID, r.ProjectID, r.RoundID, r.Tranche, r.Amount)
	}
	return s.executeBatch(ctx, batch)
}

// UpsertRewardStream creates the stream row if absent. The id is a content
// hash of the membership, so recomputing an unchanged set lands on the same
// row; rows are never deleted.
func (s *Store) UpsertRewardStream(ctx context.Context, stream *models.RewardStream) error {
	query := `
		INSERT INTO reward_streams (id, round_id, kyc_team_id, project_ids)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			round_id = EXCLUDED.round_id,
			kyc_team_id = EXCLUDED.kyc_team_id,
			project_ids = EXCLUDED.project_ids
	`
	_, err := s.Client.GetExecutor(ctx).Exec(ctx, query,
		stream.ID, stream.RoundID, stream.KycTeamID, stream.ProjectIDs)
	return err
}

// InsertSuperfluidStreams upserts money-flow records.
func (s *Store) InsertSuperfluidStreams(ctx context.Context, flows []*models.SuperfluidStream) error {
	if len(flows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO superfluid_streams (id, sender, receiver, flow_rate, deposit)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			sender = EXCLUDED.sender,
			receiver = EXCLUDED.receiver,
			flow_rate = EXCLUDED.flow_rate,
			deposit = EXCLUDED.deposit
	`
	for _, f := range flows {
		batch.Queue(query, f.ID, f.Sender, f.Receiver, f.FlowRate, f.Deposit)
	}
	return s.executeBatch(ctx, batch)
}
