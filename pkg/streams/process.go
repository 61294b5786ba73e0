package streams

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	models "github.com/openrounds/roundsx/pkg/db/models/grants"
)

// Store is the slice of persisted state the processor touches.
// *grants.Store implements it.
type Store interface {
	RewardsByRound(ctx context.Context, roundID string) ([]*models.RecurringReward, error)
	ProjectsByIDs(ctx context.Context, ids []string) ([]*models.Project, error)
	UpsertRewardStream(ctx context.Context, stream *models.RewardStream) error
}

// Processor recomputes a round's reward streams: membership, identity and
// tranche totals. Invoked synchronously whenever a stream's composition or
// amounts must be computed or re-verified.
type Processor struct {
	Store  Store
	Logger *zap.Logger
}

// StreamResult is one consolidated stream for a KYC team within a round.
type StreamResult struct {
	StreamID     string    `json:"streamId"`
	RoundID      string    `json:"roundId"`
	KycTeamID    uuid.UUID `json:"kycTeamId"`
	ProjectIDs   []string  `json:"projectIds"`
	ProjectNames []string  `json:"projectNames"`
	Amounts      []string  `json:"amounts"`
}

// FilterFunded drops projects that carry no recurring rewards. Empty
// contributors never reach identity derivation: a stream's member set must
// not include a project with zero rewards.
func FilterFunded(projects []*models.Project, rewardsByProject map[string][]TrancheReward) []*models.Project {
	funded := make([]*models.Project, 0, len(projects))
	for _, p := range projects {
		if len(rewardsByProject[p.ID]) > 0 {
			funded = append(funded, p)
		}
	}
	return funded
}

// ProcessRound consolidates every KYC team's reward stream for a round and
// upserts the resulting rows. Results are deterministic regardless of reward
// row ordering: membership is sorted before hashing and teams are emitted in
// stream-id order.
func (p *Processor) ProcessRound(ctx context.Context, roundID string) ([]*StreamResult, error) {
	rewards, err := p.Store.RewardsByRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("load rewards for round %s: %w", roundID, err)
	}
	if len(rewards) == 0 {
		p.Logger.Debug("Round has no rewards, nothing to consolidate", zap.String("round", roundID))
		return nil, nil
	}

	rewardsByProject := make(map[string][]TrancheReward)
	for _, r := range rewards {
		rewardsByProject[r.ProjectID] = append(rewardsByProject[r.ProjectID],
			TrancheReward{Tranche: r.Tranche, Amount: r.Amount})
	}

	projectIDs := make([]string, 0, len(rewardsByProject))
	for id := range rewardsByProject {
		projectIDs = append(projectIDs, id)
	}
	projects, err := p.Store.ProjectsByIDs(ctx, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("load projects for round %s: %w", roundID, err)
	}

	byTeam := make(map[uuid.UUID][]*models.Project)
	for _, proj := range projects {
		if proj.KycTeamID == nil {
			// Not yet onboarded to a compliance identity; its rewards wait.
			p.Logger.Debug("Skipping project without KYC team", zap.String("project", proj.ID))
			continue
		}
		byTeam[*proj.KycTeamID] = append(byTeam[*proj.KycTeamID], proj)
	}

	results := make([]*StreamResult, 0, len(byTeam))
	for teamID, teamProjects := range byTeam {
		members := FilterFunded(teamProjects, rewardsByProject)
		if len(members) == 0 {
			continue
		}

		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

		memberIDs := make([]string, len(members))
		memberNames := make([]string, len(members))
		contributions := make([]ProjectRewards, len(members))
		for i, m := range members {
			memberIDs[i] = m.ID
			memberNames[i] = m.Name
			contributions[i] = ProjectRewards{ProjectID: m.ID, Rewards: rewardsByProject[m.ID]}
		}

		totals, aggErr := Aggregate(contributions)
		if aggErr != nil {
			return nil, fmt.Errorf("aggregate round %s team %s: %w", roundID, teamID, aggErr)
		}

		streamID := DeriveStreamID(memberIDs)
		stream := &models.RewardStream{
			ID:         streamID,
			RoundID:    roundID,
			KycTeamID:  teamID,
			ProjectIDs: memberIDs,
		}
		if err := p.Store.UpsertRewardStream(ctx, stream); err != nil {
			return nil, fmt.Errorf("upsert stream %s: %w", streamID, err)
		}

		results = append(results, &StreamResult{
			StreamID:     streamID,
			RoundID:      roundID,
			KycTeamID:    teamID,
			ProjectIDs:   memberIDs,
			ProjectNames: memberNames,
			Amounts:      FormatAmounts(totals),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].StreamID < results[j].StreamID })

	p.Logger.Info("Consolidated reward streams",
		zap.String("round", roundID),
		zap.Int("streams", len(results)),
		zap.Int("rewards", len(rewards)))

	return results, nil
}
