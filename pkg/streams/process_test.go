package streams_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	models "github.com/openrounds/roundsx/pkg/db/models/grants"
	"github.com/openrounds/roundsx/pkg/streams"
)

// fakeStore serves canned rewards/projects and records upserted streams.
type fakeStore struct {
	rewards  []*models.RecurringReward
	projects map[string]*models.Project
	upserted []*models.RewardStream
}

func (f *fakeStore) RewardsByRound(ctx context.Context, roundID string) ([]*models.RecurringReward, error) {
	var out []*models.RecurringReward
	for _, r := range f.rewards {
		if r.RoundID == roundID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ProjectsByIDs(ctx context.Context, ids []string) ([]*models.Project, error) {
	var out []*models.Project
	for _, id := range ids {
		if p, ok := f.projects[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertRewardStream(ctx context.Context, stream *models.RewardStream) error {
	f.upserted = append(f.upserted, stream)
	return nil
}

func teamProject(id, name string, team uuid.UUID) *models.Project {
	return &models.Project{ID: id, Name: name, OrgID: "org-1", KycTeamID: &team}
}

func TestProcessRound_ConsolidatesPerTeam(t *testing.T) {
	team := uuid.New()
	store := &fakeStore{
		projects: map[string]*models.Project{
			"p1": teamProject("p1", "Project One", team),
			"p2": teamProject("p2", "Project Two", team),
		},
		rewards: []*models.RecurringReward{
			{ID: "r1", ProjectID: "p1", RoundID: "round-7", Tranche: 0, Amount: "100"},
			{ID: "r2", ProjectID: "p2", RoundID: "round-7", Tranche: 0, Amount: "300"},
			{ID: "r3", ProjectID: "p2", RoundID: "round-7", Tranche: 2, Amount: "400"},
		},
	}

	p := &streams.Processor{Store: store, Logger: zaptest.NewLogger(t)}
	results, err := p.ProcessRound(context.Background(), "round-7")
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "round-7", res.RoundID)
	assert.Equal(t, team, res.KycTeamID)
	assert.Equal(t, []string{"p1", "p2"}, res.ProjectIDs)
	assert.Equal(t, []string{"Project One", "Project Two"}, res.ProjectNames)
	assert.Equal(t, []string{"400", "0", "400"}, res.Amounts)
	assert.Equal(t, streams.DeriveStreamID([]string{"p1", "p2"}), res.StreamID)

	require.Len(t, store.upserted, 1)
	assert.Equal(t, res.StreamID, store.upserted[0].ID)
}

// TestProcessRound_Deterministic: identical input in different row order
// yields identical stream ids and amounts.
func TestProcessRound_Deterministic(t *testing.T) {
	team := uuid.New()
	projects := map[string]*models.Project{
		"p1": teamProject("p1", "One", team),
		"p2": teamProject("p2", "Two", team),
		"p3": teamProject("p3", "Three", team),
	}
	rewards := []*models.RecurringReward{
		{ID: "r1", ProjectID: "p1", RoundID: "r", Tranche: 0, Amount: "1"},
		{ID: "r2", ProjectID: "p2", RoundID: "r", Tranche: 1, Amount: "2"},
		{ID: "r3", ProjectID: "p3", RoundID: "r", Tranche: 2, Amount: "3"},
	}
	reversed := []*models.RecurringReward{rewards[2], rewards[1], rewards[0]}

	run := func(rs []*models.RecurringReward) *streams.StreamResult {
		store := &fakeStore{projects: projects, rewards: rs}
		p := &streams.Processor{Store: store, Logger: zaptest.NewLogger(t)}
		results, err := p.ProcessRound(context.Background(), "r")
		require.NoError(t, err)
		require.Len(t, results, 1)
		return results[0]
	}

	a, b := run(rewards), run(reversed)
	assert.Equal(t, a.StreamID, b.StreamID)
	assert.Equal(t, a.ProjectIDs, b.ProjectIDs)
	assert.Equal(t, a.Amounts, b.Amounts)
}

// TestProcessRound_SkipsUnonboardedProjects: rewards for a project without a
// KYC team wait until onboarding completes.
func TestProcessRound_SkipsUnonboardedProjects(t *testing.T) {
	store := &fakeStore{
		projects: map[string]*models.Project{
			"p1": {ID: "p1", Name: "Orphan", OrgID: "org-1"},
		},
		rewards: []*models.RecurringReward{
			{ID: "r1", ProjectID: "p1", RoundID: "r", Tranche: 0, Amount: "100"},
		},
	}

	p := &streams.Processor{Store: store, Logger: zaptest.NewLogger(t)}
	results, err := p.ProcessRound(context.Background(), "r")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, store.upserted)
}

func TestProcessRound_EmptyRound(t *testing.T) {
	store := &fakeStore{projects: map[string]*models.Project{}}
	p := &streams.Processor{Store: store, Logger: zaptest.NewLogger(t)}

	results, err := p.ProcessRound(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestProcessRound_MalformedAmountFailsFast(t *testing.T) {
	team := uuid.New()
	store := &fakeStore{
		projects: map[string]*models.Project{"p1": teamProject("p1", "One", team)},
		rewards: []*models.RecurringReward{
			{ID: "r1", ProjectID: "p1", RoundID: "r", Tranche: 0, Amount: "12,5"},
		},
	}

	p := &streams.Processor{Store: store, Logger: zaptest.NewLogger(t)}
	_, err := p.ProcessRound(context.Background(), "r")
	require.Error(t, err)
	assert.ErrorIs(t, err, streams.ErrMalformedAmount)
	assert.Empty(t, store.upserted)
}

// TestFilterFunded: projects without recurring rewards never reach identity
// derivation or the stream's name list.
func TestFilterFunded(t *testing.T) {
	team := uuid.New()
	funded := teamProject("p1", "Funded", team)
	unfunded := teamProject("p2", "Unfunded", team)

	byProject := map[string][]streams.TrancheReward{
		"p1": {{Tranche: 0, Amount: "10"}},
	}

	got := streams.FilterFunded([]*models.Project{funded, unfunded}, byProject)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}
