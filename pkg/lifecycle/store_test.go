package lifecycle_test

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	models "github.com/openrounds/roundsx/pkg/db/models/grants"
	"github.com/openrounds/roundsx/pkg/flows"
)

// memStore is an in-memory lifecycle.Store. InsertKycTeam emulates the
// UNIQUE(wallet_address) constraint, and InTx snapshots state so a failed
// cascade rolls back like the real transaction would.
type memStore struct {
	teams    map[uuid.UUID]*models.KycTeam
	projects map[string]*models.Project
	streams  map[string]*models.RewardStream
	flows    map[string]*models.SuperfluidStream
	links    map[string][]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		teams:    map[uuid.UUID]*models.KycTeam{},
		projects: map[string]*models.Project{},
		streams:  map[string]*models.RewardStream{},
		flows:    map[string]*models.SuperfluidStream{},
		links:    map[string][]uuid.UUID{},
	}
}

func (m *memStore) addTeam(t *models.KycTeam) {
	for _, existing := range m.teams {
		if existing.WalletAddress == t.WalletAddress {
			panic("test fixture violates wallet uniqueness")
		}
	}
	m.teams[t.ID] = t
}

func (m *memStore) snapshot() *memStore {
	clone := newMemStore()
	for k, v := range m.teams {
		c := *v
		clone.teams[k] = &c
	}
	for k, v := range m.projects {
		c := *v
		clone.projects[k] = &c
	}
	for k, v := range m.streams {
		c := *v
		clone.streams[k] = &c
	}
	for k, v := range m.flows {
		c := *v
		clone.flows[k] = &c
	}
	for k, v := range m.links {
		clone.links[k] = append([]uuid.UUID(nil), v...)
	}
	return clone
}

func (m *memStore) restore(s *memStore) {
	m.teams, m.projects, m.streams, m.flows, m.links =
		s.teams, s.projects, s.streams, s.flows, s.links
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	saved := m.snapshot()
	if err := fn(ctx); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func (m *memStore) TeamByID(ctx context.Context, id uuid.UUID) (*models.KycTeam, error) {
	t, ok := m.teams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memStore) ActiveTeamsByWallet(ctx context.Context, wallet string) ([]*models.KycTeam, error) {
	var out []*models.KycTeam
	for _, t := range m.teams {
		if t.WalletAddress == wallet && t.DeletedAt == nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) RetiredTeamByWallet(ctx context.Context, wallet string) (*models.KycTeam, error) {
	for _, t := range m.teams {
		if t.WalletAddress == wallet && t.DeletedAt != nil {
			return t, nil
		}
	}
	return nil, nil
}

func (m *memStore) TeamsByOrg(ctx context.Context, orgID string) ([]*models.KycTeam, error) {
	var out []*models.KycTeam
	for _, id := range m.links[orgID] {
		if t, ok := m.teams[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) InsertKycTeam(ctx context.Context, team *models.KycTeam) error {
	for _, t := range m.teams {
		if t.WalletAddress == team.WalletAddress {
			return &pgconn.PgError{Code: "23505", ConstraintName: "kyc_teams_wallet_address_key"}
		}
	}
	c := *team
	m.teams[team.ID] = &c
	return nil
}

func (m *memStore) RetireTeam(ctx context.Context, id uuid.UUID, when time.Time) error {
	if t, ok := m.teams[id]; ok && t.DeletedAt == nil {
		t.DeletedAt = &when
	}
	return nil
}

func (m *memStore) RenameTeamWallet(ctx context.Context, id uuid.UUID, wallet string) error {
	if t, ok := m.teams[id]; ok {
		t.WalletAddress = wallet
	}
	return nil
}

func (m *memStore) RepairFlowReceivers(ctx context.Context, placeholder, real string) (int64, error) {
	var n int64
	for _, f := range m.flows {
		if f.Receiver == placeholder {
			f.Receiver = real
			n++
		}
	}
	return n, nil
}

func (m *memStore) RepointRewardStreams(ctx context.Context, from, to uuid.UUID) error {
	for _, s := range m.streams {
		if s.KycTeamID == from {
			s.KycTeamID = to
		}
	}
	return nil
}

func (m *memStore) RepointProjects(ctx context.Context, projectIDs []string, to uuid.UUID) error {
	for _, id := range projectIDs {
		if p, ok := m.projects[id]; ok {
			team := to
			p.KycTeamID = &team
		}
	}
	return nil
}

func (m *memStore) LinkOrgTeam(ctx context.Context, orgID string, teamID uuid.UUID) error {
	for _, id := range m.links[orgID] {
		if id == teamID {
			return nil
		}
	}
	m.links[orgID] = append(m.links[orgID], teamID)
	return nil
}

func (m *memStore) StreamsByTeam(ctx context.Context, teamID uuid.UUID) ([]*models.RewardStream, error) {
	var out []*models.RewardStream
	for _, s := range m.streams {
		if s.KycTeamID == teamID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ProjectsByTeam(ctx context.Context, teamID uuid.UUID) ([]*models.Project, error) {
	var out []*models.Project
	for _, p := range m.projects {
		if p.KycTeamID != nil && *p.KycTeamID == teamID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) FlowsByReceiver(ctx context.Context, receiver string) ([]*models.SuperfluidStream, error) {
	var out []*models.SuperfluidStream
	for _, f := range m.flows {
		if f.Receiver == receiver {
			out = append(out, f)
		}
	}
	return out, nil
}

type fakeDenylist struct {
	blacklisted map[string]bool
}

func (f *fakeDenylist) IsBlacklisted(ctx context.Context, projectID string) (bool, error) {
	return f.blacklisted[projectID], nil
}

type fakeStatus struct {
	approved bool
}

func (f *fakeStatus) TeamApproved(ctx context.Context, teamID string) (bool, error) {
	return f.approved, nil
}

type fakeFlows struct {
	flows []flows.Flow
}

func (f *fakeFlows) ActiveFlows(ctx context.Context, sender, receiver string) ([]flows.Flow, error) {
	return f.flows, nil
}
