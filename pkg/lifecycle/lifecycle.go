package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openrounds/roundsx/pkg/compliance"
	models "github.com/openrounds/roundsx/pkg/db/models/grants"
	"github.com/openrounds/roundsx/pkg/db/postgres"
	"github.com/openrounds/roundsx/pkg/flows"
)

var (
	// ErrEmptyWallet is a validation error: a team cannot be bound to a blank address.
	ErrEmptyWallet = errors.New("wallet address is empty")

	// ErrWalletExists is the user-facing conflict when the address already
	// belongs to an active team. Recoverable: the caller may retry with
	// different input, the engine never auto-retries the cascade.
	ErrWalletExists = errors.New("KYC team with this wallet address already exists")

	// ErrMultipleActive is the read-time invariant violation: more than one
	// active team holds one wallet. Fatal for the request; the engine never
	// silently picks one.
	ErrMultipleActive = errors.New("multiple active KYC teams share a wallet address")

	// ErrTeamNotFound reports a lookup miss by team id.
	ErrTeamNotFound = errors.New("KYC team not found")
)

// Store is the slice of persisted state the lifecycle touches, including the
// transactional grouping the wallet-reuse cascade requires.
// *grants.Store implements it.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	TeamByID(ctx context.Context, id uuid.UUID) (*models.KycTeam, error)
	ActiveTeamsByWallet(ctx context.Context, wallet string) ([]*models.KycTeam, error)
	RetiredTeamByWallet(ctx context.Context, wallet string) (*models.KycTeam, error)
	TeamsByOrg(ctx context.Context, orgID string) ([]*models.KycTeam, error)
	InsertKycTeam(ctx context.Context, team *models.KycTeam) error
	RetireTeam(ctx context.Context, id uuid.UUID, when time.Time) error
	RenameTeamWallet(ctx context.Context, id uuid.UUID, wallet string) error

	RepairFlowReceivers(ctx context.Context, placeholder, real string) (int64, error)
	RepointRewardStreams(ctx context.Context, from, to uuid.UUID) error
	RepointProjects(ctx context.Context, projectIDs []string, to uuid.UUID) error
	LinkOrgTeam(ctx context.Context, orgID string, teamID uuid.UUID) error

	StreamsByTeam(ctx context.Context, teamID uuid.UUID) ([]*models.RewardStream, error)
	ProjectsByTeam(ctx context.Context, teamID uuid.UUID) ([]*models.Project, error)
	FlowsByReceiver(ctx context.Context, receiver string) ([]*models.SuperfluidStream, error)
}

// FlowSource answers money-flow subgraph queries. *flows.Client implements it.
type FlowSource interface {
	ActiveFlows(ctx context.Context, sender, receiver string) ([]flows.Flow, error)
}

// Manager resolves which KYC team a wallet's projects attach to, preserving
// reward-stream linkage across retirement and recreation, and repairing
// denormalized records that pointed at the old identity.
type Manager struct {
	Store    Store
	Denylist compliance.Denylist
	Status   compliance.StatusSource
	Flows    FlowSource
	Logger   *zap.Logger
}

// NormalizeWallet lowercases and trims a wallet address; blank input is a
// validation error.
func NormalizeWallet(wallet string) (string, error) {
	w := strings.ToLower(strings.TrimSpace(wallet))
	if w == "" {
		return "", ErrEmptyWallet
	}
	return w, nil
}

// OrderByRetirement sorts a team history strictly by deleted_at ascending with
// the live (never-retired) entry last. Finding more than one live entry is the
// fatal multiple-active violation.
func OrderByRetirement(teams []*models.KycTeam) ([]*models.KycTeam, error) {
	active := 0
	for _, t := range teams {
		if t.State() == models.TeamActive {
			active++
		}
	}
	if active > 1 {
		return nil, ErrMultipleActive
	}

	out := make([]*models.KycTeam, len(teams))
	copy(out, teams)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DeletedAt, out[j].DeletedAt
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
	return out, nil
}

// ActiveTeam returns the single active team holding a wallet, nil when the
// address is free. More than one active row is defensively treated as the
// fatal invariant violation even though the UNIQUE constraint should prevent it.
func (m *Manager) ActiveTeam(ctx context.Context, wallet string) (*models.KycTeam, error) {
	w, err := NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	teams, err := m.Store.ActiveTeamsByWallet(ctx, w)
	if err != nil {
		return nil, err
	}
	switch len(teams) {
	case 0:
		return nil, nil
	case 1:
		return teams[0], nil
	default:
		return nil, fmt.Errorf("%w: %s has %d", ErrMultipleActive, w, len(teams))
	}
}

// WalletHistory returns an organization's team identities ordered by
// retirement, current identity last.
func (m *Manager) WalletHistory(ctx context.Context, orgID string) ([]*models.KycTeam, error) {
	teams, err := m.Store.TeamsByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return OrderByRetirement(teams)
}

// Retire transitions a team Active -> Retired. Its streams and projects stay
// linked; only the team stops being authoritative for its wallet.
func (m *Manager) Retire(ctx context.Context, teamID uuid.UUID) error {
	team, err := m.Store.TeamByID(ctx, teamID)
	if err != nil {
		if postgres.IsNoRows(err) {
			return ErrTeamNotFound
		}
		return err
	}
	if team.State() == models.TeamRetired {
		return nil
	}
	if err := m.Store.RetireTeam(ctx, teamID, time.Now().UTC()); err != nil {
		return err
	}
	m.Logger.Info("Retired KYC team",
		zap.String("team", teamID.String()),
		zap.String("wallet", team.WalletAddress))
	return nil
}

// Verified reports whether every member of the team passed compliance review.
func (m *Manager) Verified(ctx context.Context, team *models.KycTeam) (bool, error) {
	return m.Status.TeamApproved(ctx, team.ID.String())
}

// ReceivingPayout reports whether the wallet currently receives an active
// money flow from the payout sender.
func (m *Manager) ReceivingPayout(ctx context.Context, sender, wallet string) (bool, error) {
	w, err := NormalizeWallet(wallet)
	if err != nil {
		return false, err
	}
	active, err := m.Flows.ActiveFlows(ctx, sender, w)
	if err != nil {
		return false, err
	}
	return len(active) > 0, nil
}
