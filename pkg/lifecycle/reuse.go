package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	models "github.com/openrounds/roundsx/pkg/db/models/grants"
	"github.com/openrounds/roundsx/pkg/db/postgres"
)

// CreateOrReuse obtains a new active KYC team for a wallet address, reclaiming
// the address from a retired predecessor when one holds it. The whole
// transition runs inside one transaction: evacuation, insert, drift repair,
// re-pointing and the organization link all land together or not at all — an
// address evacuated but not yet re-pointed must never be observable.
//
// The serialization point for concurrent claims of the same wallet is the
// UNIQUE constraint on kyc_teams.wallet_address, not application locking; the
// loser's insert fails, the transaction rolls back (undoing its evacuation)
// and the conflict surfaces as ErrWalletExists.
func (m *Manager) CreateOrReuse(ctx context.Context, orgID, wallet string) (*models.KycTeam, error) {
	w, err := NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	newTeam := &models.KycTeam{
		ID:            uuid.New(),
		WalletAddress: w,
		CreatedAt:     time.Now().UTC(),
	}

	reused := false
	txErr := m.Store.InTx(ctx, func(ctx context.Context) error {
		retired, err := m.Store.RetiredTeamByWallet(ctx, w)
		if err != nil {
			return fmt.Errorf("locate retired team: %w", err)
		}
		reused = retired != nil

		if retired != nil {
			// Evacuate the address so the UNIQUE constraint admits the new row.
			if err := m.Store.RenameTeamWallet(ctx, retired.ID, retired.PlaceholderAddress()); err != nil {
				return fmt.Errorf("evacuate wallet %s: %w", w, err)
			}
		}

		if err := m.Store.InsertKycTeam(ctx, newTeam); err != nil {
			if postgres.IsUniqueViolation(err) {
				return ErrWalletExists
			}
			return fmt.Errorf("insert team: %w", err)
		}

		if retired != nil {
			if err := m.repairAndRepoint(ctx, retired, newTeam); err != nil {
				return err
			}
		}

		if err := m.Store.LinkOrgTeam(ctx, orgID, newTeam.ID); err != nil {
			return fmt.Errorf("link organization: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	m.Logger.Info("Created KYC team",
		zap.String("team", newTeam.ID.String()),
		zap.String("org", orgID),
		zap.String("wallet", w),
		zap.Bool("wallet_reused", reused))

	return newTeam, nil
}

// repairAndRepoint runs steps 4-5 of the wallet-reuse transition against the
// retired predecessor: money-flow receivers that drifted onto the placeholder
// come back to the real address, and flow-bearing reward streams plus eligible
// projects move to the new identity. Deny-listed projects are skipped
// silently.
func (m *Manager) repairAndRepoint(ctx context.Context, retired, fresh *models.KycTeam) error {
	repaired, err := m.Store.RepairFlowReceivers(ctx, retired.PlaceholderAddress(), fresh.WalletAddress)
	if err != nil {
		return fmt.Errorf("repair flow receivers: %w", err)
	}
	if repaired > 0 {
		m.Logger.Info("Repaired drifted money-flow receivers",
			zap.Int64("flows", repaired),
			zap.String("wallet", fresh.WalletAddress))
	}

	streams, err := m.Store.StreamsByTeam(ctx, retired.ID)
	if err != nil {
		return fmt.Errorf("load streams of retired team: %w", err)
	}
	if len(streams) > 0 {
		bearing, err := m.flowBearing(ctx, fresh.WalletAddress)
		if err != nil {
			return err
		}
		if bearing {
			if err := m.Store.RepointRewardStreams(ctx, retired.ID, fresh.ID); err != nil {
				return fmt.Errorf("repoint reward streams: %w", err)
			}
		}
	}

	projects, err := m.Store.ProjectsByTeam(ctx, retired.ID)
	if err != nil {
		return fmt.Errorf("load projects of retired team: %w", err)
	}
	eligible := make([]string, 0, len(projects))
	for _, p := range projects {
		blacklisted, err := m.Denylist.IsBlacklisted(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("deny-list check for %s: %w", p.ID, err)
		}
		if blacklisted {
			m.Logger.Debug("Skipping deny-listed project during re-point", zap.String("project", p.ID))
			continue
		}
		eligible = append(eligible, p.ID)
	}
	if err := m.Store.RepointProjects(ctx, eligible, fresh.ID); err != nil {
		return fmt.Errorf("repoint projects: %w", err)
	}
	return nil
}

// flowBearing reports whether any persisted money flow to the wallet is live.
func (m *Manager) flowBearing(ctx context.Context, wallet string) (bool, error) {
	records, err := m.Store.FlowsByReceiver(ctx, wallet)
	if err != nil {
		return false, fmt.Errorf("load flows for %s: %w", wallet, err)
	}
	for _, f := range records {
		rate, err := decimal.NewFromString(f.FlowRate)
		if err != nil {
			m.Logger.Warn("Flow record with unparseable rate",
				zap.String("flow", f.ID),
				zap.String("flow_rate", f.FlowRate))
			continue
		}
		if rate.IsPositive() {
			return true, nil
		}
	}
	return false, nil
}
