package streams

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount marks an award amount that failed exact-decimal parsing.
// Malformed amounts fail the whole aggregation, they are never coerced to zero.
var ErrMalformedAmount = errors.New("malformed reward amount")

// TrancheReward is one (tranche, amount) pair contributed by a project.
type TrancheReward struct {
	Tranche int32
	Amount  string
}

// ProjectRewards is the full tranche schedule of one contributing project.
type ProjectRewards struct {
	ProjectID string
	Rewards   []TrancheReward
}

// Aggregate sums per-tranche award amounts across projects. Output index k
// holds the exact sum of every project's tranche-k amounts; the output length
// is max(tranche)+1 across all inputs with every index present, zero where no
// project contributes. Duplicate tranche rows within a project sum rather than
// overwrite. All arithmetic is exact decimal; floating point never enters.
func Aggregate(projects []ProjectRewards) ([]decimal.Decimal, error) {
	maxTranche := int32(-1)
	for _, p := range projects {
		for _, r := range p.Rewards {
			if r.Tranche < 0 {
				return nil, fmt.Errorf("project %s: negative tranche %d", p.ProjectID, r.Tranche)
			}
			if r.Tranche > maxTranche {
				maxTranche = r.Tranche
			}
		}
	}
	if maxTranche < 0 {
		return nil, nil
	}

	totals := make([]decimal.Decimal, maxTranche+1)
	for _, p := range projects {
		for _, r := range p.Rewards {
			amount, err := decimal.NewFromString(r.Amount)
			if err != nil {
				return nil, fmt.Errorf("%w: project %s tranche %d: %q",
					ErrMalformedAmount, p.ProjectID, r.Tranche, r.Amount)
			}
			totals[r.Tranche] = totals[r.Tranche].Add(amount)
		}
	}
	return totals, nil
}

// FormatAmounts renders aggregated totals back to canonical decimal strings.
func FormatAmounts(totals []decimal.Decimal) []string {
	out := make([]string, len(totals))
	for i, t := range totals {
		out[i] = t.String()
	}
	return out
}
