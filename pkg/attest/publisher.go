package attest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openrounds/roundsx/pkg/retry"
)

// ItemFailure records one input item whose leaf submission exhausted its
// retry budget.
type ItemFailure struct {
	Index int
	Err   error
}

// Report is the outcome of a Publish call. ExternalIDs is index-aligned with
// the input: position k holds item k's external id, or "" when that item is
// listed in Failures. Partial success is expected and reported, never
// discarded: callers act on the successful subset.
type Report struct {
	ExternalIDs []string
	Failures    []ItemFailure
}

// Succeeded reports whether every input item got an external id.
func (r *Report) Succeeded() bool {
	return len(r.Failures) == 0
}

// Publisher submits fact records to the external ledger in schema-grouped
// batches, splitting adaptively when a batch fails. Two failure modes get two
// strategies: a batch too large for the ledger's resource limits is fixed by
// halving, a transient outage is fixed by per-leaf backoff. A failed
// multi-item batch therefore always splits rather than being re-attempted;
// backoff applies only at single-item leaves.
type Publisher struct {
	Ledger Ledger
	Logger *zap.Logger
	Retry  retry.Config
}

// NewPublisher wires a publisher with the submission retry settings.
func NewPublisher(ledger Ledger, logger *zap.Logger) *Publisher {
	return &Publisher{
		Ledger: ledger,
		Logger: logger,
		Retry:  retry.SubmissionConfig(),
	}
}

// segment is a half-open index range over the input items.
type segment struct {
	start, end int
}

// Publish submits items and returns one external id per input item, in input
// order. Splitting is an iterative worklist, not recursion: halves are pushed
// right-then-left onto a stack so processing stays strictly left-to-right, and
// sub-batches are always submitted sequentially to preserve ordering against
// the ledger. The returned error is non-nil iff at least one item failed
// terminally; the report still carries every sibling success.
func (p *Publisher) Publish(ctx context.Context, items []FactItem) (*Report, error) {
	report := &Report{ExternalIDs: make([]string, len(items))}
	if len(items) == 0 {
		// Publishing nothing is suspicious upstream, but not an error here.
		p.Logger.Warn("Publish called with no items")
		return report, nil
	}

	stack := []segment{{0, len(items)}}
	for len(stack) > 0 {
		seg := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seg.end-seg.start == 1 {
			if err := p.submitLeaf(ctx, items, seg.start, report); err != nil {
				return report, err
			}
			continue
		}

		ids, err := p.submitGrouped(ctx, items[seg.start:seg.end])
		if err == nil {
			copy(report.ExternalIDs[seg.start:seg.end], ids)
			continue
		}

		mid := seg.start + (seg.end-seg.start)/2
		p.Logger.Warn("Batch submission failed, splitting",
			zap.Int("batch_size", seg.end-seg.start),
			zap.Int("left", mid-seg.start),
			zap.Int("right", seg.end-mid),
			zap.Error(err))
		stack = append(stack, segment{mid, seg.end}, segment{seg.start, mid})
	}

	if len(report.Failures) > 0 {
		return report, fmt.Errorf("published %d of %d items, %d failed terminally (first: %w)",
			len(items)-len(report.Failures), len(items), len(report.Failures), report.Failures[0].Err)
	}
	return report, nil
}

// submitLeaf submits a single item with bounded backoff. Exhausting the
// budget is terminal for this leaf only; siblings keep going. A cancelled
// context aborts the whole publish.
func (p *Publisher) submitLeaf(ctx context.Context, items []FactItem, idx int, report *Report) error {
	// The operation label carries the leaf, so the terminal error names which
	// item of the publish exhausted its budget.
	operation := fmt.Sprintf("ledger_submit_item_%d", idx)
	err := retry.WithBackoff(ctx, p.Retry, p.Logger, operation, func() error {
		id, submitErr := p.Ledger.Submit(ctx, items[idx])
		if submitErr != nil {
			return submitErr
		}
		report.ExternalIDs[idx] = id
		return nil
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("publish aborted at item %d: %w", idx, ctx.Err())
	}
	p.Logger.Error("Leaf submission failed terminally",
		zap.Int("item", idx),
		zap.String("schema", items[idx].SchemaID),
		zap.Error(err))
	report.Failures = append(report.Failures, ItemFailure{Index: idx, Err: err})
	return nil
}

// submitGrouped buckets a batch by schema (first-appearance order, stable
// within each bucket) and submits all buckets as one combined request. The
// ledger returns ids concatenated across groups in supplied order; they are
// mapped back to the batch's original positions before returning.
func (p *Publisher) submitGrouped(ctx context.Context, batch []FactItem) ([]string, error) {
	var order []string
	grouped := map[string][]int{}
	for i, item := range batch {
		if _, ok := grouped[item.SchemaID]; !ok {
			order = append(order, item.SchemaID)
		}
		grouped[item.SchemaID] = append(grouped[item.SchemaID], i)
	}

	groups := make([]SchemaGroup, 0, len(order))
	var positions []int
	for _, schemaID := range order {
		g := SchemaGroup{SchemaID: schemaID}
		for _, idx := range grouped[schemaID] {
			g.Items = append(g.Items, batch[idx])
			positions = append(positions, idx)
		}
		groups = append(groups, g)
	}

	ids, err := p.Ledger.SubmitBatch(ctx, groups)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(batch) {
		return nil, fmt.Errorf("ledger returned %d ids for batch of %d", len(ids), len(batch))
	}

	out := make([]string, len(batch))
	for k, idx := range positions {
		out[idx] = ids[k]
	}
	return out, nil
}
