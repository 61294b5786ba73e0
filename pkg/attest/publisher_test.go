package attest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openrounds/roundsx/pkg/attest"
	"github.com/openrounds/roundsx/pkg/retry"
)

// fakeLedger accepts batches up to maxBatch items and can be told to fail
// specific payloads. It records the exact submission order it observed.
type fakeLedger struct {
	maxBatch    int
	failing     map[string]int // payload -> remaining failures
	alwaysFail  map[string]bool
	submitted   []string // payloads in observed order
	batchCalls  int
	submitCalls int
}

func (f *fakeLedger) id(payload string) string { return "uid-" + payload }

func (f *fakeLedger) Submit(ctx context.Context, item attest.FactItem) (string, error) {
	f.submitCalls++
	payload := string(item.Payload)
	if f.alwaysFail[payload] {
		return "", fmt.Errorf("rejected %s", payload)
	}
	if n := f.failing[payload]; n > 0 {
		f.failing[payload] = n - 1
		return "", fmt.Errorf("transient fault on %s", payload)
	}
	f.submitted = append(f.submitted, payload)
	return f.id(payload), nil
}

func (f *fakeLedger) SubmitBatch(ctx context.Context, groups []attest.SchemaGroup) ([]string, error) {
	f.batchCalls++
	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}
	if f.maxBatch > 0 && total > f.maxBatch {
		return nil, errors.New("batch exceeds resource limit")
	}
	var ids []string
	for _, g := range groups {
		for _, item := range g.Items {
			f.submitted = append(f.submitted, string(item.Payload))
			ids = append(ids, f.id(string(item.Payload)))
		}
	}
	return ids, nil
}

func (f *fakeLedger) Revoke(ctx context.Context, schemaID string, ids []string) error {
	return nil
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newItems(n int) []attest.FactItem {
	items := make([]attest.FactItem, n)
	for i := range items {
		schema := "schema-a"
		if i%2 == 1 {
			schema = "schema-b"
		}
		items[i] = attest.FactItem{SchemaID: schema, Payload: fmt.Appendf(nil, "p%d", i)}
	}
	return items
}

func TestPublish_Empty(t *testing.T) {
	ledger := &fakeLedger{}
	p := &attest.Publisher{Ledger: ledger, Logger: zaptest.NewLogger(t), Retry: fastRetry()}

	report, err := p.Publish(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.ExternalIDs)
	assert.True(t, report.Succeeded())
	assert.Zero(t, ledger.batchCalls)
	assert.Zero(t, ledger.submitCalls)
}

// TestPublish_SingleItem: one item goes straight to Submit, never through the
// batch path.
func TestPublish_SingleItem(t *testing.T) {
	ledger := &fakeLedger{}
	p := &attest.Publisher{Ledger: ledger, Logger: zaptest.NewLogger(t), Retry: fastRetry()}

	report, err := p.Publish(context.Background(), newItems(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"uid-p0"}, report.ExternalIDs)
	assert.Equal(t, 1, ledger.submitCalls)
	assert.Zero(t, ledger.batchCalls)
}

// TestPublish_OrderPreserved: mixed schemas reorder items inside the combined
// request, but the returned ids line up with the input.
func TestPublish_OrderPreserved(t *testing.T) {
	ledger := &fakeLedger{maxBatch: 100}
	p := &attest.Publisher{Ledger: ledger, Logger: zaptest.NewLogger(t), Retry: fastRetry()}

	items := newItems(6)
	report, err := p.Publish(context.Background(), items)
	require.NoError(t, err)

	want := make([]string, len(items))
	for i := range items {
		want[i] = fmt.Sprintf("uid-p%d", i)
	}
	assert.Equal(t, want, report.ExternalIDs)
	assert.Equal(t, 1, ledger.batchCalls)

	// Inside the request, schema-a items precede schema-b items.
	assert.Equal(t, []string{"p0", "p2", "p4", "p1", "p3", "p5"}, ledger.submitted)
}

// TestPublish_SplitsOversizedBatch: a too-large batch is halved, never
// re-attempted whole; results still come back in input order.
func TestPublish_SplitsOversizedBatch(t *testing.T) {
	ledger := &fakeLedger{maxBatch: 2}
	p := &attest.Publisher{Ledger: ledger, Logger: zaptest.NewLogger(t), Retry: fastRetry()}

	items := newItems(7)
	report, err := p.Publish(context.Background(), items)
	require.NoError(t, err)
	require.True(t, report.Succeeded())

	want := make([]string, len(items))
	for i := range items {
		want[i] = fmt.Sprintf("uid-p%d", i)
	}
	assert.Equal(t, want, report.ExternalIDs)
}

// TestPublish_SequentialLeftToRight: after all splitting, leaves are
// submitted strictly in input order — the ordering/nonce discipline against
// the ledger depends on it.
func TestPublish_SequentialLeftToRight(t *testing.T) {
	ledger := &fakeLedger{maxBatch: 1} // force split down to single items
	p := &attest.Publisher{Ledger: ledger, Logger: zaptest.NewLogger(t), Retry: fastRetry()}

	items := newItems(5)
	report, err := p.Publish(context.Background(), items)
	require.NoError(t, err)
	require.True(t, report.Succeeded())

	assert.Equal(t, []string{"p0", "p1", "p2", "p3", "p4"}, ledger.submitted)
}

// TestPublish_LeafRetriesTransientFault: a leaf that fails twice then
// succeeds lands within the backoff budget.
func TestPublish_LeafRetriesTransientFault(t *testing.T) {
	ledger := &fakeLedger{failing: map[string]int{"p0": 2}}
	p := &attest.Publisher{Ledger: ledger, Logger: zaptest.NewLogger(t), Retry: fastRetry()}

	report, err := p.Publish(context.Background(), newItems(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"uid-p0"}, report.ExternalIDs)
	assert.Equal(t, 3, ledger.submitCalls)
}

// TestPublish_PartialFailure: one poisoned item fails terminally, its
// siblings' ids are still reported.
func TestPublish_PartialFailure(t *testing.T) {
	ledger := &fakeLedger{
		maxBatch:   1, // every item becomes its own leaf
		alwaysFail: map[string]bool{"p2": true},
	}
	p := &attest.Publisher{Ledger: ledger, Logger: zaptest.NewLogger(t), Retry: fastRetry()}

	items := newItems(5)
	report, err := p.Publish(context.Background(), items)
	require.Error(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 2, report.Failures[0].Index)
	// The terminal error names the failing item.
	assert.Contains(t, report.Failures[0].Err.Error(), "item_2")

	assert.Equal(t, "uid-p0", report.ExternalIDs[0])
	assert.Equal(t, "uid-p1", report.ExternalIDs[1])
	assert.Empty(t, report.ExternalIDs[2])
	assert.Equal(t, "uid-p3", report.ExternalIDs[3])
	assert.Equal(t, "uid-p4", report.ExternalIDs[4])
}

// TestPublish_CancelledContextAborts: cancellation is terminal for the whole
// publish, not retried.
func TestPublish_CancelledContextAborts(t *testing.T) {
	ledger := &fakeLedger{alwaysFail: map[string]bool{"p0": true}}
	p := &attest.Publisher{Ledger: ledger, Logger: zaptest.NewLogger(t), Retry: fastRetry()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Publish(ctx, newItems(1))
	require.Error(t, err)
}
