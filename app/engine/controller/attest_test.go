package controller_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openrounds/roundsx/app/engine/controller"
	"github.com/openrounds/roundsx/app/engine/types"
	"github.com/openrounds/roundsx/pkg/attest"
)

// abortingLedger rejects combined batches, issues an id for the first leaf
// and cuts the request short on the second.
type abortingLedger struct {
	cancel  context.CancelFunc
	submits int
}

func (l *abortingLedger) Submit(ctx context.Context, item attest.FactItem) (string, error) {
	l.submits++
	if l.submits == 1 {
		return "uid-first", nil
	}
	l.cancel()
	return "", errors.New("connection lost")
}

func (l *abortingLedger) SubmitBatch(ctx context.Context, groups []attest.SchemaGroup) ([]string, error) {
	return nil, errors.New("batch exceeds resource limit")
}

func (l *abortingLedger) Revoke(ctx context.Context, schemaID string, ids []string) error {
	return nil
}

// TestHandlePublish_AbortKeepsPartialIDs: a publish cut short by cancellation
// still reports the ids the ledger already issued, never a bare error body.
func TestHandlePublish_AbortKeepsPartialIDs(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger := &abortingLedger{cancel: cancel}
	app := &types.App{
		Ledger:    ledger,
		Publisher: attest.NewPublisher(ledger, logger),
		Logger:    logger,
	}
	c := controller.NewController(app)

	body, err := json.Marshal(map[string]any{
		"items": []map[string]string{
			{"schemaId": "schema-a", "data": base64.StdEncoding.EncodeToString([]byte("p0"))},
			{"schemaId": "schema-a", "data": base64.StdEncoding.EncodeToString([]byte("p1"))},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/attest/publish", bytes.NewReader(body)).WithContext(ctx)
	rec := httptest.NewRecorder()
	c.HandlePublish(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		ExternalIDs []string `json:"externalIds"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.ExternalIDs, 2)
	assert.Equal(t, "uid-first", resp.ExternalIDs[0])
	assert.Empty(t, resp.ExternalIDs[1])
}
