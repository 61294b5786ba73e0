package attest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"

	"github.com/openrounds/roundsx/pkg/utils"
)

// FactItem is one attestation to publish: an opaque payload bound to a schema,
// optionally referencing a previously published attestation. Ephemeral; never
// persisted.
type FactItem struct {
	SchemaID string `json:"schemaId"`
	Payload  []byte `json:"payload"`
	RefUID   string `json:"refUid,omitempty"`
}

// SchemaGroup is a schema-homogeneous slice of items within one batched
// submission. Groups are ordered: the ledger returns one id per payload,
// concatenated across groups in the same relative order they were supplied.
type SchemaGroup struct {
	SchemaID string
	Items    []FactItem
}

// Ledger is the external attestation submission interface.
type Ledger interface {
	Submit(ctx context.Context, item FactItem) (string, error)
	SubmitBatch(ctx context.Context, groups []SchemaGroup) ([]string, error)
	Revoke(ctx context.Context, schemaID string, externalIDs []string) error
}

// HTTPLedger submits attestations to the external attester service over JSON.
type HTTPLedger struct {
	endpoint string
	client   *http.Client
}

// NewHTTPLedger reads ATTESTER_URL from the environment.
func NewHTTPLedger() *HTTPLedger {
	return &HTTPLedger{
		endpoint: utils.Env("ATTESTER_URL", "http://localhost:8085"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type submitRequest struct {
	SchemaID string `json:"schemaId"`
	Data     string `json:"data"`
	RefUID   string `json:"refUid,omitempty"`
}

type submitResponse struct {
	UID string `json:"uid"`
}

type batchGroup struct {
	SchemaID string          `json:"schemaId"`
	Items    []submitRequest `json:"items"`
}

type batchRequest struct {
	Groups []batchGroup `json:"groups"`
}

type batchResponse struct {
	UIDs []string `json:"uids"`
}

func (l *HTTPLedger) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		_ = utils.DrainAndClose(resp.Body)
		return fmt.Errorf("attester http %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			_ = utils.DrainAndClose(resp.Body)
			return err
		}
	}
	return utils.DrainAndClose(resp.Body)
}

// Submit publishes a single attestation and returns its external id.
func (l *HTTPLedger) Submit(ctx context.Context, item FactItem) (string, error) {
	req := submitRequest{
		SchemaID: item.SchemaID,
		Data:     base64.StdEncoding.EncodeToString(item.Payload),
		RefUID:   item.RefUID,
	}
	var out submitResponse
	if err := l.post(ctx, "/api/attest", req, &out); err != nil {
		return "", err
	}
	if out.UID == "" {
		return "", fmt.Errorf("attester returned empty uid for schema %s", item.SchemaID)
	}
	return out.UID, nil
}

// SubmitBatch publishes schema-grouped attestations in one combined request.
// The response must carry exactly one id per submitted payload; a shorter or
// longer response is an error, never a silent drop.
func (l *HTTPLedger) SubmitBatch(ctx context.Context, groups []SchemaGroup) ([]string, error) {
	total := 0
	req := batchRequest{Groups: make([]batchGroup, 0, len(groups))}
	for _, g := range groups {
		bg := batchGroup{SchemaID: g.SchemaID, Items: make([]submitRequest, 0, len(g.Items))}
		for _, item := range g.Items {
			bg.Items = append(bg.Items, submitRequest{
				SchemaID: item.SchemaID,
				Data:     base64.StdEncoding.EncodeToString(item.Payload),
				RefUID:   item.RefUID,
			})
			total++
		}
		req.Groups = append(req.Groups, bg)
	}

	var out batchResponse
	if err := l.post(ctx, "/api/attest/batch", req, &out); err != nil {
		return nil, err
	}
	if len(out.UIDs) != total {
		return nil, fmt.Errorf("attester returned %d uids for %d payloads", len(out.UIDs), total)
	}
	return out.UIDs, nil
}

// Revoke revokes previously published attestations under one schema.
func (l *HTTPLedger) Revoke(ctx context.Context, schemaID string, externalIDs []string) error {
	payload := map[string]any{"schemaId": schemaID, "uids": externalIDs}
	return l.post(ctx, "/api/revoke", payload, nil)
}
