package flows

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openrounds/roundsx/pkg/utils"
)

// Flow is one money-flow record from the Superfluid subgraph.
type Flow struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	FlowRate string `json:"currentFlowRate"`
	Deposit  string `json:"deposit"`
}

// Client queries the money-flow subgraph. Read-only collaborator: the engine
// uses it to answer "is this wallet currently receiving an active payout".
type Client struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewClient reads SUPERFLUID_SUBGRAPH_URL from the environment.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		endpoint: utils.Env("SUPERFLUID_SUBGRAPH_URL", "http://localhost:8000/subgraphs/superfluid"),
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

const flowQuery = `
	query ($sender: String!, $receiver: String) {
		streams(where: {sender: $sender, receiver: $receiver}) {
			id
			sender
			receiver
			currentFlowRate
			deposit
		}
	}
`

type graphRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphResponse struct {
	Data struct {
		Streams []Flow `json:"streams"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ActiveFlows returns the flows from sender (optionally narrowed to receiver)
// whose flow rate is strictly positive. Zero-rate records are closed streams
// the subgraph still reports; they are filtered locally.
func (c *Client) ActiveFlows(ctx context.Context, sender, receiver string) ([]Flow, error) {
	vars := map[string]any{"sender": sender}
	if receiver != "" {
		vars["receiver"] = receiver
	}

	payload, err := json.Marshal(graphRequest{Query: flowQuery, Variables: vars})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		_ = utils.DrainAndClose(resp.Body)
		return nil, fmt.Errorf("subgraph http %d", resp.StatusCode)
	}

	var out graphResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		_ = utils.DrainAndClose(resp.Body)
		return nil, err
	}
	if err := utils.DrainAndClose(resp.Body); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("subgraph query: %s", out.Errors[0].Message)
	}

	return FilterActive(c.logger, out.Data.Streams), nil
}

// FilterActive keeps flows with flowRate > 0. Rates are exact decimal strings;
// unparseable rates are dropped with a warning rather than treated as active.
func FilterActive(logger *zap.Logger, in []Flow) []Flow {
	active := make([]Flow, 0, len(in))
	for _, f := range in {
		rate, err := decimal.NewFromString(f.FlowRate)
		if err != nil {
			logger.Warn("Dropping flow with unparseable rate",
				zap.String("flow", f.ID),
				zap.String("flow_rate", f.FlowRate))
			continue
		}
		if rate.IsPositive() {
			active = append(active, f)
		}
	}
	return active
}
