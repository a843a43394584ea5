package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"puppet-arena/server/internal/world"
)

const maxRemoteResponse = 64 << 10

// Remote delegates decisions to an HTTP endpoint. The world view is POSTed
// as JSON and the response body is decoded as an action, either bare or
// wrapped in {"action": ...}.
type Remote struct {
	endpoint string
	client   *http.Client
}

func NewRemote(endpoint string, client *http.Client) (*Remote, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: remote agent endpoint %q must be an http(s) URL", world.ErrValidation, endpoint)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{endpoint: endpoint, client: client}, nil
}

func (r *Remote) GetAction(ctx context.Context, view world.WorldView) (world.Action, error) {
	body, err := json.Marshal(view)
	if err != nil {
		return world.Action{}, fmt.Errorf("encode view: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return world.Action{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return world.Action{}, fmt.Errorf("%w: %v", world.ErrAgentFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponse))
	if err != nil {
		return world.Action{}, fmt.Errorf("%w: read response: %v", world.ErrAgentFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return world.Action{}, fmt.Errorf("%w: endpoint returned %s", world.ErrAgentFailure, resp.Status)
	}
	action, err := world.DecodeAction(data)
	if err != nil {
		return world.Action{}, err
	}
	if action.AgentID == "" {
		action.AgentID = view.Self.ID
	}
	return action, nil
}

func (r *Remote) UpdateView(world.WorldView) {}
