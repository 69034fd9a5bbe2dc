package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/session"
)

// RemoteClient submits a Task node's firing to the remote task HTTP API
// instead of spawning a local process. The remote
// side is responsible for running the block and dialing back to
// brokerAddr exactly as a locally spawned worker would; Spawn only
// confirms the remote side accepted the job and returns without
// waiting for the block to run.
type RemoteClient struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	HTTP    *http.Client
}

// NewRemoteClient builds a client for OOCANA_TASK_API_URL, authenticated
// with OOMOL_TOKEN and bounded by OOCANA_TASK_TIMEOUT in addition to
// whatever timeout the node itself declares.
func NewRemoteClient(baseURL, token string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		BaseURL: baseURL,
		Token:   token,
		Timeout: timeout,
		HTTP:    &http.Client{},
	}
}

type remoteTaskRequest struct {
	SessionID string `json:"session_id"`
	NodeID    string `json:"node_id"`
	JobID     string `json:"job_id"`
	BlockRef  string `json:"block_ref"`
	Executor  string `json:"executor"`
	BrokerURL string `json:"broker_addr"`
	PkgRoot   string `json:"pkg_root,omitempty"`
}

// Spawn implements the broker.Spawner signature so RouteSpawner can pick
// between this and DefaultSpawner per node without the rest of the
// Broker's dispatch/timeout/semaphore bookkeeping knowing the
// difference. There is no local child process for a remote job, so it
// always returns a nil *exec.Cmd on success.
func (c *RemoteClient) Spawn(ctx context.Context, scope session.Scope, node *flow.Node, brokerAddr string, jobID flow.JobId) (*exec.Cmd, error) {
	if node.Task == nil {
		return nil, fmt.Errorf("remote spawn: node %s is not a task", node.ID)
	}

	reqCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(remoteTaskRequest{
		SessionID: string(scope.SessionID),
		NodeID:    string(node.ID),
		JobID:     string(jobID),
		BlockRef:  node.Task.BlockRef,
		Executor:  node.Task.Executor,
		BrokerURL: brokerAddr,
		PkgRoot:   scope.PkgRoot,
	})
	if err != nil {
		return nil, fmt.Errorf("remote spawn: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.BaseURL+"/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote spawn: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("remote spawn: submitting job %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("remote spawn: task API rejected job %s: %s: %s", jobID, resp.Status, string(respBody))
	}
	return nil, nil
}

// RouteSpawner picks remote or local per node, so a single Broker can
// mix locally spawned and remotely submitted Task nodes within one
// session depending on each node's own spawn.remote setting.
func RouteSpawner(local, remote Spawner) Spawner {
	return func(ctx context.Context, scope session.Scope, node *flow.Node, brokerAddr string, jobID flow.JobId) (*exec.Cmd, error) {
		if node.Task != nil && node.Task.Spawn.Remote && remote != nil {
			return remote(ctx, scope, node, brokerAddr, jobID)
		}
		return local(ctx, scope, node, brokerAddr, jobID)
	}
}
