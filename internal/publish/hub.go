package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"playable/internal/logging"
	"playable/internal/tactile"
)

// ErrHub is wrapped by every hub API failure.
var ErrHub = errors.New("hub request failed")

// Hub is the model hub surface the pipeline uses.
type Hub interface {
	// CreateRepo creates a model repository, succeeding if it exists.
	CreateRepo(ctx context.Context, repoID string) error

	// UploadFile uploads localPath to pathInRepo.
	UploadFile(ctx context.Context, repoID, localPath, pathInRepo string) error
}

// HubOptions configures HubClient.
type HubOptions struct {
	Endpoint string
	Token    string
	// CLI is the huggingface-cli binary used for uploads.
	CLI     string
	Timeout time.Duration
	Private bool
}

// HubClient creates repos over the Hub REST API and uploads through
// huggingface-cli, which handles chunked and LFS uploads.
type HubClient struct {
	opts     HubOptions
	http     *http.Client
	executor tactile.Executor
}

// NewHubClient creates a hub client. executor runs the upload CLI.
func NewHubClient(opts HubOptions, executor tactile.Executor) *HubClient {
	if opts.Endpoint == "" {
		opts.Endpoint = "https://huggingface.co"
	}
	if opts.CLI == "" {
		opts.CLI = "huggingface-cli"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	return &HubClient{
		opts:     opts,
		http:     &http.Client{Timeout: opts.Timeout},
		executor: executor,
	}
}

type createRepoRequest struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Private      bool   `json:"private"`
}

// CreateRepo posts to /api/repos/create. 409 means the repo exists.
func (c *HubClient) CreateRepo(ctx context.Context, repoID string) error {
	org, name, ok := strings.Cut(repoID, "/")
	if !ok {
		org, name = "", repoID
	}

	body, err := json.Marshal(createRepoRequest{Type: "model", Name: name, Organization: org, Private: c.opts.Private})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint+"/api/repos/create", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrHub, repoID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		logging.HubDebug("Repository %s already exists", repoID)
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		logging.Hub("Created repository %s", repoID)
		return nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: create %s: %s: %s", ErrHub, repoID, resp.Status, strings.TrimSpace(string(msg)))
	}
}

// UploadFile runs `huggingface-cli upload <repo> <local> <path> --repo-type model`.
func (c *HubClient) UploadFile(ctx context.Context, repoID, localPath, pathInRepo string) error {
	cmd := tactile.Command{
		Binary:      c.opts.CLI,
		Arguments:   []string{"upload", repoID, localPath, pathInRepo, "--repo-type", "model"},
		Environment: c.env(),
		Description: fmt.Sprintf("Uploading %s to %s", pathInRepo, repoID),
	}
	if err := tactile.Check(c.executor.Execute(ctx, cmd)); err != nil {
		return fmt.Errorf("upload %s to %s: %w", pathInRepo, repoID, err)
	}
	logging.Hub("Uploaded %s to %s", pathInRepo, repoID)
	return nil
}

func (c *HubClient) env() []string {
	env := []string{"HF_ENDPOINT=" + c.opts.Endpoint}
	if c.opts.Token != "" {
		env = append(env, "HF_TOKEN="+c.opts.Token)
	}
	return env
}

// DryRunHub prints hub calls instead of making them.
type DryRunHub struct {
	Out io.Writer
}

func (h DryRunHub) CreateRepo(_ context.Context, repoID string) error {
	fmt.Fprintf(h.Out, "[dry-run] create repo %s (exist ok)\n", repoID)
	return nil
}

func (h DryRunHub) UploadFile(_ context.Context, repoID, localPath, pathInRepo string) error {
	fmt.Fprintf(h.Out, "[dry-run] upload %s -> %s:%s\n", localPath, repoID, pathInRepo)
	return nil
}
