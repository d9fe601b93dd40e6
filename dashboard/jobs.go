package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/justapithecus/rayjob/types"
)

var errEmptyID = fmt.Errorf("%w: empty submission id", types.ErrValidation)

func jobPath(id, suffix string) (string, error) {
	if id == "" {
		return "", errEmptyID
	}
	return "/api/jobs/" + url.PathEscape(id) + suffix, nil
}

// SubmitJob posts a job and returns the id assigned by the dashboard.
func (c *Client) SubmitJob(ctx context.Context, req *types.JobSubmitRequest) (string, error) {
	if req == nil {
		return "", errors.New("submit job: request is nil")
	}
	if req.Entrypoint == "" {
		return "", fmt.Errorf("%w: entrypoint is required", types.ErrValidation)
	}

	var out types.JobSubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/jobs/", req, &out); err != nil {
		return "", err
	}
	c.logger.Info("job submitted", map[string]any{"submission_id": out.SubmissionID})
	return out.SubmissionID, nil
}

// ListJobs returns every job the dashboard knows about.
func (c *Client) ListJobs(ctx context.Context) ([]types.JobDetails, error) {
	var out []types.JobDetails
	if err := c.doJSON(ctx, http.MethodGet, "/api/jobs/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetJobDetails fetches the full record of one job.
func (c *Client) GetJobDetails(ctx context.Context, id string) (*types.JobDetails, error) {
	path, err := jobPath(id, "")
	if err != nil {
		return nil, err
	}
	var out types.JobDetails
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJobStatus fetches the current status of one job. It is never cached.
func (c *Client) GetJobStatus(ctx context.Context, id string) (types.JobStatus, error) {
	details, err := c.GetJobDetails(ctx, id)
	if err != nil {
		return "", err
	}
	return details.Status, nil
}

// StopJob asks the dashboard to stop a job.
func (c *Client) StopJob(ctx context.Context, id string) (bool, error) {
	path, err := jobPath(id, "/stop")
	if err != nil {
		return false, err
	}
	var out types.JobStopResponse
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return false, err
	}
	return out.Stopped, nil
}

// DeleteJob removes a terminated job.
func (c *Client) DeleteJob(ctx context.Context, id string) (bool, error) {
	path, err := jobPath(id, "")
	if err != nil {
		return false, err
	}
	var out types.JobDeleteResponse
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

// GetJobLogs returns the accumulated logs of a job.
func (c *Client) GetJobLogs(ctx context.Context, id string) (string, error) {
	path, err := jobPath(id, "/logs")
	if err != nil {
		return "", err
	}
	var out types.JobLogsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.Logs, nil
}
