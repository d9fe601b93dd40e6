package dashboard_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/rayjob/dashboard"
	"github.com/justapithecus/rayjob/dashboard/dashboardtest"
	"github.com/justapithecus/rayjob/types"
)

func newClient(t *testing.T, srv *dashboardtest.Server, opts ...dashboard.Option) *dashboard.Client {
	t.Helper()
	c, err := dashboard.New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	tests := []string{"", "not a url", "ftp://host", "http://", "://x"}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := dashboard.New(raw)
			if !errors.Is(err, dashboard.ErrInvalidURL) {
				t.Fatalf("err = %v, want ErrInvalidURL", err)
			}
			if !errors.Is(err, types.ErrValidation) {
				t.Errorf("err = %v, want validation kind", err)
			}
		})
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c, err := dashboard.New("http://127.0.0.1:8265/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.BaseURL() != "http://127.0.0.1:8265" {
		t.Errorf("BaseURL = %s", c.BaseURL())
	}
}

func TestClient_SendsUserAgent(t *testing.T) {
	srv := dashboardtest.New(t)
	c := newClient(t, srv)

	if err := c.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if srv.UserAgentCount(types.UserAgent) != 1 {
		t.Errorf("default user agent not sent")
	}

	custom := newClient(t, srv, dashboard.WithUserAgent("ci-bot/1.0"))
	if _, err := custom.Version(t.Context()); err != nil {
		t.Fatalf("Version: %v", err)
	}
	if srv.UserAgentCount("ci-bot/1.0") != 1 {
		t.Errorf("custom user agent not sent")
	}
	if c.UserAgent() != types.UserAgent {
		t.Errorf("custom option leaked into another client: %s", c.UserAgent())
	}
}

func TestClient_Version(t *testing.T) {
	srv := dashboardtest.New(t)
	v, err := newClient(t, srv).Version(t.Context())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.RayVersion != "2.40.0" {
		t.Errorf("RayVersion = %s", v.RayVersion)
	}
}

func TestClient_JobLifecycle(t *testing.T) {
	srv := dashboardtest.New(t)
	srv.SetSubmitScript(types.JobStatusRunning)
	c := newClient(t, srv)
	ctx := t.Context()

	id, err := c.SubmitJob(ctx, &types.JobSubmitRequest{Entrypoint: "python train.py", SubmissionID: "job-1"})
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if id != "job-1" {
		t.Fatalf("id = %s, want job-1", id)
	}

	status, err := c.GetJobStatus(ctx, id)
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if status != types.JobStatusRunning {
		t.Errorf("status = %s, want RUNNING", status)
	}

	jobs, err := c.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID() != "job-1" {
		t.Errorf("ListJobs = %+v", jobs)
	}

	stopped, err := c.StopJob(ctx, id)
	if err != nil || !stopped {
		t.Fatalf("StopJob = %v, %v", stopped, err)
	}
	details, err := c.GetJobDetails(ctx, id)
	if err != nil {
		t.Fatalf("GetJobDetails: %v", err)
	}
	if details.Status != types.JobStatusStopped {
		t.Errorf("status after stop = %s", details.Status)
	}

	deleted, err := c.DeleteJob(ctx, id)
	if err != nil || !deleted {
		t.Fatalf("DeleteJob = %v, %v", deleted, err)
	}

	_, err = c.GetJobDetails(ctx, id)
	var statusErr *dashboard.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 StatusError", err)
	}
	if !errors.Is(err, types.ErrTransport) {
		t.Errorf("status error not classified as transport")
	}
}

func TestClient_SubmitRequiresEntrypoint(t *testing.T) {
	srv := dashboardtest.New(t)
	_, err := newClient(t, srv).SubmitJob(t.Context(), &types.JobSubmitRequest{})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("err = %v, want validation kind", err)
	}
}

func TestClient_EmptyIDRejected(t *testing.T) {
	srv := dashboardtest.New(t)
	_, err := newClient(t, srv).GetJobDetails(t.Context(), "")
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("err = %v, want validation kind", err)
	}
}

func TestClient_GetJobLogs(t *testing.T) {
	srv := dashboardtest.New(t)
	srv.AddJob("job-logs", "line one\nline two\n", types.JobStatusSucceeded)

	logs, err := newClient(t, srv).GetJobLogs(t.Context(), "job-logs")
	if err != nil {
		t.Fatalf("GetJobLogs: %v", err)
	}
	if logs != "line one\nline two\n" {
		t.Errorf("logs = %q", logs)
	}
}

func TestClient_TailJobLogs(t *testing.T) {
	srv := dashboardtest.New(t)
	srv.AddJob("job-tail", "a\nb\nc\n", types.JobStatusRunning)

	var chunks []string
	err := newClient(t, srv).TailJobLogs(t.Context(), "job-tail", func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("TailJobLogs: %v", err)
	}
	if strings.Join(chunks, "") != "a\nb\nc\n" {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestClient_TailJobLogs_CallbackErrorStops(t *testing.T) {
	srv := dashboardtest.New(t)
	srv.AddJob("job-tail", "a\nb\n", types.JobStatusRunning)
	stop := errors.New("enough")

	err := newClient(t, srv).TailJobLogs(t.Context(), "job-tail", func(string) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want callback error", err)
	}
}

func TestClient_TailJobLogs_UnknownJob(t *testing.T) {
	srv := dashboardtest.New(t)
	err := newClient(t, srv).TailJobLogs(t.Context(), "missing", func(string) error { return nil })

	var statusErr *dashboard.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 StatusError", err)
	}
}

func TestClient_TailJobLogs_KeepsEscapedBasePath(t *testing.T) {
	uris := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uris <- r.RequestURI
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := dashboard.New(srv.URL + "/proxy%2Fray")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = c.TailJobLogs(t.Context(), "job/1", func(string) error { return nil })

	if gotURI, want := <-uris, "/proxy%2Fray/api/jobs/job%2F1/logs/tail"; gotURI != want {
		t.Errorf("request URI = %q, want %q", gotURI, want)
	}
}

func TestClient_PackageExistsAndUpload(t *testing.T) {
	srv := dashboardtest.New(t)
	c := newClient(t, srv)
	ctx := t.Context()

	ok, err := c.PackageExists(ctx, "gcs", "_ray_pkg_abc.zip")
	if err != nil {
		t.Fatalf("PackageExists: %v", err)
	}
	if ok {
		t.Fatal("package reported present before upload")
	}

	if err := c.UploadPackage(ctx, "gcs", "_ray_pkg_abc.zip", []byte("zipbytes")); err != nil {
		t.Fatalf("UploadPackage: %v", err)
	}
	data, stored := srv.Package("gcs", "_ray_pkg_abc.zip")
	if !stored || string(data) != "zipbytes" {
		t.Errorf("stored = %v %q", stored, data)
	}

	ok, err = c.PackageExists(ctx, "gcs", "_ray_pkg_abc.zip")
	if err != nil || !ok {
		t.Fatalf("PackageExists after upload = %v, %v", ok, err)
	}
}

func TestClient_PackageExists_OtherStatusIsError(t *testing.T) {
	srv := dashboardtest.New(t)
	srv.FailWith(http.StatusServiceUnavailable)

	_, err := newClient(t, srv).PackageExists(t.Context(), "gcs", "x.zip")
	var statusErr *dashboard.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503 StatusError", err)
	}
	if !strings.Contains(statusErr.Body, "injected failure") {
		t.Errorf("body = %q", statusErr.Body)
	}
}

func TestClient_NetworkErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := dashboard.New(url, dashboard.WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ping(t.Context()); !errors.Is(err, types.ErrTransport) {
		t.Fatalf("err = %v, want transport kind", err)
	}
}
