// Package dashboardtest provides an in-memory job dashboard for tests.
package dashboardtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/justapithecus/rayjob/types"
)

// Server is a fake dashboard serving the jobs and packages endpoints.
//
// Each job replays a status script: every details request returns the next
// status, and the last one sticks.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	jobs         map[string]*job
	packages     map[string][]byte
	puts         int
	submitted    []types.JobSubmitRequest
	userAgents   map[string]int
	failCode     int
	nextID       int
	submitScript []types.JobStatus
	holdTail     bool
}

type job struct {
	details types.JobDetails
	script  []types.JobStatus
	polls   int
	logs    string
}

// New starts a fake dashboard that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		jobs:         make(map[string]*job),
		packages:     make(map[string][]byte),
		userAgents:   make(map[string]int),
		submitScript: []types.JobStatus{types.JobStatusPending, types.JobStatusRunning, types.JobStatusSucceeded},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /api/jobs/{$}", s.handleList)
	mux.HandleFunc("POST /api/jobs/{$}", s.handleSubmit)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleDetails)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/jobs/{id}/stop", s.handleStop)
	mux.HandleFunc("GET /api/jobs/{id}/logs", s.handleLogs)
	mux.HandleFunc("GET /api/jobs/{id}/logs/tail", s.handleTail)
	mux.HandleFunc("GET /api/packages/{protocol}/{name}", s.handlePackageGet)
	mux.HandleFunc("PUT /api/packages/{protocol}/{name}", s.handlePackagePut)

	s.Server = httptest.NewServer(s.middleware(mux))
	t.Cleanup(s.Close)
	return s
}

// SetSubmitScript sets the status script given to newly submitted jobs.
func (s *Server) SetSubmitScript(statuses ...types.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitScript = statuses
}

// AddJob registers a job with a status script and optional logs.
func (s *Server) AddJob(id, logs string, statuses ...types.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addJobLocked(id, "echo "+id, nil, logs, statuses)
}

// HoldTail keeps log tail streams open after the logs are sent, as the
// dashboard does for a job that is still running. The stream ends when the
// client disconnects.
func (s *Server) HoldTail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdTail = true
}

// FailWith makes every request answer code until reset with 0.
func (s *Server) FailWith(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCode = code
}

// PutCount returns the number of package uploads received.
func (s *Server) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Package returns the stored bytes of a package.
func (s *Server) Package(protocol, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.packages[protocol+"/"+name]
	return data, ok
}

// SetPackage stores a package as if it had been uploaded earlier.
func (s *Server) SetPackage(protocol, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[protocol+"/"+name] = data
}

// Submitted returns copies of every accepted submit request, in order.
func (s *Server) Submitted() []types.JobSubmitRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.JobSubmitRequest, len(s.submitted))
	for i := range s.submitted {
		out[i] = s.submitted[i].Clone()
	}
	return out
}

// Polls returns how many times a job's details were fetched.
func (s *Server) Polls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		return j.polls
	}
	return 0
}

// UserAgentCount returns how many requests carried the given User-Agent.
func (s *Server) UserAgentCount(ua string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userAgents[ua]
}

func (s *Server) addJobLocked(id, entrypoint string, env *types.RuntimeEnv, logs string, statuses []types.JobStatus) {
	if len(statuses) == 0 {
		statuses = []types.JobStatus{types.JobStatusPending}
	}
	sid := id
	s.jobs[id] = &job{
		details: types.JobDetails{
			Type:         types.JobTypeSubmission,
			Entrypoint:   entrypoint,
			Status:       statuses[0],
			SubmissionID: &sid,
			RuntimeEnv:   env,
		},
		script: append([]types.JobStatus(nil), statuses...),
		logs:   logs,
	}
}

// middleware mimics the dashboard's refusal of requests without a
// User-Agent and applies injected failures.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		s.mu.Lock()
		s.userAgents[ua]++
		failCode := s.failCode
		s.mu.Unlock()

		if ua == "" {
			http.Error(w, "missing user agent", http.StatusInternalServerError)
			return
		}
		if failCode != 0 {
			http.Error(w, "injected failure", failCode)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, types.VersionResponse{Version: "4", RayVersion: "2.40.0", RayCommit: "deadbeef"})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.JobDetails, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.details)
	}
	writeJSON(w, out)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req types.JobSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Entrypoint == "" {
		http.Error(w, "entrypoint required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := req.SubmissionID
	if id == "" {
		s.nextID++
		id = fmt.Sprintf("raysubmit_%d", s.nextID)
	}
	if _, exists := s.jobs[id]; exists {
		http.Error(w, "job "+id+" already exists", http.StatusBadRequest)
		return
	}
	s.submitted = append(s.submitted, req.Clone())
	s.addJobLocked(id, req.Entrypoint, req.RuntimeEnv.Clone(), "", s.submitScript)
	writeJSON(w, types.JobSubmitResponse{SubmissionID: id})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*job, bool) {
	j, ok := s.jobs[r.PathValue("id")]
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
	}
	return j, ok
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	idx := min(j.polls, len(j.script)-1)
	j.details.Status = j.script[idx]
	j.polls++
	writeJSON(w, j.details)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !j.details.Status.IsTerminal() {
		http.Error(w, "job is still running", http.StatusBadRequest)
		return
	}
	delete(s.jobs, r.PathValue("id"))
	writeJSON(w, types.JobDeleteResponse{Deleted: true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if j.details.Status.IsTerminal() {
		writeJSON(w, types.JobStopResponse{Stopped: false})
		return
	}
	j.script = []types.JobStatus{types.JobStatusStopped}
	j.polls = 0
	j.details.Status = types.JobStatusStopped
	writeJSON(w, types.JobStopResponse{Stopped: true})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, types.JobLogsResponse{Logs: j.logs})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleTail(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, ok := s.lookup(w, r)
	var logs string
	if ok {
		logs = j.logs
	}
	hold := s.holdTail
	s.mu.Unlock()
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	for _, line := range strings.SplitAfter(logs, "\n") {
		if line == "" {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}
	if hold {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
}

func (s *Server) handlePackageGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.packages[r.PathValue("protocol")+"/"+r.PathValue("name")]; !ok {
		http.Error(w, "package not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePackagePut(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	s.packages[r.PathValue("protocol")+"/"+r.PathValue("name")] = data
	w.WriteHeader(http.StatusOK)
}
