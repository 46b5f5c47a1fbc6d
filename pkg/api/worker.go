package api

import (
	"encoding/json"
	"net/http"

	"github.com/AOSC-Dev/buildit/internal/apierr"
	"github.com/AOSC-Dev/buildit/internal/core/domain"
	"github.com/AOSC-Dev/buildit/internal/core/services"
	"github.com/AOSC-Dev/buildit/internal/httpx"
)

type workerView struct {
	ID                   domain.WorkerID `json:"id"`
	Hostname             string          `json:"hostname"`
	Arch                 string          `json:"arch"`
	LogicalCores         int32           `json:"logical_cores"`
	MemoryBytes          int64           `json:"memory_bytes"`
	DiskFreeSpaceBytes   int64           `json:"disk_free_space_bytes"`
	GitCommit            string          `json:"git_commit"`
	LastHeartbeatTime    string          `json:"last_heartbeat_time"`
	InternetConnectivity bool            `json:"internet_connectivity"`
	RunningJobID         *domain.JobID   `json:"running_job_id"`
	RunningJobAssignTime *string         `json:"running_job_assign_time"`
	PerformanceWeight    float64         `json:"performance_weight"`
	IsLive               bool            `json:"is_live"`
}

func renderWorkerView(v services.WorkerView) workerView {
	w := v.Worker
	return workerView{
		ID: w.ID, Hostname: w.Hostname, Arch: w.Arch,
		LogicalCores: w.Capabilities.LogicalCores, MemoryBytes: w.Capabilities.MemoryBytes,
		DiskFreeSpaceBytes: w.Capabilities.DiskFreeSpaceBytes, GitCommit: w.GitCommit,
		LastHeartbeatTime: w.LastHeartbeatTime.Format(timeLayout), InternetConnectivity: w.InternetConnectivity,
		RunningJobID: w.RunningJobID, RunningJobAssignTime: formatTimePtr(v.RunningJobAssignTime),
		PerformanceWeight: w.PerformanceWeight, IsLive: v.IsLive,
	}
}

func (s *Server) handleWorkerList(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := httpx.Pagination(r)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	views, total, err := s.query.ListWorkers(r.Context(), page, perPage, s.clock, s.livenessTimeout)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	items := make([]workerView, len(views))
	for i, v := range views {
		items[i] = renderWorkerView(v)
	}
	httpx.WriteJSON(w, listResponse[workerView]{TotalItems: total, Items: items})
}

func (s *Server) handleWorkerInfo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("worker_id"))
	if err != nil {
		httpx.WriteError(w, s.logger, apierr.New(apierr.Validation, "invalid worker_id"))
		return
	}
	v, err := s.query.WorkerInfo(r.Context(), domain.WorkerID(id), s.clock, s.livenessTimeout)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	httpx.WriteJSON(w, renderWorkerView(v))
}

type workerCredentials struct {
	Hostname             string               `json:"hostname"`
	Arch                 string                `json:"arch"`
	WorkerSecret         string               `json:"worker_secret"`
	GitCommit            string                `json:"git_commit"`
	LogicalCores         int32                 `json:"logical_cores"`
	MemoryBytes          int64                 `json:"memory_bytes"`
	DiskFreeSpaceBytes   int64                 `json:"disk_free_space_bytes"`
	InternetConnectivity bool                  `json:"internet_connectivity"`
	PerformanceWeight    float64               `json:"performance_weight"`
}

func (c workerCredentials) toPollRequest() services.PollRequest {
	return services.PollRequest{
		Hostname:     c.Hostname,
		Arch:         c.Arch,
		WorkerSecret: c.WorkerSecret,
		GitCommit:    c.GitCommit,
		Capabilities: domain.Capabilities{
			LogicalCores:       c.LogicalCores,
			MemoryBytes:        c.MemoryBytes,
			DiskFreeSpaceBytes: c.DiskFreeSpaceBytes,
		},
		InternetConnectivity: c.InternetConnectivity,
		PerformanceWeight:    c.PerformanceWeight,
	}
}

func (s *Server) handleWorkerHeartbeat(w http.ResponseWriter, r *http.Request) {
	var body workerCredentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, s.logger, apierr.Wrap(apierr.Validation, "malformed request body", err))
		return
	}
	if err := s.dispatcher.Heartbeat(r.Context(), body.toPollRequest(), s.workerSecret); err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	httpx.WriteJSONStatus(w, http.StatusNoContent, nil)
}

func (s *Server) handleWorkerPoll(w http.ResponseWriter, r *http.Request) {
	var body workerCredentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, s.logger, apierr.Wrap(apierr.Validation, "malformed request body", err))
		return
	}
	result, err := s.dispatcher.Poll(r.Context(), body.toPollRequest(), s.workerSecret)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	if result.Job == nil {
		httpx.WriteJSON(w, struct {
			Job *jobView `json:"job"`
		}{Job: nil})
		return
	}
	jv := renderJobView(*result.Job, "", "")
	httpx.WriteJSON(w, struct {
		Job *jobView `json:"job"`
	}{Job: &jv})
}

type completeJobBody struct {
	JobID         domain.JobID `json:"job_id"`
	Hostname      string       `json:"hostname"`
	Arch          string       `json:"arch"`
	WorkerSecret  string       `json:"worker_secret"`
	BuildSuccess  bool         `json:"build_success"`
	UploadSuccess bool         `json:"upload_success"`
	SuccessfulPackages []string `json:"successful_packages"`
	FailedPackage string       `json:"failed_package"`
	SkippedPackages []string   `json:"skipped_packages"`
	LogURL        string       `json:"log_url"`
	ErrorMessage  string       `json:"error_message"`
}

func (s *Server) handleWorkerComplete(w http.ResponseWriter, r *http.Request) {
	var body completeJobBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, s.logger, apierr.Wrap(apierr.Validation, "malformed request body", err))
		return
	}

	job, err := s.completion.Complete(r.Context(), services.CompleteRequest{
		JobID:        body.JobID,
		Hostname:     body.Hostname,
		Arch:         body.Arch,
		WorkerSecret: body.WorkerSecret,
		Result: domain.Completion{
			BuildSuccess:       body.BuildSuccess,
			UploadSuccess:      body.UploadSuccess,
			SuccessfulPackages: body.SuccessfulPackages,
			FailedPackage:      body.FailedPackage,
			SkippedPackages:    body.SkippedPackages,
			LogURL:             body.LogURL,
			ErrorMessage:       body.ErrorMessage,
		},
	}, s.workerSecret)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	httpx.WriteJSON(w, renderJobView(job, "", ""))
}
