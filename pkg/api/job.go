package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AOSC-Dev/buildit/internal/apierr"
	"github.com/AOSC-Dev/buildit/internal/core/domain"
	"github.com/AOSC-Dev/buildit/internal/httpx"
)

type jobView struct {
	ID               domain.JobID     `json:"id"`
	PipelineID       domain.PipelineID `json:"pipeline_id"`
	Packages         []string         `json:"packages"`
	Arch             string           `json:"arch"`
	CreationTime     string           `json:"creation_time"`
	Status           domain.JobStatus `json:"status"`
	AssignedWorkerID *domain.WorkerID `json:"assigned_worker_id"`
	AssignedHostname string           `json:"assigned_hostname,omitempty"`
	AssignTime       *string          `json:"assign_time"`
	FinishTime       *string          `json:"finish_time"`
	BuildSuccess     *bool            `json:"build_success"`
	UploadSuccess    *bool            `json:"upload_success"`
	SuccessfulPackages []string       `json:"successful_packages"`
	FailedPackage    string           `json:"failed_package"`
	SkippedPackages  []string        `json:"skipped_packages"`
	LogURL           string           `json:"log_url"`
	ErrorMessage     string           `json:"error_message"`
	BuiltByWorkerID  *domain.WorkerID `json:"built_by_worker_id"`
	BuiltByHostname  string           `json:"built_by_hostname,omitempty"`
	ElapsedSeconds   *int64           `json:"elapsed_seconds"`
}

func renderJobView(j domain.Job, assignedHostname, builtByHostname string) jobView {
	return jobView{
		ID: j.ID, PipelineID: j.PipelineID, Packages: j.Packages, Arch: j.Arch,
		CreationTime: j.CreationTime.Format(timeLayout), Status: j.Status,
		AssignedWorkerID: j.AssignedWorkerID, AssignedHostname: assignedHostname,
		AssignTime: formatTimePtr(j.AssignTime), FinishTime: formatTimePtr(j.FinishTime),
		BuildSuccess: j.BuildSuccess, UploadSuccess: j.UploadSuccess,
		SuccessfulPackages: j.SuccessfulPackages, FailedPackage: j.FailedPackage,
		SkippedPackages: j.SkippedPackages, LogURL: j.LogURL, ErrorMessage: j.ErrorMessage,
		BuiltByWorkerID: j.BuiltByWorkerID, BuiltByHostname: builtByHostname,
		ElapsedSeconds: j.ElapsedSeconds(),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := httpx.Pagination(r)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	jobs, total, err := s.query.ListJobs(r.Context(), page, perPage)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	items := make([]jobView, len(jobs))
	for i, j := range jobs {
		items[i] = renderJobView(j, "", "")
	}
	httpx.WriteJSON(w, listResponse[jobView]{TotalItems: total, Items: items})
}

func (s *Server) handleJobInfo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("job_id"))
	if err != nil {
		httpx.WriteError(w, s.logger, apierr.New(apierr.Validation, "invalid job_id"))
		return
	}
	info, err := s.query.JobInfo(r.Context(), domain.JobID(id))
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	httpx.WriteJSON(w, renderJobView(info.Job, info.AssignedHostname, info.BuiltByHostname))
}

type restartJobBody struct {
	JobID domain.JobID `json:"job_id"`
}

func (s *Server) handleJobRestart(w http.ResponseWriter, r *http.Request) {
	var body restartJobBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, s.logger, apierr.Wrap(apierr.Validation, "malformed request body", err))
		return
	}
	newID, err := s.orchestrator.RestartJob(r.Context(), body.JobID)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	httpx.WriteJSONStatus(w, http.StatusCreated, struct {
		JobID domain.JobID `json:"job_id"`
	}{JobID: newID})
}
