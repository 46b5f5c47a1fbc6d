package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/AOSC-Dev/buildit/internal/apierr"
	"github.com/AOSC-Dev/buildit/internal/core/domain"
	"github.com/AOSC-Dev/buildit/internal/core/ports"
	"github.com/AOSC-Dev/buildit/internal/core/services"
	"github.com/AOSC-Dev/buildit/internal/httpx"
)

type jobSummaryView struct {
	JobID  domain.JobID     `json:"job_id"`
	Arch   string           `json:"arch"`
	Status domain.JobStatus `json:"status"`
}

type pipelineView struct {
	ID               domain.PipelineID     `json:"id"`
	CreationTime     string                `json:"creation_time"`
	GitBranch        string                `json:"git_branch"`
	GitSHA           string                `json:"git_sha"`
	GithubPR         *int64                `json:"github_pr"`
	Packages         []string              `json:"packages"`
	Archs            []string              `json:"archs"`
	CreatorLogin     *string               `json:"creator_login"`
	CreatorAvatarURL *string               `json:"creator_avatar_url"`
	Status           domain.PipelineStatus `json:"status"`
	Jobs             []jobSummaryView      `json:"jobs"`
}

func renderPipelineView(v services.PipelineView) pipelineView {
	jobs := make([]jobSummaryView, len(v.Jobs))
	for i, j := range v.Jobs {
		jobs[i] = jobSummaryView{JobID: j.JobID, Arch: j.Arch, Status: j.Status}
	}
	p := v.Pipeline
	return pipelineView{
		ID: p.ID, CreationTime: p.CreationTime.Format(timeLayout), GitBranch: p.GitBranch, GitSHA: p.GitSHA,
		GithubPR: p.GithubPR, Packages: p.Packages, Archs: p.Archs,
		CreatorLogin: p.CreatorLogin, CreatorAvatarURL: p.CreatorAvatarURL,
		Status: v.Status, Jobs: jobs,
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func (s *Server) handlePipelineList(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := httpx.Pagination(r)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	f := ports.PipelineListFilter{
		Page:         page,
		ItemsPerPage: perPage,
		StableOnly:   r.URL.Query().Get("stable_only") == "true",
		GithubPROnly: r.URL.Query().Get("github_pr_only") == "true",
	}
	views, total, err := s.query.ListPipelines(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	items := make([]pipelineView, len(views))
	for i, v := range views {
		items[i] = renderPipelineView(v)
	}
	httpx.WriteJSON(w, listResponse[pipelineView]{TotalItems: total, Items: items})
}

func (s *Server) handlePipelineInfo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("pipeline_id"))
	if err != nil {
		httpx.WriteError(w, s.logger, apierr.New(apierr.Validation, "invalid pipeline_id"))
		return
	}
	v, err := s.query.PipelineInfo(r.Context(), domain.PipelineID(id))
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	httpx.WriteJSON(w, renderPipelineView(v))
}

type createPipelineBody struct {
	Packages         []string `json:"packages"`
	Branch           string   `json:"git_branch"`
	GithubPR         *int64   `json:"github_pr"`
	Archs            []string `json:"archs"`
	Source           string   `json:"source"`
	CreatorLogin     *string  `json:"creator_login"`
	CreatorAvatarURL *string  `json:"creator_avatar_url"`
	TelegramUser     *int64   `json:"telegram_user"`
	MinCores         *int32   `json:"min_cores"`
	MinTotalMemory   *int64   `json:"min_total_memory_bytes"`
	MinMemPerCore    *int64   `json:"min_memory_per_core_bytes"`
	MinFreeDisk      *int64   `json:"min_free_disk_bytes"`
}

func (s *Server) handlePipelineNew(w http.ResponseWriter, r *http.Request) {
	var body createPipelineBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, s.logger, apierr.Wrap(apierr.Validation, "malformed request body", err))
		return
	}

	id, err := s.orchestrator.CreatePipeline(r.Context(), services.CreatePipelineRequest{
		Packages:         body.Packages,
		Branch:           body.Branch,
		GithubPR:         body.GithubPR,
		RequestedArchs:   body.Archs,
		Source:           body.Source,
		CreatorLogin:     body.CreatorLogin,
		CreatorAvatarURL: body.CreatorAvatarURL,
		TelegramUser:     body.TelegramUser,
		Requirements: domain.Requirements{
			MinCores:              body.MinCores,
			MinTotalMemoryBytes:   body.MinTotalMemory,
			MinMemoryPerCoreBytes: body.MinMemPerCore,
			MinFreeDiskBytes:      body.MinFreeDisk,
		},
	})
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	httpx.WriteJSONStatus(w, http.StatusCreated, struct {
		PipelineID domain.PipelineID `json:"pipeline_id"`
	}{PipelineID: id})
}

type listResponse[T any] struct {
	TotalItems int64 `json:"total_items"`
	Items      []T   `json:"items"`
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
