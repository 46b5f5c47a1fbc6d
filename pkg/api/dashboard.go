package api

import (
	"net/http"

	"github.com/AOSC-Dev/buildit/internal/core/ports"
	"github.com/AOSC-Dev/buildit/internal/httpx"
)

type archCountsView struct {
	TotalJobCount     int64 `json:"total_job_count"`
	PendingJobCount   int64 `json:"pending_job_count"`
	RunningJobCount   int64 `json:"running_job_count"`
	FinishedJobCount  int64 `json:"finished_job_count"`
	TotalWorkerCount  int64 `json:"total_worker_count"`
	LiveWorkerCount   int64 `json:"live_worker_count"`
	TotalLogicalCores int64 `json:"total_logical_cores"`
	TotalMemoryBytes  int64 `json:"total_memory_bytes"`
}

type dashboardView struct {
	TotalPipelineCount int64                     `json:"total_pipeline_count"`
	TotalJobCount      int64                     `json:"total_job_count"`
	PendingJobCount    int64                     `json:"pending_job_count"`
	RunningJobCount    int64                     `json:"running_job_count"`
	FinishedJobCount   int64                     `json:"finished_job_count"`
	TotalWorkerCount   int64                     `json:"total_worker_count"`
	LiveWorkerCount    int64                     `json:"live_worker_count"`
	TotalLogicalCores  int64                     `json:"total_logical_cores"`
	TotalMemoryBytes   int64                     `json:"total_memory_bytes"`
	ByArch             map[string]archCountsView `json:"by_arch"`
}

func renderDashboard(c ports.DashboardCounts) dashboardView {
	byArch := make(map[string]archCountsView, len(c.ByArch))
	for arch, ac := range c.ByArch {
		byArch[arch] = archCountsView{
			TotalJobCount: ac.TotalJobCount, PendingJobCount: ac.PendingJobCount,
			RunningJobCount: ac.RunningJobCount, FinishedJobCount: ac.FinishedJobCount,
			TotalWorkerCount: ac.TotalWorkerCount, LiveWorkerCount: ac.LiveWorkerCount,
			TotalLogicalCores: ac.TotalLogicalCores, TotalMemoryBytes: ac.TotalMemoryBytes,
		}
	}
	return dashboardView{
		TotalPipelineCount: c.TotalPipelineCount, TotalJobCount: c.TotalJobCount,
		PendingJobCount: c.PendingJobCount, RunningJobCount: c.RunningJobCount,
		FinishedJobCount: c.FinishedJobCount, TotalWorkerCount: c.TotalWorkerCount,
		LiveWorkerCount: c.LiveWorkerCount, TotalLogicalCores: c.TotalLogicalCores,
		TotalMemoryBytes: c.TotalMemoryBytes, ByArch: byArch,
	}
}

func (s *Server) handleDashboardStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.query.DashboardStatus(r.Context())
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	httpx.WriteJSON(w, renderDashboard(counts))
}
