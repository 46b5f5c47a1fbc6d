package services

import "github.com/AOSC-Dev/buildit/internal/core/domain"

// MatchesCapabilities is the pure capability matcher: a nil requirement
// always matches; a non-nil requirement matches iff the corresponding
// capability is present and at least as large. Order of checks is
// immaterial — every non-nil requirement must pass.
func MatchesCapabilities(req domain.Requirements, caps domain.Capabilities) bool {
	if req.MinCores != nil && caps.LogicalCores < *req.MinCores {
		return false
	}
	if req.MinTotalMemoryBytes != nil && caps.MemoryBytes < *req.MinTotalMemoryBytes {
		return false
	}
	if req.MinMemoryPerCoreBytes != nil && caps.MemoryPerCore() < *req.MinMemoryPerCoreBytes {
		return false
	}
	if req.MinFreeDiskBytes != nil && caps.DiskFreeSpaceBytes < *req.MinFreeDiskBytes {
		return false
	}
	return true
}

// MatchesArch compares a job's required architecture against a
// worker's advertised architecture. A job with arch "noarch" may be
// claimed by any "amd64" worker — the one special case; every other
// architecture requires an exact match.
func MatchesArch(jobArch, workerArch string) bool {
	if jobArch == workerArch {
		return true
	}
	if jobArch == "noarch" && workerArch == "amd64" {
		return true
	}
	return false
}
