package domain

import "time"

// WorkerID identifies a worker row. Monotonic, assigned on first
// registration; the row itself is retained forever, even once the
// worker stops heartbeating.
type WorkerID int64

// Capabilities are the hardware facts a worker self-reports at every
// heartbeat and dispatcher poll, so hardware upgrades take effect
// without re-registration.
type Capabilities struct {
	LogicalCores        int32
	MemoryBytes          int64
	DiskFreeSpaceBytes   int64
}

// MemoryPerCore is used by the Capability Matcher for the
// min_memory_per_core_bytes requirement.
func (c Capabilities) MemoryPerCore() int64 {
	if c.LogicalCores <= 0 {
		return 0
	}
	return c.MemoryBytes / int64(c.LogicalCores)
}

// Worker is a long-lived registration for a build machine pinned to a
// single architecture. Identity key is (Hostname, Arch): re-registering
// with the same pair updates the existing row.
type Worker struct {
	ID                   WorkerID
	Hostname             string
	Arch                 string
	Capabilities         Capabilities
	GitCommit            string
	LastHeartbeatTime    time.Time
	InternetConnectivity bool
	RunningJobID         *JobID
	WorkerSecret         string
	PerformanceWeight    float64
}

// IsLive reports whether now - LastHeartbeatTime is under timeout.
// Liveness is always computed on read, never stored.
func (w Worker) IsLive(now time.Time, timeout time.Duration) bool {
	return now.Sub(w.LastHeartbeatTime) < timeout
}

// HeartbeatPayload is what a worker reports on every dispatcher poll,
// completion call, or explicit heartbeat call.
type HeartbeatPayload struct {
	Hostname             string
	Arch                 string
	WorkerSecret         string
	GitCommit            string
	Capabilities         Capabilities
	InternetConnectivity bool
	PerformanceWeight    float64
}
