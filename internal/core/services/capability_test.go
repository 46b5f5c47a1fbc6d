package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
)

func ptr32(v int32) *int32 { return &v }
func ptr64(v int64) *int64 { return &v }

func TestMatchesCapabilities(t *testing.T) {
	caps := domain.Capabilities{LogicalCores: 8, MemoryBytes: 16 << 30, DiskFreeSpaceBytes: 100 << 30}

	cases := []struct {
		name string
		req  domain.Requirements
		want bool
	}{
		{"no requirements", domain.Requirements{}, true},
		{"cores exactly met", domain.Requirements{MinCores: ptr32(8)}, true},
		{"cores one over", domain.Requirements{MinCores: ptr32(9)}, false},
		{"memory exactly met", domain.Requirements{MinTotalMemoryBytes: ptr64(16 << 30)}, true},
		{"memory insufficient", domain.Requirements{MinTotalMemoryBytes: ptr64(17 << 30)}, false},
		{"memory per core met", domain.Requirements{MinMemoryPerCoreBytes: ptr64(2 << 30)}, true},
		{"memory per core insufficient", domain.Requirements{MinMemoryPerCoreBytes: ptr64(3 << 30)}, false},
		{"disk met", domain.Requirements{MinFreeDiskBytes: ptr64(100 << 30)}, true},
		{"disk insufficient", domain.Requirements{MinFreeDiskBytes: ptr64(101 << 30)}, false},
		{
			"every requirement must pass",
			domain.Requirements{MinCores: ptr32(4), MinTotalMemoryBytes: ptr64(1 << 30), MinFreeDiskBytes: ptr64(200 << 30)},
			false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, MatchesCapabilities(c.req, caps))
		})
	}
}

func TestMatchesArch(t *testing.T) {
	cases := []struct {
		jobArch, workerArch string
		want                bool
	}{
		{"amd64", "amd64", true},
		{"arm64", "arm64", true},
		{"noarch", "amd64", true},
		{"noarch", "arm64", false},
		{"amd64", "arm64", false},
		{"loongarch64", "amd64", false},
	}

	for _, c := range cases {
		got := MatchesArch(c.jobArch, c.workerArch)
		assert.Equalf(t, c.want, got, "MatchesArch(%q, %q)", c.jobArch, c.workerArch)
	}
}
