package httphandler

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
	CPUPercent float64 `json:"cpu_percent"`
}

// ProcessSampler reports resource usage of the running process.
type ProcessSampler func(ctx context.Context) (ProcessStats, error)

// SelfSampler samples this process through gopsutil.
func SelfSampler() (ProcessSampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("inspect self: %w", err)
	}

	return func(ctx context.Context) (ProcessStats, error) {
		mem, err := p.MemoryInfoWithContext(ctx)
		if err != nil {
			return ProcessStats{}, fmt.Errorf("memory info: %w", err)
		}
		threads, err := p.NumThreadsWithContext(ctx)
		if err != nil {
			return ProcessStats{}, fmt.Errorf("thread count: %w", err)
		}
		cpu, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			return ProcessStats{}, fmt.Errorf("cpu percent: %w", err)
		}

		return ProcessStats{
			PID:        p.Pid,
			RSSBytes:   mem.RSS,
			Threads:    threads,
			Goroutines: runtime.NumGoroutine(),
			CPUPercent: cpu,
		}, nil
	}, nil
}
