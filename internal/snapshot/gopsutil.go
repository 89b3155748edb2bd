package snapshot

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// GopsutilProvider enumerates host processes through gopsutil.
type GopsutilProvider struct{}

func NewGopsutilProvider() *GopsutilProvider {
	return &GopsutilProvider{}
}

func (GopsutilProvider) PIDs(ctx context.Context) ([]int32, error) {
	return process.PidsWithContext(ctx)
}

func (GopsutilProvider) Open(ctx context.Context, pid int32) (Handle, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}
	return &gopsutilHandle{proc: proc}, nil
}

type gopsutilHandle struct {
	proc *process.Process
	name string
}

func (h *gopsutilHandle) PID() int32 {
	return h.proc.Pid
}

func (h *gopsutilHandle) Name(ctx context.Context) (string, error) {
	if h.name != "" {
		return h.name, nil
	}
	name, err := h.proc.NameWithContext(ctx)
	if err != nil {
		return "", err
	}
	h.name = name
	return name, nil
}

func (h *gopsutilHandle) CPUPercent(ctx context.Context) (float64, error) {
	// a zero interval measures against the previous call on this handle
	return h.proc.PercentWithContext(ctx, 0)
}

func (h *gopsutilHandle) RSS(ctx context.Context) (uint64, error) {
	mem, err := h.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}
