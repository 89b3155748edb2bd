package sysstat

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Provider reads host-wide utilization. CPUPercent is relative to the
// previous CPUPercent call; MemoryPercent is instantaneous.
type Provider interface {
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
}

// For testing purpose
var (
	cpuPercent    = cpu.PercentWithContext
	virtualMemory = mem.VirtualMemoryWithContext
)

// GopsutilProvider reads utilization from the host through gopsutil.
type GopsutilProvider struct{}

func NewGopsutilProvider() *GopsutilProvider {
	return &GopsutilProvider{}
}

func (GopsutilProvider) CPUPercent(ctx context.Context) (float64, error) {
	// a zero interval compares against the previous call
	pct, err := cpuPercent(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("could not retrieve cpu percent: %w", err)
	}
	if len(pct) < 1 {
		return 0, fmt.Errorf("no cpu percent retrieved (empty results)")
	}
	return pct[0], nil
}

func (GopsutilProvider) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := virtualMemory(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not retrieve virtual memory: %w", err)
	}
	return vm.UsedPercent, nil
}
