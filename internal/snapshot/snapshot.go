package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"pc-rca/internal/models"
)

// Handle is a long-lived reference to one process. CPUPercent reports usage
// since the previous CPUPercent call on the same handle.
type Handle interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	CPUPercent(ctx context.Context) (float64, error)
	RSS(ctx context.Context) (uint64, error)
}

// Provider enumerates the processes of the host.
type Provider interface {
	PIDs(ctx context.Context) ([]int32, error)
	Open(ctx context.Context, pid int32) (Handle, error)
}

type Option func(*Snapshotter)

// WithFailureHook registers fn to be called for every per-process failure,
// vanished or not.
func WithFailureHook(fn func(Failure)) Option {
	return func(s *Snapshotter) {
		s.onFailure = fn
	}
}

// Snapshotter ranks processes by CPU usage. It caches one handle per pid so
// the per-process accounting window survives between calls.
type Snapshotter struct {
	provider  Provider
	handles   map[int32]Handle
	onFailure func(Failure)
	mu        sync.Mutex
}

func New(provider Provider, opts ...Option) *Snapshotter {
	s := &Snapshotter{
		provider: provider,
		handles:  make(map[int32]Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Touch resets the accounting window of every running process.
func (s *Snapshotter) Touch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles, err := s.refresh(ctx)
	if err != nil {
		return err
	}
	for _, h := range handles {
		if _, err := h.CPUPercent(ctx); err != nil {
			s.fail(h.PID(), "cpu_percent", err)
		}
	}
	return nil
}

// Snapshot returns at most topN processes ordered by descending CPU usage.
// Equal usages keep enumeration order. Processes that cannot be read are left
// out.
func (s *Snapshotter) Snapshot(ctx context.Context, topN int) ([]models.ProcessObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles, err := s.refresh(ctx)
	if err != nil {
		return nil, err
	}

	observations := make([]models.ProcessObservation, 0, len(handles))
	for _, h := range handles {
		obs, failure := read(ctx, h)
		if failure != nil {
			s.report(*failure)
			continue
		}
		observations = append(observations, obs)
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].CPUPct > observations[j].CPUPct
	})

	if topN >= 0 && len(observations) > topN {
		observations = observations[:topN]
	}
	return observations, nil
}

func (s *Snapshotter) refresh(ctx context.Context) ([]Handle, error) {
	pids, err := s.provider.PIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate processes: %w", err)
	}

	seen := make(map[int32]struct{}, len(pids))
	handles := make([]Handle, 0, len(pids))
	for _, pid := range pids {
		seen[pid] = struct{}{}

		h, ok := s.handles[pid]
		if !ok {
			h, err = s.provider.Open(ctx, pid)
			if err != nil {
				s.report(classify(pid, "open", err))
				continue
			}
			s.handles[pid] = h
		}
		handles = append(handles, h)
	}

	for pid := range s.handles {
		if _, ok := seen[pid]; !ok {
			delete(s.handles, pid)
		}
	}
	return handles, nil
}

func (s *Snapshotter) fail(pid int32, op string, err error) {
	s.report(classify(pid, op, err))
}

func (s *Snapshotter) report(f Failure) {
	if f.Vanished {
		delete(s.handles, f.PID)
		log.WithFields(log.Fields{"pid": f.PID, "op": f.Op}).Trace("process vanished")
	} else {
		log.WithFields(log.Fields{"pid": f.PID, "op": f.Op}).Debugf("failed to read process: %v", f.Err)
	}
	if s.onFailure != nil {
		s.onFailure(f)
	}
}

func read(ctx context.Context, h Handle) (models.ProcessObservation, *Failure) {
	pid := h.PID()

	name, err := h.Name(ctx)
	if err != nil {
		f := classify(pid, "name", err)
		return models.ProcessObservation{}, &f
	}
	cpu, err := h.CPUPercent(ctx)
	if err != nil {
		f := classify(pid, "cpu_percent", err)
		return models.ProcessObservation{}, &f
	}
	rss, err := h.RSS(ctx)
	if err != nil {
		f := classify(pid, "memory_info", err)
		return models.ProcessObservation{}, &f
	}

	return models.ProcessObservation{
		PID:    pid,
		Name:   name,
		CPUPct: cpu,
		MemMB:  float64(rss) / (1024 * 1024),
	}, nil
}
