package memory

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
)

const consolidationAgeThreshold = 7 * 24 * time.Hour

// Consolidate deletes expired entries and promotes low-importance,
// sufficiently old episodic memories to semantic, boosting their
// importance. decayFactor is never mutated outside this call.
func (s *Store) Consolidate(ctx context.Context, agentID string) (ConsolidationResult, error) {
	all, err := s.backend.List(ctx, agentID, "")
	if err != nil {
		return ConsolidationResult{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "consolidate: list", err)
	}

	var result ConsolidationResult
	now := time.Now()
	for _, e := range all {
		if isExpired(e, now) {
			if err := s.backend.Delete(ctx, e.ID); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			if s.vector != nil {
				_ = s.vector.Delete(ctx, e.AgentID, e.ID)
			}
			result.Deleted++
			continue
		}
		if e.Importance < 0.3 && now.Sub(e.Timestamp) > consolidationAgeThreshold && e.Type == Episodic {
			e.Type = Semantic
			e.Importance = minFloat(e.Importance*1.2, 1.0)
			if err := s.backend.Update(ctx, e); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.Archived++
			result.Consolidated++
		}
	}
	if s.cache != nil {
		s.cache.InvalidateAgent(agentID)
	}
	return result, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Scheduler runs Consolidate on an interval, never overlapping two runs,
// by re-arming a timer after each run completes rather than using a
// free-running ticker.
type Scheduler struct {
	store    *Store
	agentIDs func() []string
	interval time.Duration
	stop     chan struct{}
}

func NewScheduler(store *Store, interval time.Duration, agentIDs func() []string) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{store: store, agentIDs: agentIDs, interval: interval, stop: make(chan struct{})}
}

func (sc *Scheduler) Start(ctx context.Context) {
	go sc.loop(ctx)
}

func (sc *Scheduler) Stop() { close(sc.stop) }

func (sc *Scheduler) loop(ctx context.Context) {
	timer := time.NewTimer(sc.interval)
	defer timer.Stop()
	for {
		select {
		case <-sc.stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			sc.runOnce(ctx)
			timer.Reset(sc.interval)
		}
	}
}

func (sc *Scheduler) runOnce(ctx context.Context) {
	for _, id := range sc.agentIDs() {
		if _, err := sc.store.Consolidate(ctx, id); err != nil {
			log.Error().Err(err).Str("agent_id", id).Msg("memory: consolidation run failed")
		}
	}
}
