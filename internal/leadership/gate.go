// Package leadership implements the leadership gate, spec.md §4.F: each
// tick it asks an external leader-election collaborator whether this
// process is leader, and suspends/resumes admin log consumption on
// transition.
package leadership

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Elector is the external leader-election collaborator (spec.md §6: "the
// leader-election namespace (opaque to the core)"). A concrete
// memberlist-backed default lives in memberlist_elector.go.
type Elector interface {
	IsLeader(ctx context.Context, cluster string) (bool, error)
}

// VolatileResetter is called on a leadership transition to non-leader.
// The orchestrator's implementation clears the pending queues, the
// undelivered buffer, failingOffset, offsetToSkip, offsetToSkipDIV and
// lastDelegatedExecutionId. It does not clear the tracker's in-memory
// lastSucceededExecutionId, per-store execution ids or lastPersistedOffset,
// and does not reload them from the durable store.
type VolatileResetter interface {
	ResetVolatile()
}

// TopicOwner lets the gate ensure the admin log topic exists and has
// unbounded retention when it takes over leadership (spec.md §4.F).
type TopicOwner interface {
	ContainsTopic(ctx context.Context) (bool, error)
	CreateTopic(ctx context.Context, replicationFactor int32) error
	EnsureInfiniteRetention(ctx context.Context) error
	Subscribe(ctx context.Context, offset int64) error
	Unsubscribe(ctx context.Context) error
}

// rateLimitedLogger logs at most once per the given interval, used for the
// "wait, logging sparsely — at most once per minute" requirement.
type rateLimitedLogger struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func (r *rateLimitedLogger) allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.last) < r.interval {
		return false
	}
	r.last = now
	return true
}

// Gate drives the outer leadership loop.
type Gate struct {
	elector       Elector
	cluster       string
	topicOwner    TopicOwner
	resetters     []VolatileResetter
	logger        *zap.Logger
	isTopLevel    bool
	replicationFactor int32
	waitLog       rateLimitedLogger

	wasLeader bool
}

func New(elector Elector, cluster string, topicOwner TopicOwner, isTopLevel bool, replicationFactor int32, logger *zap.Logger, resetters ...VolatileResetter) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		elector:           elector,
		cluster:           cluster,
		topicOwner:        topicOwner,
		resetters:         resetters,
		logger:            logger,
		isTopLevel:        isTopLevel,
		replicationFactor: replicationFactor,
		waitLog:           rateLimitedLogger{interval: time.Minute},
	}
}

// Tick performs one leadership check. It returns true if the caller is
// leader and subscribed and should proceed to poll/dispatch/execute this
// iteration.
func (g *Gate) Tick(ctx context.Context, lastPersistedOffset int64) (bool, error) {
	isLeader, err := g.elector.IsLeader(ctx, g.cluster)
	if err != nil {
		return false, err
	}

	if !isLeader {
		if g.wasLeader {
			g.logger.Info("lost leadership, unsubscribing and clearing volatile state", zap.String("cluster", g.cluster))
			if err := g.topicOwner.Unsubscribe(ctx); err != nil {
				g.logger.Warn("unsubscribe on leadership loss failed", zap.Error(err))
			}
			for _, r := range g.resetters {
				r.ResetVolatile()
			}
		}
		g.wasLeader = false
		return false, nil
	}

	if !g.wasLeader {
		subscribed, err := g.onBecameLeader(ctx, lastPersistedOffset)
		if err != nil {
			return false, err
		}
		if !subscribed {
			return false, nil
		}
		g.wasLeader = true
	}
	return true, nil
}

// onBecameLeader reports whether it subscribed; it returns false without
// an error while a non-top-level controller waits for the topic, so the
// next Tick tries again.
func (g *Gate) onBecameLeader(ctx context.Context, lastPersistedOffset int64) (bool, error) {
	exists, err := g.topicOwner.ContainsTopic(ctx)
	if err != nil {
		return false, err
	}
	if !exists {
		if g.isTopLevel {
			g.logger.Info("creating admin log topic", zap.String("cluster", g.cluster))
			if err := g.topicOwner.CreateTopic(ctx, g.replicationFactor); err != nil {
				return false, err
			}
		} else {
			if g.waitLog.allow(time.Now()) {
				g.logger.Info("waiting for top-level controller to create admin log topic", zap.String("cluster", g.cluster))
			}
			return false, nil
		}
	}
	if err := g.topicOwner.EnsureInfiniteRetention(ctx); err != nil {
		return false, err
	}
	g.logger.Info("became leader, subscribing to admin log", zap.String("cluster", g.cluster), zap.Int64("offset", lastPersistedOffset))
	if err := g.topicOwner.Subscribe(ctx, lastPersistedOffset); err != nil {
		return false, err
	}
	return true, nil
}

// IsLeader reports whether the last Tick found this process leader and
// subscribed, without performing a new check.
func (g *Gate) IsLeader() bool { return g.wasLeader }
