package leadership

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"
)

// MemberlistElector is a concrete default implementation of Elector
// backed by gossip-based cluster membership, grounded on the teacher's
// GossipService. Leadership is decided by a deterministic rule over the
// alive member set (lowest node name wins), the same bully-style approach
// real memberlist-based systems layer leader election on top of — cheap
// to reason about and requires no separate consensus round.
type MemberlistElector struct {
	nodeID string
	ml     *memberlist.Memberlist
	logger *zap.Logger
}

// MemberlistConfig configures the underlying gossip membership list.
type MemberlistConfig struct {
	NodeName  string
	BindAddr  string
	BindPort  int
	SeedNodes []string
}

func NewMemberlistElector(cfg MemberlistConfig, logger *zap.Logger) (*MemberlistElector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = cfg.NodeName
	if cfg.BindAddr != "" {
		mlConfig.BindAddr = cfg.BindAddr
	}
	mlConfig.BindPort = cfg.BindPort

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	if len(cfg.SeedNodes) > 0 {
		if _, err := ml.Join(cfg.SeedNodes); err != nil {
			logger.Warn("failed to join some seed nodes", zap.Error(err))
		}
	}
	return &MemberlistElector{nodeID: cfg.NodeName, ml: ml, logger: logger}, nil
}

// IsLeader reports whether this node is currently the lexicographically
// smallest alive member name. The cluster parameter is accepted for
// interface compatibility with a real per-cluster election namespace;
// this implementation runs one membership list per process.
func (e *MemberlistElector) IsLeader(_ context.Context, _ string) (bool, error) {
	members := e.ml.Members()
	if len(members) == 0 {
		return true, nil
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names[0] == e.nodeID, nil
}

func (e *MemberlistElector) Shutdown() error {
	return e.ml.Shutdown()
}
