package adminlog

import (
	"context"
	"time"

	"github.com/jamestiotio/corestore/internal/adminmodel"
)

// Transport is the admin log's external collaborator contract (spec.md
// §6): an append-only, partitioned log with offset-seek and infinite
// retention. The log itself is out of scope for this core; only this
// interface and a small in-memory test double live here.
type Transport interface {
	Subscribe(ctx context.Context, topic string, partition int32, offset int64) error
	Unsubscribe(ctx context.Context) error
	Poll(ctx context.Context, timeout time.Duration) ([]adminmodel.LogRecord, error)

	ContainsTopic(ctx context.Context, topic string) (bool, error)
	CreateTopic(ctx context.Context, topic string, partitions int32, replicationFactor int32) error
	UpdateRetentionToInfinite(ctx context.Context, topic string) error
}
