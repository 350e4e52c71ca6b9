package storageengine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// PebbleEngine is the concrete embedded-LSM storage engine backing local
// reads, adapted from the teacher's sstable reader/writer pair: one
// on-disk keyspace per node, partition folded into the key prefix since
// Pebble has no native partition concept.
type PebbleEngine struct {
	db     *pebble.DB
	logger *zap.Logger
}

func Open(dataDir string, logger *zap.Logger) (*PebbleEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := pebble.Open(dataDir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store at %q: %w", dataDir, err)
	}
	return &PebbleEngine{db: db, logger: logger}, nil
}

// partitionKey folds the partition id into the key prefix so a single
// Pebble instance can serve every partition a node hosts.
func partitionKey(partition int32, keyBytes []byte) []byte {
	out := make([]byte, 4+len(keyBytes))
	binary.BigEndian.PutUint32(out, uint32(partition))
	copy(out[4:], keyBytes)
	return out
}

func (e *PebbleEngine) Get(_ context.Context, partition int32, keyBytes []byte) ([]byte, error) {
	value, closer, err := e.db.Get(partitionKey(partition, keyBytes))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("pebble get failed: %w", err)
	}
	defer closer.Close()
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put is exposed for tests and for the write path's chunk/manifest
// persistence; the read dispatcher never calls it.
func (e *PebbleEngine) Put(partition int32, keyBytes, value []byte) error {
	if err := e.db.Set(partitionKey(partition, keyBytes), value, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set failed: %w", err)
	}
	return nil
}

func (e *PebbleEngine) Close() error {
	return e.db.Close()
}
