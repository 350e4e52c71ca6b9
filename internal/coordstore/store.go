// Package coordstore implements the coordination store external
// collaborator (spec.md §6): a hierarchical key-value store with atomic
// single-key put, holding the three admin-progress keys plus the opaque
// leader-election namespace. The teacher's metadata/idempotency stores
// (postgres + redis) are adapted here as a concrete durable backing.
package coordstore

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Keys mirrors the three namespaced keys spec.md §6 names.
type Keys struct {
	LastSucceededExecutionID string
	ExecutionIDByStore       string
	Offset                   string
}

// KeysFor builds the key set for one cluster.
func KeysFor(cluster string) Keys {
	return Keys{
		LastSucceededExecutionID: fmt.Sprintf("/clusters/%s/admin/lastSucceededExecutionId", cluster),
		ExecutionIDByStore:       fmt.Sprintf("/clusters/%s/admin/executionIdByStore", cluster),
		Offset:                   fmt.Sprintf("/clusters/%s/admin/offset", cluster),
	}
}

// KV is the minimal hierarchical-KV contract spec.md §6 requires: atomic
// single-key put, point get.
type KV interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Store adapts a KV backend into the progress.DurableStore contract.
type Store struct {
	kv     KV
	logger *zap.Logger
}

func New(kv KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, logger: logger}
}

type offsetRecord struct {
	Offset   int64  `json:"offset"`
	Metadata string `json:"metadata"`
}

// LoadProgress satisfies progress.DurableStore.
func (s *Store) LoadProgress(ctx context.Context, cluster string) (int64, int64, map[string]int64, error) {
	keys := KeysFor(cluster)

	var lastExec int64
	if raw, err := s.kv.Get(ctx, keys.LastSucceededExecutionID); err == nil && raw != nil {
		if err := json.Unmarshal(raw, &lastExec); err != nil {
			return 0, 0, nil, fmt.Errorf("failed to decode lastSucceededExecutionId: %w", err)
		}
	}

	var offsetRec offsetRecord
	if raw, err := s.kv.Get(ctx, keys.Offset); err == nil && raw != nil {
		if err := json.Unmarshal(raw, &offsetRec); err != nil {
			return 0, 0, nil, fmt.Errorf("failed to decode offset record: %w", err)
		}
	}

	byStore := make(map[string]int64)
	if raw, err := s.kv.Get(ctx, keys.ExecutionIDByStore); err == nil && raw != nil {
		if err := json.Unmarshal(raw, &byStore); err != nil {
			return 0, 0, nil, fmt.Errorf("failed to decode executionIdByStore: %w", err)
		}
	}

	return lastExec, offsetRec.Offset, byStore, nil
}

// PersistProgress writes the three keys. Each Put is a single-key atomic
// write; callers (progress.Tracker.CommitCycle) only call this after
// every store in the cycle has succeeded, so the three writes together
// represent one logically atomic cycle-boundary commit even though the
// underlying KV only guarantees atomicity per key.
func (s *Store) PersistProgress(ctx context.Context, cluster string, lastSucceededExecutionID int64, lastPersistedOffset int64, byStore map[string]int64) error {
	keys := KeysFor(cluster)

	execBytes, err := json.Marshal(lastSucceededExecutionID)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, keys.LastSucceededExecutionID, execBytes); err != nil {
		return fmt.Errorf("failed to persist lastSucceededExecutionId: %w", err)
	}

	offsetBytes, err := json.Marshal(offsetRecord{Offset: lastPersistedOffset})
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, keys.Offset, offsetBytes); err != nil {
		return fmt.Errorf("failed to persist offset: %w", err)
	}

	byStoreBytes, err := json.Marshal(byStore)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, keys.ExecutionIDByStore, byStoreBytes); err != nil {
		return fmt.Errorf("failed to persist executionIdByStore: %w", err)
	}

	s.logger.Debug("persisted admin progress",
		zap.String("cluster", cluster),
		zap.Int64("lastSucceededExecutionId", lastSucceededExecutionID),
		zap.Int64("offset", lastPersistedOffset))
	return nil
}
