// Package adminhandler implements the admin handler external collaborator
// (spec.md §6): apply(storeName, AdminOperation) -> void | error,
// deterministic and idempotent relative to execution id. A concrete
// in-memory implementation applies each operation variant to cluster
// store metadata, grounded on the per-operation dispatch table the
// original source keeps (see SPEC_FULL.md §3).
package adminhandler

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jamestiotio/corestore/internal/adminmodel"
	"github.com/jamestiotio/corestore/internal/dispatch"
	"github.com/jamestiotio/corestore/internal/schemaregistry"
)

// StoreMetadata is the minimal cluster metadata this handler maintains
// per store — enough to exercise every admin operation variant without
// pulling in a full store-config model, which spec.md places out of
// scope ("it is not a catalog of every admin operation type").
type StoreMetadata struct {
	Name            string
	Owner           string
	KeySchemaID     int32
	ValueSchemaIDs  []int32
	CurrentVersion  int32
	Versions        map[int32]bool
	Killed          map[int32]bool
	Deleted         bool
}

// InMemoryHandler applies admin operations to an in-process metadata map.
// It satisfies execpool.Handler.
type InMemoryHandler struct {
	mu       sync.Mutex
	stores   map[string]*StoreMetadata
	logger   *zap.Logger
	registry *schemaregistry.InMemoryRegistry
}

// NewInMemoryHandler constructs a handler. registry may be nil, in which
// case AddSchema/StoreCreation operations update the store's metadata
// without also populating a schema registry.
func NewInMemoryHandler(logger *zap.Logger, registry *schemaregistry.InMemoryRegistry) *InMemoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryHandler{stores: make(map[string]*StoreMetadata), logger: logger, registry: registry}
}

func (h *InMemoryHandler) Apply(_ context.Context, storeName string, entry dispatch.PendingEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	store := h.stores[storeName]
	if store == nil {
		store = &StoreMetadata{Name: storeName, Versions: make(map[int32]bool), Killed: make(map[int32]bool)}
		h.stores[storeName] = store
	}

	switch op := entry.Operation.(type) {
	case *adminmodel.StoreCreation:
		store.Owner = op.Owner
		store.KeySchemaID = op.KeySchemaID
		store.ValueSchemaIDs = append(store.ValueSchemaIDs, op.ValueSchemaID)
		if h.registry != nil {
			h.registry.Register(storeName, schemaregistry.Schema{ID: op.ValueSchemaID})
		}
	case *adminmodel.AddVersion:
		store.Versions[op.VersionNumber] = true
	case *adminmodel.AddSchema:
		store.ValueSchemaIDs = append(store.ValueSchemaIDs, op.SchemaID)
		if h.registry != nil {
			h.registry.Register(storeName, schemaregistry.Schema{ID: op.SchemaID, Raw: op.Schema})
		}
	case *adminmodel.VersionSwap:
		if !store.Versions[op.CurrentVersion] {
			return fmt.Errorf("cannot swap to unknown version %d for store %q", op.CurrentVersion, storeName)
		}
		store.CurrentVersion = op.CurrentVersion
	case *adminmodel.KillOfflinePush:
		_, version, err := adminmodel.ParseStorageVersionTopic(op.TopicName)
		if err != nil {
			return err
		}
		store.Killed[version] = true
	case *adminmodel.DeleteStore:
		store.Deleted = true
	default:
		return fmt.Errorf("admin handler has no case for operation type %T", op)
	}

	h.logger.Debug("applied admin operation",
		zap.String("store", storeName),
		zap.String("type", string(entry.Operation.Type())),
		zap.Int64("executionId", entry.Operation.ExecutionID()))
	return nil
}

// Snapshot returns a copy of one store's metadata, used by the read
// dispatcher's admin introspection message type (spec.md §4.G).
func (h *InMemoryHandler) Snapshot(storeName string) (StoreMetadata, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	store, ok := h.stores[storeName]
	if !ok {
		return StoreMetadata{}, false
	}
	return *store, true
}
