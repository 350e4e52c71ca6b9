// Package adminmodel defines the admin log's data model: the typed
// AdminOperation payloads (spec.md §3) and the store-name derivation rule.
//
// spec.md §9 flags the original's reflective "look up a storeName field on
// a record of unknown schema" as a design smell to fix in a rewrite: "prefer
// a sum-typed AdminOperation whose each variant carries a typed storeName
// field, reducing the general case to a compile-time dispatch." This
// package is that rewrite.
package adminmodel

import (
	"fmt"
	"strings"
)

// OperationType is the stable operationType tag carried by every admin
// operation.
type OperationType string

const (
	OpStoreCreation   OperationType = "STORE_CREATION"
	OpAddVersion      OperationType = "ADD_VERSION"
	OpAddSchema       OperationType = "VALUE_SCHEMA_CREATION"
	OpVersionSwap     OperationType = "SET_STORE_CURRENT_VERSION"
	OpKillOfflinePush OperationType = "KILL_OFFLINE_PUSH"
	OpDeleteStore     OperationType = "DELETE_STORE"
)

// AdminOperation is the sum type of every admin log payload. ExecutionID
// and Type are common to every variant; StoreName is implemented per
// variant so extraction is a method call, never a reflective field lookup.
type AdminOperation interface {
	Type() OperationType
	ExecutionID() int64
	StoreName() (string, error)
}

type base struct {
	ExecID int64
}

func (b base) ExecutionID() int64 { return b.ExecID }

// StoreCreation creates a brand-new store.
type StoreCreation struct {
	base
	Store   string
	Owner   string
	KeySchemaID    int32
	ValueSchemaID  int32
}

func (o *StoreCreation) Type() OperationType          { return OpStoreCreation }
func (o *StoreCreation) StoreName() (string, error)   { return requireStoreName(o.Store) }

// AddVersion bumps a store's serving version.
type AddVersion struct {
	base
	Store           string
	VersionNumber   int32
	PushJobID       string
}

func (o *AddVersion) Type() OperationType        { return OpAddVersion }
func (o *AddVersion) StoreName() (string, error) { return requireStoreName(o.Store) }

// AddSchema registers a new value schema on a store.
type AddSchema struct {
	base
	Store    string
	SchemaID int32
	Schema   string
}

func (o *AddSchema) Type() OperationType        { return OpAddSchema }
func (o *AddSchema) StoreName() (string, error) { return requireStoreName(o.Store) }

// VersionSwap flips which version is "current" for reads.
type VersionSwap struct {
	base
	Store         string
	CurrentVersion int32
}

func (o *VersionSwap) Type() OperationType        { return OpVersionSwap }
func (o *VersionSwap) StoreName() (string, error) { return requireStoreName(o.Store) }

// KillOfflinePush is the one exempt tag per spec.md §3: it carries no
// explicit storeName field. The store name is parsed out of the embedded
// topic name of the form "<store>_v<version>".
type KillOfflinePush struct {
	base
	TopicName string
}

func (o *KillOfflinePush) Type() OperationType { return OpKillOfflinePush }

func (o *KillOfflinePush) StoreName() (string, error) {
	store, _, err := ParseStorageVersionTopic(o.TopicName)
	if err != nil {
		return "", fmt.Errorf("kill-offline-push: %w", err)
	}
	return store, nil
}

// DeleteStore removes a store entirely.
type DeleteStore struct {
	base
	Store string
}

func (o *DeleteStore) Type() OperationType        { return OpDeleteStore }
func (o *DeleteStore) StoreName() (string, error) { return requireStoreName(o.Store) }

func requireStoreName(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("admin operation is missing a storeName")
	}
	return s, nil
}

// ParseStorageVersionTopic splits "<store>_v<n>" into its store and
// version, per spec.md §3's StorageVersionId rule.
func ParseStorageVersionTopic(topic string) (store string, version int32, err error) {
	idx := strings.LastIndex(topic, "_v")
	if idx < 0 || idx == len(topic)-2 {
		return "", 0, fmt.Errorf("%q is not a valid <store>_v<version> topic name", topic)
	}
	store = topic[:idx]
	var n int64
	for _, c := range topic[idx+2:] {
		if c < '0' || c > '9' {
			return "", 0, fmt.Errorf("%q is not a valid <store>_v<version> topic name", topic)
		}
		n = n*10 + int64(c-'0')
	}
	return store, int32(n), nil
}

// withExecID is a helper for constructing variants with a shared base;
// callers outside this package use it through the constructors below.
func withExecID(id int64) base { return base{ExecID: id} }

func NewStoreCreation(execID int64, store, owner string, keySchemaID, valueSchemaID int32) *StoreCreation {
	return &StoreCreation{base: withExecID(execID), Store: store, Owner: owner, KeySchemaID: keySchemaID, ValueSchemaID: valueSchemaID}
}

func NewAddVersion(execID int64, store string, version int32, pushJobID string) *AddVersion {
	return &AddVersion{base: withExecID(execID), Store: store, VersionNumber: version, PushJobID: pushJobID}
}

func NewAddSchema(execID int64, store string, schemaID int32, schema string) *AddSchema {
	return &AddSchema{base: withExecID(execID), Store: store, SchemaID: schemaID, Schema: schema}
}

func NewVersionSwap(execID int64, store string, version int32) *VersionSwap {
	return &VersionSwap{base: withExecID(execID), Store: store, CurrentVersion: version}
}

func NewKillOfflinePush(execID int64, topicName string) *KillOfflinePush {
	return &KillOfflinePush{base: withExecID(execID), TopicName: topicName}
}

func NewDeleteStore(execID int64, store string) *DeleteStore {
	return &DeleteStore{base: withExecID(execID), Store: store}
}
