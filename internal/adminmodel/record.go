package adminmodel

import "encoding/json"

// MessageType is the envelope's declared kind. The dispatcher (spec.md
// §4.C) only ever accepts PUT; anything else is fatal.
type MessageType string

const MessageTypePut MessageType = "PUT"

// Key carries the transport-level control flag spec.md §3 describes.
type Key struct {
	IsControlMessage bool
}

// Envelope is the record's payload wrapper: a declared message type, the
// schema id needed to deserialize the AdminOperation, and the raw bytes.
type Envelope struct {
	MessageType MessageType
	SchemaID    int32
	Payload     []byte
}

// LogRecord is (offset, key, envelope) exactly as spec.md §3 defines it.
type LogRecord struct {
	Offset   int64
	Key      Key
	Envelope Envelope
}

// wireOperation is the JSON-on-the-wire shape a deserializer decodes an
// Envelope.Payload into before it is resolved to a concrete AdminOperation
// variant. spec.md's Open Question notes there is no Avro library in the
// retrieval pack (see SPEC_FULL.md §4); JSON stands in for the wire codec,
// which is itself an external, out-of-scope collaborator (schema registry).
type wireOperation struct {
	Type          OperationType `json:"type"`
	ExecutionID   int64         `json:"executionId"`
	Store         string        `json:"store,omitempty"`
	Owner         string        `json:"owner,omitempty"`
	KeySchemaID   int32         `json:"keySchemaId,omitempty"`
	ValueSchemaID int32         `json:"valueSchemaId,omitempty"`
	VersionNumber int32         `json:"versionNumber,omitempty"`
	PushJobID     string        `json:"pushJobId,omitempty"`
	SchemaID      int32         `json:"schemaId,omitempty"`
	Schema        string        `json:"schema,omitempty"`
	TopicName     string        `json:"topicName,omitempty"`
}

// DeserializeOperation turns an envelope's payload bytes into a concrete
// AdminOperation variant. The schema id is accepted for interface
// compatibility with a real schema-registry-backed deserializer (spec.md
// §6); this implementation is schema-id-agnostic because the wire format
// here is self-describing JSON.
func DeserializeOperation(schemaID int32, payload []byte) (AdminOperation, error) {
	var w wireOperation
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}
	switch w.Type {
	case OpStoreCreation:
		return NewStoreCreation(w.ExecutionID, w.Store, w.Owner, w.KeySchemaID, w.ValueSchemaID), nil
	case OpAddVersion:
		return NewAddVersion(w.ExecutionID, w.Store, w.VersionNumber, w.PushJobID), nil
	case OpAddSchema:
		return NewAddSchema(w.ExecutionID, w.Store, w.SchemaID, w.Schema), nil
	case OpVersionSwap:
		return NewVersionSwap(w.ExecutionID, w.Store, w.VersionNumber), nil
	case OpKillOfflinePush:
		return NewKillOfflinePush(w.ExecutionID, w.TopicName), nil
	case OpDeleteStore:
		return NewDeleteStore(w.ExecutionID, w.Store), nil
	default:
		return nil, &unknownOperationTypeError{Type: w.Type}
	}
}

type unknownOperationTypeError struct{ Type OperationType }

func (e *unknownOperationTypeError) Error() string {
	return "unknown admin operation type: " + string(e.Type)
}
