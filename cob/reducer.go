package cob

import (
	"encoding/json"
	"fmt"

	"github.com/nodeforge/heartwood/crdt"
)

// LWWState is a reducer target backed by an LWW map: each entry's payload
// carries field operations that join into a single convergent value,
// underpinned by the CRDT semilattice guarantees in package crdt (spec.md
// §4.E "underpinned by CRDT (LWW) semilattices").
type LWWState struct {
	Fields *crdt.LWWMap[string, string, int64]
}

// fieldOp is the payload shape a change entry carries when it sets a
// single field to a value as of its own timestamp.
type fieldOp struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// NewLWWState returns an empty reducer target.
func NewLWWState() LWWState {
	less := func(a, b int64) bool { return a < b }
	greater := func(a, b string) bool { return a > b }
	return LWWState{Fields: crdt.NewLWWMap[string, string, int64](less, greater)}
}

// ReduceFields is a Reducer[LWWState] that joins each entry's field-set
// payload into the accumulated state using the entry's timestamp as the
// LWW clock. Unparsable payloads are ignored rather than failing the whole
// fold, since a malformed payload was already let through graph loading
// (only the entry's signature and id are verified there, not its payload
// schema).
func ReduceFields(state LWWState, entry Entry) LWWState {
	var op fieldOp
	if err := json.Unmarshal(entry.Payload, &op); err != nil {
		return state
	}
	state.Fields.Insert(op.Field, op.Value, entry.Timestamp)
	return state
}

// Snapshot renders the current field values as a plain map, for callers
// that don't need the CRDT machinery directly.
func (s LWWState) Snapshot() map[string]string {
	out := make(map[string]string)
	s.Fields.Range(func(k, v string) {
		out[k] = v
	})
	return out
}

// FieldOpPayload encodes a field-set operation as entry payload bytes.
func FieldOpPayload(field, value string) ([]byte, error) {
	data, err := json.Marshal(fieldOp{Field: field, Value: value})
	if err != nil {
		return nil, fmt.Errorf("cob: encode field op: %w", err)
	}
	return data, nil
}
