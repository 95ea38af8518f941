package queue

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/possync/pkg/enums"
)

// PayloadVersion is written into every envelope produced by this build.
const PayloadVersion = 1

type decoderFunc func(data json.RawMessage) (Action, error)

type registryKey struct {
	kind    enums.ActionKind
	version int
}

// DecoderRegistry maps a (kind, version) pair to the payload decoder.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// DefaultRegistry knows every action kind at PayloadVersion.
func DefaultRegistry() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.ActionKindCreateRecord, PayloadVersion, decodeAs[CreateRecord])
	r.Register(enums.ActionKindUpdateRecord, PayloadVersion, decodeAs[UpdateRecord])
	r.Register(enums.ActionKindDeleteRecord, PayloadVersion, decodeAs[DeleteRecord])
	r.Register(enums.ActionKindAdjustStock, PayloadVersion, decodeAs[AdjustStock])
	r.Register(enums.ActionKindRecordSale, PayloadVersion, decodeAs[RecordSale])
	return r
}

func (r *DecoderRegistry) Register(kind enums.ActionKind, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{kind: kind, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(kind enums.ActionKind, version int, data json.RawMessage) (Action, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[registryKey{kind: kind, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", kind, version)
	}
	return decoder(data)
}

func decodeAs[T Action](data json.RawMessage) (Action, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// envelope is the persisted payload shape.
type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

func encode(a Action) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", a.Kind(), err)
	}
	raw, err := json.Marshal(envelope{Version: PayloadVersion, Data: data})
	if err != nil {
		return "", fmt.Errorf("encoding envelope: %w", err)
	}
	return string(raw), nil
}
