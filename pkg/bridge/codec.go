package bridge

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/gyptix/observable-go/pkg/mutation"
)

// Format selects the frame encoding.
type Format uint8

const (
	// FormatCBOR sends binary frames.
	FormatCBOR Format = iota
	// FormatJSON sends text frames.
	FormatJSON
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatCBOR:
		return "cbor"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ErrMalformedFrame is returned when a frame cannot be decoded into a batch.
var ErrMalformedFrame = errors.New("bridge: malformed frame")

// WireRecord is one mutation record as sent by the page.
// Target is the node ID assigned by the page.
type WireRecord struct {
	Kind   string `cbor:"1,keyasint" json:"kind"`
	Target string `cbor:"2,keyasint" json:"target"`
	Key    string `cbor:"3,keyasint,omitempty" json:"key,omitempty"`
	Old    any    `cbor:"4,keyasint" json:"old"`
	New    any    `cbor:"5,keyasint" json:"new"`
}

var (
	frameEncMode cbor.EncMode
	frameDecMode cbor.DecMode
	frameJSON    = jsoniter.ConfigCompatibleWithStandardLibrary
)

func init() {
	var err error
	frameEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bridge: failed to create CBOR encoder: " + err.Error())
	}
	frameDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("bridge: failed to create CBOR decoder: " + err.Error())
	}
}

// Encode encodes a batch as one frame. Targets are rendered with fmt.Sprint
// unless they are already strings.
func Encode(format Format, batch []mutation.Record) ([]byte, error) {
	wire := make([]WireRecord, len(batch))
	for i, r := range batch {
		target, ok := r.Target.(string)
		if !ok {
			target = fmt.Sprint(r.Target)
		}
		wire[i] = WireRecord{
			Kind:   r.Kind.String(),
			Target: target,
			Key:    r.Key,
			Old:    r.OldValue,
			New:    r.NewValue,
		}
	}

	switch format {
	case FormatCBOR:
		return frameEncMode.Marshal(wire)
	case FormatJSON:
		return frameJSON.Marshal(wire)
	default:
		return nil, fmt.Errorf("bridge: unknown format %d", format)
	}
}

// Decode decodes one frame into a batch. resolve maps node IDs to targets;
// when nil the ID itself is the target. Records with an empty ID or an
// unknown kind get a nil target, so the coalescer drops and counts them
// while the rest of the batch is delivered.
func Decode(format Format, data []byte, resolve func(id string) any) ([]mutation.Record, error) {
	var wire []WireRecord
	var err error
	switch format {
	case FormatCBOR:
		err = frameDecMode.Unmarshal(data, &wire)
	case FormatJSON:
		err = frameJSON.Unmarshal(data, &wire)
	default:
		return nil, fmt.Errorf("bridge: unknown format %d", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	batch := make([]mutation.Record, len(wire))
	for i, w := range wire {
		kind, err := mutation.ParseKind(w.Kind)
		var target any
		if err == nil {
			target = resolveTarget(w.Target, resolve)
		}
		batch[i] = mutation.Record{
			Kind:     kind,
			Target:   target,
			Key:      w.Key,
			OldValue: w.Old,
			NewValue: w.New,
		}
	}
	return batch, nil
}

func resolveTarget(id string, resolve func(string) any) any {
	if id == "" {
		return nil
	}
	if resolve == nil {
		return id
	}
	return resolve(id)
}
