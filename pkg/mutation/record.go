package mutation

import (
	"fmt"
	"reflect"
)

// Keys reported for non-attribute records.
const (
	KeyCharacterData = "characterData"
	KeyChildList     = "childList"
)

// Kind classifies a mutation record.
type Kind uint8

const (
	// KindAttribute is an attribute change on an element.
	KindAttribute Kind = iota
	// KindText is a character data change on a text node.
	KindText
	// KindStructural is a child list change.
	KindStructural
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindText:
		return "text"
	case KindStructural:
		return "structural"
	default:
		return "unknown"
	}
}

// ParseKind parses a kind name. The DOM record type names
// ("attributes", "characterData", "childList") are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "attribute", "attributes":
		return KindAttribute, nil
	case "text", "characterData":
		return KindText, nil
	case "structural", "childList":
		return KindStructural, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Record is one low-level edit notification.
//
// Target identifies the edited node and must be comparable (typically a
// pointer or a node ID string). For structural records OldValue and
// NewValue hold the text of the removed and added nodes.
type Record struct {
	Kind     Kind
	Target   any
	Key      string
	OldValue any
	NewValue any
}

// Valid reports whether the record can be delivered.
func (r Record) Valid() bool {
	if r.Target == nil {
		return false
	}
	if r.Kind > KindStructural {
		return false
	}
	return r.Kind != KindAttribute || r.Key != ""
}

// NotifyKey returns the key a record is delivered under.
func (r Record) NotifyKey() string {
	switch r.Kind {
	case KindText:
		return KeyCharacterData
	case KindStructural:
		return KeyChildList
	default:
		return r.Key
	}
}

// String renders the record for logs.
func (r Record) String() string {
	return fmt.Sprintf("%s %v.%s: %v -> %v", r.Kind, r.Target, r.NotifyKey(), r.OldValue, r.NewValue)
}

// sameTarget compares targets without panicking on non-comparable values,
// which never match.
func sameTarget(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// isEmpty reports whether a record value carries no old value.
func isEmpty(v any) bool {
	switch tv := v.(type) {
	case nil:
		return true
	case string:
		return tv == ""
	default:
		return false
	}
}
