package enums

import "fmt"

// ActionKind discriminates queued mutations.
type ActionKind string

const (
	ActionKindCreateRecord ActionKind = "create_record"
	ActionKindUpdateRecord ActionKind = "update_record"
	ActionKindDeleteRecord ActionKind = "delete_record"
	ActionKindAdjustStock  ActionKind = "adjust_stock"
	ActionKindRecordSale   ActionKind = "record_sale"
)

var validActionKinds = []ActionKind{
	ActionKindCreateRecord,
	ActionKindUpdateRecord,
	ActionKindDeleteRecord,
	ActionKindAdjustStock,
	ActionKindRecordSale,
}

// String implements fmt.Stringer.
func (k ActionKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known ActionKind.
func (k ActionKind) IsValid() bool {
	for _, candidate := range validActionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseActionKind converts raw input into an ActionKind.
func ParseActionKind(value string) (ActionKind, error) {
	for _, candidate := range validActionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid action kind %q", value)
}
