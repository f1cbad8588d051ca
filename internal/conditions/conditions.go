// Package conditions decides whether a handler applies to an event. Evaluation
// is pure and fails closed: malformed or unknown conditions evaluate to false.
package conditions

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/types"
)

type Type string

const (
	TypeAlways          Type = ""
	TypeFieldWasNull    Type = "field_was_null"
	TypeFieldChanged    Type = "field_changed"
	TypeHasLinkedClient Type = "has_linked_client"
	TypeFieldEquals     Type = "field_equals"
	TypeFieldIn         Type = "field_in"
	TypeCustom          Type = "custom"
)

const clientEntity = "client"

// ErrReserved marks the custom type, which is accepted in configuration but never executed.
var ErrReserved = errors.New("custom conditions are reserved and always evaluate to false")

// Condition is the tagged predicate stored alongside handler configuration.
type Condition struct {
	Type       Type   `json:"type" yaml:"type"`
	Field      string `json:"field,omitempty" yaml:"field,omitempty"`
	Value      any    `json:"value,omitempty" yaml:"value,omitempty"`
	Values     []any  `json:"values,omitempty" yaml:"values,omitempty"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Evaluate reports whether cond holds for evt. A nil condition always holds.
func Evaluate(evt *models.Event, cond *Condition) bool {
	if cond == nil || cond.Type == TypeAlways {
		return true
	}
	if evt == nil {
		return false
	}

	switch cond.Type {
	case TypeFieldWasNull:
		prev, ok := lookup(evt.PreviousState, cond.Field)
		return ok && types.IsBlank(prev)
	case TypeFieldChanged:
		return cond.Field != "" && slices.Contains([]string(evt.ChangedFields), cond.Field)
	case TypeHasLinkedClient:
		return hasLinkedClient(evt)
	case TypeFieldEquals:
		cur, ok := lookup(evt.CurrentState, cond.Field)
		return ok && types.JSONEqual(cur, cond.Value)
	case TypeFieldIn:
		cur, ok := lookup(evt.CurrentState, cond.Field)
		if !ok {
			return false
		}
		for _, candidate := range cond.Values {
			if types.JSONEqual(cur, candidate) {
				return true
			}
		}
		return false
	default:
		// custom and unknown types
		return false
	}
}

// Validate reports configuration problems. Evaluation never depends on it.
func Validate(cond *Condition) error {
	if cond == nil {
		return nil
	}
	switch cond.Type {
	case TypeAlways, TypeHasLinkedClient:
		return nil
	case TypeFieldWasNull, TypeFieldChanged, TypeFieldEquals:
		if strings.TrimSpace(cond.Field) == "" {
			return fmt.Errorf("condition %s requires a field", cond.Type)
		}
		return nil
	case TypeFieldIn:
		if strings.TrimSpace(cond.Field) == "" {
			return fmt.Errorf("condition %s requires a field", cond.Type)
		}
		if len(cond.Values) == 0 {
			return fmt.Errorf("condition %s requires values", cond.Type)
		}
		return nil
	case TypeCustom:
		return ErrReserved
	default:
		return fmt.Errorf("unknown condition type %q", cond.Type)
	}
}

func lookup(state map[string]any, field string) (any, bool) {
	if field == "" || state == nil {
		return nil, false
	}
	v, ok := state[field]
	return v, ok
}

func hasLinkedClient(evt *models.Event) bool {
	if strings.EqualFold(evt.EntityType, clientEntity) {
		return true
	}
	if v, ok := lookup(evt.CurrentState, clientEntity); ok && !types.IsBlank(v) {
		return true
	}
	for _, state := range []map[string]any{evt.CurrentState, evt.Metadata} {
		if v, ok := lookup(state, "content_type"); ok && namesClient(types.StringValue(v)) {
			return true
		}
	}
	return false
}

// namesClient accepts "Client" as well as qualified names such as "crm.client".
func namesClient(contentType string) bool {
	name := contentType
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.EqualFold(strings.TrimSpace(name), clientEntity)
}
