package core

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/coregx/sqlforge/internal/adapter"
)

// Binder allocates positional placeholders while a statement renders and keeps
// the values in registration order.
//
// Placeholder names are ":<offset+index>". The offset lets two rendered
// statements share one parameter list, as UNION does.
type Binder struct {
	values []any
	offset int
}

// NewBinder creates a binder whose first placeholder is ":offset".
func NewBinder(offset int) *Binder {
	return &Binder{offset: offset}
}

// Register appends v and returns the placeholder it is bound to.
func (b *Binder) Register(v any) string {
	b.values = append(b.values, normalizeValue(v))
	return ":" + strconv.Itoa(b.offset+len(b.values)-1)
}

// Values returns a copy of the registered values.
func (b *Binder) Values() []any {
	if len(b.values) == 0 {
		return nil
	}
	out := make([]any, len(b.values))
	copy(out, b.values)
	return out
}

// Len returns the number of registered values.
func (b *Binder) Len() int { return len(b.values) }

// Offset returns the number of the first placeholder.
func (b *Binder) Offset() int { return b.offset }

// SetOffset changes the number of the first placeholder. Values already
// registered keep their position.
func (b *Binder) SetOffset(offset int) { b.offset = offset }

// Reset drops all values and keeps the offset.
func (b *Binder) Reset() { b.values = b.values[:0] }

// Binds returns the values keyed by placeholder name.
func (b *Binder) Binds() adapter.Binds {
	return positionalBinds(b.values, b.offset)
}

func positionalBinds(values []any, offset int) adapter.Binds {
	binds := make(adapter.Binds, len(values))
	for i, v := range values {
		binds[":"+strconv.Itoa(offset+i)] = v
	}
	return binds
}

// normalizeValue converts values not every driver accepts.
func normalizeValue(v any) any {
	switch u := v.(type) {
	case uuid.UUID:
		return u.String()
	case *uuid.UUID:
		if u == nil {
			return nil
		}
		return u.String()
	case uuid.NullUUID:
		if !u.Valid {
			return nil
		}
		return u.UUID.String()
	}
	return v
}
