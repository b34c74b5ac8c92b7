package server

import (
	"bytes"
	"encoding/json"
)

// optional is a JSON member that may be absent, null or set. It lets
// partial updates tell "leave alone" from "clear".
type optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// ptr returns nil when the member was absent and a pointer to the value,
// the zero value for null, otherwise.
func (o optional[T]) ptr() *T {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}
