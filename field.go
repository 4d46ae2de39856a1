package pim

import (
	"bytes"
	"encoding/json"
)

// Field is a payload member that distinguishes "not sent" from "sent as null".
// The zero value is absent. Use the omitzero JSON option so absent fields are
// left out when encoding.
type Field[T any] struct {
	present bool
	value   *T
}

// Some returns a present field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{present: true, value: &v}
}

// Null returns a present field holding null.
func Null[T any]() Field[T] {
	return Field[T]{present: true}
}

func (f Field[T]) IsPresent() bool { return f.present }

// IsNull reports a present field that holds null.
func (f Field[T]) IsNull() bool { return f.present && f.value == nil }

// Get returns the held value. ok is false for absent and null fields.
func (f Field[T]) Get() (v T, ok bool) {
	if f.value == nil {
		return v, false
	}
	return *f.value, true
}

// OrZero returns the held value or the zero value of T.
func (f Field[T]) OrZero() T {
	v, _ := f.Get()
	return v
}

func (f *Field[T]) Set(v T) {
	f.present = true
	f.value = &v
}

func (f *Field[T]) SetNull() {
	f.present = true
	f.value = nil
}

// Unset makes the field absent.
func (f *Field[T]) Unset() {
	f.present = false
	f.value = nil
}

// IsZero is consulted by encoding/json for omitzero.
func (f Field[T]) IsZero() bool { return !f.present }

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.value)
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.value = nil
		return nil
	}
	// UseNumber keeps integers above 2^53 exact when T is an interface.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v T
	if err := dec.Decode(&v); err != nil {
		return err
	}
	f.value = &v
	return nil
}
