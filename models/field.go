package models

// Field is a value that a best-effort extraction may or may not have produced.
type Field[T any] struct {
	Value T
	Valid bool
}

// Some wraps a present value.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Valid: true}
}

// None returns an absent value.
func None[T any]() Field[T] {
	return Field[T]{}
}

// Ptr returns a pointer to a copy of the value, or nil when absent.
// Parquet optional columns are expressed as pointers.
func (f Field[T]) Ptr() *T {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// Or returns the value, or fallback when absent.
func (f Field[T]) Or(fallback T) T {
	if !f.Valid {
		return fallback
	}
	return f.Value
}
