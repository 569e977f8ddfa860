// Package pointers has helpers for building *T values inline, mostly in
// tests and fixtures where optional columns need literal addresses.
package pointers

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func Int(v int) *int       { return &v }
func Int64(v int64) *int64 { return &v }
