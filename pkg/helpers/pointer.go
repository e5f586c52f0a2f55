package helpers

// ToPtr returns a pointer to a copy of v.
func ToPtr[T any](v T) *T {
	return &v
}
