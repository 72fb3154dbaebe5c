package utils

// Unique 去重, 保留首次出现的顺序
func Unique[T comparable](slice []T) []T {
	m := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, s := range slice {
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		result = append(result, s)
	}
	return result
}

// Find returns the first element matching fn.
func Find[T any](slice []T, fn func(T) bool) (T, bool) {
	for _, s := range slice {
		if fn(s) {
			return s, true
		}
	}
	var zero T
	return zero, false
}

// Set builds a lookup set from slice.
func Set[T comparable](slice []T) map[T]struct{} {
	m := make(map[T]struct{}, len(slice))
	for _, s := range slice {
		m[s] = struct{}{}
	}
	return m
}
