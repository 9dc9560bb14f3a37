package utils

// Any reports whether at least one outcome is true.
func Any(outcomes []bool) bool {
	for _, o := range outcomes {
		if o {
			return true
		}
	}
	return false
}
