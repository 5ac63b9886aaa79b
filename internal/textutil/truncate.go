package textutil

// TruncateRunes returns at most limit runes of value. A non-positive limit
// returns value unchanged.
func TruncateRunes(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	count := 0
	for i := range value {
		if count == limit {
			return value[:i]
		}
		count++
	}
	return value
}
