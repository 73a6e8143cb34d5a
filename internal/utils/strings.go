package utils

import "strings"

// FirstNonEmpty returns the first value that is not blank after trimming.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
