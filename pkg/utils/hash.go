package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString produces a stable key for cache lookups; not for security use.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
