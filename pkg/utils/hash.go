package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// QuestionKey hashes a question after folding case and whitespace so that
// trivially different spellings share one cache entry.
func QuestionKey(question string) string {
	return HashString(strings.Join(strings.Fields(strings.ToLower(question)), " "))
}
