package utils

import "regexp"

var imageRefPattern = regexp.MustCompile(`^(([a-zA-Z0-9.-]+(:\d{2,5})?\/)?[a-z0-9]+(?:[._-][a-z0-9]+)*\/)*[a-z0-9]+(?:[._-][a-z0-9]+)*(?::[a-zA-Z0-9._-]+)?$`)

// IsValidImageRef reports whether the input is a valid Docker image reference.
func IsValidImageRef(input string) bool {
	return imageRefPattern.MatchString(input)
}
