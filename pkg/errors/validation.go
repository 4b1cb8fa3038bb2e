package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxTagLength bounds type tags and context tags.
const maxTagLength = 128

// typeTagRegex matches registrable type tags such as "param" or "model.Encoder".
var typeTagRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-/*\[\]]*$`)

// ValidateTypeTag validates a type tag used to register a node or variable type.
// Type tags end up inside encoded GraphDefs, so they must be printable and stable:
//   - No empty tags
//   - No whitespace or control characters
//   - Maximum length of 128 characters
//   - Must start with a letter or underscore
func ValidateTypeTag(tag string) error {
	if tag == "" {
		return New(ErrCodeInvalidTag, "type tag cannot be empty")
	}
	if len(tag) > maxTagLength {
		return New(ErrCodeInvalidTag, "type tag too long (max %d characters)", maxTagLength)
	}
	if !typeTagRegex.MatchString(tag) {
		return New(ErrCodeInvalidTag, "invalid type tag: %q", tag)
	}
	return nil
}

// ValidateContextTag validates an update-context tag.
// Context tags are opaque to the engine; they only need to be non-empty and
// free of control characters so they can appear in logs.
func ValidateContextTag(tag string) error {
	if tag == "" {
		return New(ErrCodeInvalidTag, "context tag cannot be empty")
	}
	if len(tag) > maxTagLength {
		return New(ErrCodeInvalidTag, "context tag too long (max %d characters)", maxTagLength)
	}
	for _, r := range tag {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidTag, "context tag contains invalid control characters")
		}
	}
	return nil
}

// ValidateFilePath validates a graph description path given on the command line.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidateFilePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidFile, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidFile, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidFile, "path contains invalid characters")
		}
	}

	if strings.HasSuffix(path, "/") {
		return New(ErrCodeInvalidFile, "path must name a file, not a directory")
	}

	return nil
}
