// Package failures classifies processing errors into fixed categories
// and records them as structured, queryable failure records.
package failures

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rekoda/internal/mediainfo"
	"rekoda/internal/models"
)

// Failure is a typed, categorized processing error. Producing one at
// the point of failure is preferred over classifying text after the
// fact; Categorize keeps a keyword fallback only for errors sourced
// from uncontrolled external text such as subprocess stderr.
type Failure struct {
	Category string
	Code     string
	Message  string
	Context  string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s/%s: %s", f.Category, f.Code, f.Message)
}

// Typed constructors, one per category.

func FileAccess(code, format string, args ...any) *Failure {
	return &Failure{Category: models.CategoryFileAccess, Code: code, Message: fmt.Sprintf(format, args...)}
}

func MetadataExtraction(code, format string, args ...any) *Failure {
	return &Failure{Category: models.CategoryMetadataExtraction, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(code, format string, args ...any) *Failure {
	return &Failure{Category: models.CategoryValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Timeout(code, format string, args ...any) *Failure {
	return &Failure{Category: models.CategoryTimeout, Code: code, Message: fmt.Sprintf(format, args...)}
}

func ProcessFailure(code, format string, args ...any) *Failure {
	return &Failure{Category: models.CategoryProcessFailure, Code: code, Message: fmt.Sprintf(format, args...)}
}

func StorageContention(code, format string, args ...any) *Failure {
	return &Failure{Category: models.CategoryStorageContention, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Unknown(format string, args ...any) *Failure {
	return &Failure{Category: models.CategoryUnknown, Code: "unexpected", Message: fmt.Sprintf(format, args...)}
}

// WithContext attaches supporting context (command line, captured
// output, path) and returns the same failure for chaining.
func (f *Failure) WithContext(ctx string) *Failure {
	f.Context = ctx
	return f
}

// Categorize maps any error to a Failure. Ordered rules, first match
// wins: already-typed failures pass through, then known error types,
// then the keyword fallback over the error text, then unknown.
func Categorize(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	var te *mediainfo.ToolError
	if errors.As(err, &te) {
		return MetadataExtraction("tool_failed", "%v", te.Err).
			WithContext(fmt.Sprintf("command: %s\nstderr: %s", te.Command, strings.TrimSpace(te.Stderr)))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout("deadline_exceeded", "%v", err)
	}

	// Keyword fallback for uncontrolled external text.
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "metadata"):
		return MetadataExtraction("keyword_match", "%v", err)
	case strings.Contains(text, "no such file"), strings.Contains(text, "file"):
		return FileAccess("keyword_match", "%v", err)
	case strings.Contains(text, "validation"):
		return Validation("keyword_match", "%v", err)
	case strings.Contains(text, "exception"), strings.Contains(text, "panic"):
		return Unknown("%v", err)
	}
	return Unknown("%v", err)
}
