package schema

import (
	"fmt"
	"strings"
)

// ValidationIssue is one problem found in a node, pipeline, contact or
// chain. Path points at the offending field, e.g. "/config/max_chars" or
// "nodes[3]".
type ValidationIssue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects issues. The zero value is valid.
type ValidationResult struct {
	Errors []ValidationIssue `json:"errors,omitempty"`
}

func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Path: path, Code: code, Message: message})
}

// Merge appends other's issues. A nil other is ignored.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
}

// First returns the first issue carrying code.
func (r *ValidationResult) First(code string) (ValidationIssue, bool) {
	for _, issue := range r.Errors {
		if issue.Code == code {
			return issue, true
		}
	}
	return ValidationIssue{}, false
}

// Summary joins every issue message with "; ".
func (r *ValidationResult) Summary() string {
	msgs := make([]string, len(r.Errors))
	for i, issue := range r.Errors {
		msgs[i] = issue.Message
	}
	return strings.Join(msgs, "; ")
}

// ToError returns nil for a valid result, otherwise a VALIDATION_ERROR whose
// details carry every issue.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("%d problems: %s", len(r.Errors), r.Summary())
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count": len(r.Errors),
			"errors":      r.Errors,
		})
}
