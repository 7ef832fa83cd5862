// Package diag defines the generation error taxonomy.
//
// All generation errors are fatal to the document being processed and are
// isolated per document by the engine. Each error names the offending
// declaration or raw rule text in Subject.
package diag

import (
	"errors"
	"fmt"
)

// Code categorizes generation errors.
type Code string

const (
	// CodeReference indicates an unknown declaration, enum choice or generator name.
	CodeReference Code = "REFERENCE"

	// CodeTypeUnification indicates two representation types have no common supertype.
	CodeTypeUnification Code = "TYPE_UNIFICATION"

	// CodeRuleParse indicates a malformed or partially consumed rule expression.
	CodeRuleParse Code = "RULE_PARSE"

	// CodeRuleLookup indicates an unknown operator symbol or identifier.
	CodeRuleLookup Code = "RULE_LOOKUP"
)

// Error is a classified generation error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Subject is the declaration name or raw rule text the error is about.
	Subject string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Subject, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// In returns a copy of err with subject set when err is a diag error that
// has no subject yet. Other errors are wrapped with the subject as context.
func In(subject string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		if de.Subject != "" {
			return fmt.Errorf("%s: %w", subject, err)
		}
		cp := *de
		cp.Subject = subject
		return &cp
	}
	return fmt.Errorf("%s: %w", subject, err)
}

// Reference creates a ReferenceError.
func Reference(subject, format string, args ...any) *Error {
	return &Error{Code: CodeReference, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// TypeUnification creates a TypeUnificationError.
func TypeUnification(subject, format string, args ...any) *Error {
	return &Error{Code: CodeTypeUnification, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// RuleParse creates a RuleParseError. subject is the raw rule text.
func RuleParse(subject, format string, args ...any) *Error {
	return &Error{Code: CodeRuleParse, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// RuleLookup creates a RuleLookupError. subject is the raw rule text.
func RuleLookup(subject, format string, args ...any) *Error {
	return &Error{Code: CodeRuleLookup, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first diag error in err's chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

func is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsReferenceError returns true if err is a ReferenceError.
// Uses errors.As to handle wrapped errors.
func IsReferenceError(err error) bool { return is(err, CodeReference) }

// IsTypeUnificationError returns true if err is a TypeUnificationError.
func IsTypeUnificationError(err error) bool { return is(err, CodeTypeUnification) }

// IsRuleParseError returns true if err is a RuleParseError.
func IsRuleParseError(err error) bool { return is(err, CodeRuleParse) }

// IsRuleLookupError returns true if err is a RuleLookupError.
func IsRuleLookupError(err error) bool { return is(err, CodeRuleLookup) }
