package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/can1357/retro/internal/decl"
	"github.com/can1357/retro/internal/literal"
)

// Validation error codes (E200-E299)
const (
	// Schema document errors (E200-E209)
	ErrInvalidMetadata   = "E200" // metadata value has the wrong shape
	ErrUnknownDeclType   = "E201" // Type is not Enum, Struct or Namespace
	ErrReservedChoice    = "E202" // choice named after the sentinel
	ErrDuplicateChoice   = "E203" // choice declared twice
	ErrEmptyEnum         = "E204" // enum without choices
	ErrInvalidChoice     = "E205" // choice or shorthand element has the wrong shape
	ErrInvalidIdentifier = "E206" // declaration, choice or field name is not an identifier
	ErrInvalidComputed   = "E207" // malformed computed-field generator
	ErrScriptForbidden   = "E208" // Script metadata is not supported

	// Rule document errors (E210-E219)
	ErrInvalidCategory = "E210" // category is not a list of rules
	ErrInvalidRule     = "E211" // rule is not a {from, to} table
	ErrEmptyPattern    = "E212" // from or to is empty
)

// ValidationError represents a document validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found in one document.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// identPattern matches declaration, choice and field names.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// namespacePattern matches native namespace paths such as retro::ir.
var namespacePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(::[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidateSchema checks the structure of a schema document.
// Returns all errors found (does not fail-fast).
func ValidateSchema(doc literal.Table) []ValidationError {
	return validateNamespace(doc, "")
}

func validateNamespace(doc literal.Table, prefix string) []ValidationError {
	var errs []ValidationError

	for _, entry := range doc.Metadata() {
		field := joinField(prefix, entry.Key)
		switch entry.Key {
		case decl.MetaIncludes:
			errs = append(errs, validateTextList(entry.Value, field, false)...)
		case decl.MetaForwards:
			errs = append(errs, validateTextList(entry.Value, field, true)...)
		case decl.MetaNamespace:
			t, ok := entry.Value.(literal.Text)
			if !ok || !namespacePattern.MatchString(string(t)) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("namespace must be a path like retro::ir, got %s", literal.Format(entry.Value)),
					Code:    ErrInvalidMetadata,
				})
			}
		case decl.MetaScript:
			errs = append(errs, scriptError(field))
		}
	}

	for _, entry := range doc.Data() {
		field := joinField(prefix, entry.Key)
		if !identPattern.MatchString(entry.Key) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid declaration name %q", entry.Key),
				Code:    ErrInvalidIdentifier,
			})
		}

		if list, ok := entry.Value.(literal.List); ok {
			choices := shorthandChoices(list, field, &errs)
			errs = append(errs, validateEnum(choices, nil, field)...)
			continue
		}

		var body literal.Table
		switch v := entry.Value.(type) {
		case nil:
		case literal.Table:
			body = v
		default:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("declaration must be a table or a list, got %s", literal.KindOf(v)),
				Code:    ErrInvalidChoice,
			})
			continue
		}

		kind := "Enum"
		if v, ok := body.Get(decl.MetaType); ok {
			t, _ := v.(literal.Text)
			kind = string(t)
		}
		switch kind {
		case "Enum":
			errs = append(errs, validateEnum(body.Data(), body.Metadata(), field)...)
		case "Struct":
			errs = append(errs, validateStruct(body, field)...)
		case "Namespace":
			errs = append(errs, validateNamespace(body.Without(decl.MetaType), field)...)
		default:
			errs = append(errs, ValidationError{
				Field:   joinField(field, decl.MetaType),
				Message: fmt.Sprintf("unknown declaration type %q, must be Enum, Struct or Namespace", kind),
				Code:    ErrUnknownDeclType,
			})
		}
	}

	return errs
}

// shorthandChoices expands list shorthand into choice entries, reporting
// malformed elements into errs.
func shorthandChoices(list literal.List, field string, errs *[]ValidationError) literal.Table {
	var out literal.Table
	for i, item := range list {
		elem := fmt.Sprintf("%s[%d]", field, i)
		switch it := item.(type) {
		case literal.Text:
			out = append(out, literal.Entry{Key: string(it), Value: literal.Table{}})
		case literal.Table:
			names, ok := it.Get(decl.MetaList)
			listed, isList := names.(literal.List)
			if !ok || !isList {
				*errs = append(*errs, ValidationError{
					Field:   elem,
					Message: fmt.Sprintf("shorthand table needs a %s of choice names", decl.MetaList),
					Code:    ErrInvalidChoice,
				})
				continue
			}
			shared := it.Without(decl.MetaList)
			for _, n := range listed {
				t, ok := n.(literal.Text)
				if !ok {
					*errs = append(*errs, ValidationError{
						Field:   joinField(elem, decl.MetaList),
						Message: fmt.Sprintf("choice names must be text, got %s", literal.KindOf(n)),
						Code:    ErrInvalidChoice,
					})
					continue
				}
				out = append(out, literal.Entry{Key: string(t), Value: shared})
			}
		default:
			*errs = append(*errs, ValidationError{
				Field:   elem,
				Message: fmt.Sprintf("shorthand element must be a name or a table, got %s", literal.KindOf(item)),
				Code:    ErrInvalidChoice,
			})
		}
	}
	return out
}

func validateEnum(choices, meta literal.Table, field string) []ValidationError {
	var errs []ValidationError

	if meta.Has(decl.MetaScript) {
		errs = append(errs, scriptError(joinField(field, decl.MetaScript)))
	}
	if v, ok := meta.Get(decl.MetaComputed); ok {
		errs = append(errs, validateComputed(v, joinField(field, decl.MetaComputed))...)
	}

	if len(choices) == 0 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "enum must declare at least one choice",
			Code:    ErrEmptyEnum,
		})
	}

	seen := make(map[string]bool)
	for _, c := range choices {
		cf := joinField(field, c.Key)
		if c.Key == decl.Sentinel {
			errs = append(errs, ValidationError{
				Field:   cf,
				Message: fmt.Sprintf("choice name %q is reserved", decl.Sentinel),
				Code:    ErrReservedChoice,
			})
		} else if !identPattern.MatchString(c.Key) {
			errs = append(errs, ValidationError{
				Field:   cf,
				Message: fmt.Sprintf("invalid choice name %q", c.Key),
				Code:    ErrInvalidIdentifier,
			})
		}
		if seen[c.Key] {
			errs = append(errs, ValidationError{
				Field:   cf,
				Message: fmt.Sprintf("duplicate choice %q", c.Key),
				Code:    ErrDuplicateChoice,
			})
		}
		seen[c.Key] = true

		switch v := c.Value.(type) {
		case nil:
		case literal.Table:
			for _, f := range v.Data() {
				if !identPattern.MatchString(f.Key) {
					errs = append(errs, ValidationError{
						Field:   joinField(cf, f.Key),
						Message: fmt.Sprintf("invalid field name %q", f.Key),
						Code:    ErrInvalidIdentifier,
					})
				}
			}
		default:
			errs = append(errs, ValidationError{
				Field:   cf,
				Message: fmt.Sprintf("choice must be a table, got %s", literal.KindOf(v)),
				Code:    ErrInvalidChoice,
			})
		}
	}

	return errs
}

func validateStruct(body literal.Table, field string) []ValidationError {
	var errs []ValidationError
	if body.Has(decl.MetaScript) {
		errs = append(errs, scriptError(joinField(field, decl.MetaScript)))
	}
	for _, f := range body.Data() {
		if !identPattern.MatchString(f.Key) {
			errs = append(errs, ValidationError{
				Field:   joinField(field, f.Key),
				Message: fmt.Sprintf("invalid field name %q", f.Key),
				Code:    ErrInvalidIdentifier,
			})
		}
	}
	return errs
}

func validateComputed(v literal.Value, field string) []ValidationError {
	table, ok := v.(literal.Table)
	if !ok {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("computed fields must be a table of generator calls, got %s", literal.KindOf(v)),
			Code:    ErrInvalidComputed,
		}}
	}

	var errs []ValidationError
	for _, entry := range table {
		call, ok := entry.Value.(literal.Text)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   joinField(field, entry.Key),
				Message: fmt.Sprintf("generator call must be text, got %s", literal.KindOf(entry.Value)),
				Code:    ErrInvalidComputed,
			})
			continue
		}
		if _, _, err := decl.ParseComputed(string(call)); err != nil {
			errs = append(errs, ValidationError{
				Field:   joinField(field, entry.Key),
				Message: err.Error(),
				Code:    ErrInvalidComputed,
			})
		}
	}
	return errs
}

func validateTextList(v literal.Value, field string, identifiers bool) []ValidationError {
	list, ok := v.(literal.List)
	if !ok {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("must be a list of text, got %s", literal.KindOf(v)),
			Code:    ErrInvalidMetadata,
		}}
	}

	var errs []ValidationError
	for i, item := range list {
		t, ok := item.(literal.Text)
		switch {
		case !ok:
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("must be text, got %s", literal.KindOf(item)),
				Code:    ErrInvalidMetadata,
			})
		case identifiers && !identPattern.MatchString(string(t)):
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("invalid name %q", t),
				Code:    ErrInvalidIdentifier,
			})
		}
	}
	return errs
}

func scriptError(field string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("%s metadata is not supported, use %s generators", decl.MetaScript, decl.MetaComputed),
		Code:    ErrScriptForbidden,
	}
}

// Rule table keys.
const (
	ruleFrom = "from"
	ruleTo   = "to"
)

// ValidateRules checks the structure of a rule document: every key is a
// category holding a list of {from, to} tables.
func ValidateRules(doc literal.Table) []ValidationError {
	var errs []ValidationError

	for _, entry := range doc {
		if !identPattern.MatchString(entry.Key) || literal.IsMetaKey(entry.Key) {
			errs = append(errs, ValidationError{
				Field:   entry.Key,
				Message: fmt.Sprintf("invalid category name %q", entry.Key),
				Code:    ErrInvalidCategory,
			})
			continue
		}
		list, ok := entry.Value.(literal.List)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   entry.Key,
				Message: fmt.Sprintf("category must be a list of rules, got %s", literal.KindOf(entry.Value)),
				Code:    ErrInvalidCategory,
			})
			continue
		}

		for i, item := range list {
			field := fmt.Sprintf("%s[%d]", entry.Key, i)
			rule, ok := item.(literal.Table)
			if !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("rule must be a table with %s and %s, got %s", ruleFrom, ruleTo, literal.KindOf(item)),
					Code:    ErrInvalidRule,
				})
				continue
			}
			for _, key := range []string{ruleFrom, ruleTo} {
				v, ok := rule.Get(key)
				t, isText := v.(literal.Text)
				switch {
				case !ok || !isText:
					errs = append(errs, ValidationError{
						Field:   joinField(field, key),
						Message: fmt.Sprintf("%s pattern is required and must be text", key),
						Code:    ErrInvalidRule,
					})
				case strings.TrimSpace(string(t)) == "":
					errs = append(errs, ValidationError{
						Field:   joinField(field, key),
						Message: fmt.Sprintf("%s pattern is empty", key),
						Code:    ErrEmptyPattern,
					})
				}
			}
		}
	}

	return errs
}
