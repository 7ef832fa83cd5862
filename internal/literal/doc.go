// Package literal provides the value model that schema and rule documents are
// decoded into before any compilation happens.
//
// Every other internal package imports literal; literal imports nothing
// internal. A document is a Table (ordered key/value pairs) whose leaves are
// Text, Bool, Int and List values. A nil Value is the absent literal.
//
// Key conventions:
//   - Keys with a leading uppercase letter are metadata (Type, Includes, ...)
//   - All other keys are data entries (enum choices, fields, rule categories)
//   - Table order is significant and is preserved by every decoder
package literal
