// Package output renders stockgate-cli results as tables, JSON or YAML.
//
// Table output derives columns from json struct tags. Fields tagged
// `table:"wide"` only appear with --wide, and `table:"-"` hides a field.
package output
