// Package output renders tokvault-cli results as a table, JSON or YAML.
//
// Tables are derived from struct fields and their json tags. Identities,
// enums and other values with a text form print as that text.
package output
