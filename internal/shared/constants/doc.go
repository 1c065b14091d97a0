// Package constants centralizes scan defaults shared across the CLI and API.
//
// Port lists, probe timing and collaborator timeouts live here so the checker,
// the assessment service and the command layer agree on the same bounds
// without importing each other.
package constants
