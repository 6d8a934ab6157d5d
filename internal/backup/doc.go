// Package backup exports the document as a portable envelope and imports
// foreign envelopes.
//
// Import is two-phase. Validate parses, version-checks, migrates and
// schema-checks a candidate and returns a preview; it never touches the
// current document. ImportReplace and ImportMerge then build the next
// document from a validated candidate. Persisting it is the caller's job.
package backup
