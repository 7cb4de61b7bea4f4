// Package core provides the column comparison at the heart of colcompare.
//
// It has no knowledge of HTTP or configuration: callers hand it two
// resolved workbooks (paths or streams) and a column name, and receive a
// Result.
//
// # Pipeline
//
// A comparison runs linearly, with no retries:
//
//  1. Load: each Source is decoded by a sheet.Loader. A failure yields a
//     *sheet.LoadError and nothing else runs.
//  2. Validate: the column must exist in the first source, then in the
//     second. Only the first miss is reported, as a *ColumnNotFoundError.
//  3. Normalize: null cells are dropped, the rest are trimmed and collapsed
//     into a NormalizedSet.
//  4. Diff: set differences in both directions, sorted by code point.
//
// Anything else, including panics from decoders, becomes an
// *UnexpectedError whose full detail is logged.
//
// # Error Handling
//
// MapError turns technical errors into a UserMessage with a support code
// for the JSON API. See error_messages.go for the code table.
//
// # Concurrency
//
// A Comparator is stateless and safe for concurrent use. Limiter caps how
// many comparisons a server runs at once.
package core
