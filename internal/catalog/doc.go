// Package catalog holds the directory browser state: the folder tree, the
// listing of the current directory, and the per-file stream selections the
// user edits before submitting a job.
//
// Selections are stored as stream ids in stream order and only ever contain
// ids present on the file. ToggleLanguage applies a bulk selection across
// every included file; files with IncludeFile false are never touched by bulk
// operations.
//
// Loads follow last-write-wins: concurrent LoadTree/LoadDirectory calls are
// not deduplicated and whichever response lands last is kept. Loading only
// tracks the most recent call.
package catalog
