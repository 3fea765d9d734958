// Package history keeps a local SQLite record of jobs submitted from this
// machine so finished jobs can still be listed after the server forgets them.
//
// The database lives under the configured state directory. Schema migrations
// are embedded and applied on Open while holding an advisory file lock, so
// several CLI processes can start at once.
package history
