// Package main hosts the streamclean CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the same components a graphical front
// end would: it browses the server's media tree, applies stream and language
// selections through the catalog, submits jobs through the session, and
// follows progress over the push channels. Configuration resolution and
// logger setup live in the command context so subcommands only deal with
// presentation.
package main
