// Package config loads, normalizes, and validates streamclean configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the STREAMCLEAN_API_URL environment
// fallback for the service base URL. The Config type centralizes the server
// address, request and event timeouts, local state directories, and logging
// options so the CLI and the session wiring discover them in one pass.
package config
