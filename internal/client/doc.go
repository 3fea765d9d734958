// Package client talks to the processing service's REST endpoints.
//
// Every operation fails with a *FetchError whose message is a fixed,
// user-facing string per operation ("Failed to fetch tree", ...). The
// underlying cause (transport error, HTTP status, or a payload that does not
// match the expected shape) is kept for errors.As/errors.Unwrap and logs.
package client
