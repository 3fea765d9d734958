// Package notifications publishes job outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never branch on whether notifications are enabled. Only terminal
// job states produce a message; failures are sent with high priority.
package notifications
