// Package jobtrack follows the one job the user is watching.
//
// StartJob submits a job and opens its push channel; every "status" event
// overwrites the tracked status, progress, and current file. The tracker owns
// at most one channel: ConnectEvents closes the previous channel before
// opening the next, and terminal statuses close the channel immediately.
// Events that arrive on a channel the tracker has since replaced or closed are
// dropped.
//
// A transport failure tears the channel down but keeps the last known status
// visible; reconnecting is left to the caller.
package jobtrack
