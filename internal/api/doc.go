// Package api defines the wire-format types exchanged with the processing
// service: the folder tree, directory listings with probed streams, the job
// submission payload, job snapshots, and the active-job roster.
//
// # Key Types
//
// DirectoryNode: recursive folder tree returned by GET /tree.
//
// DirectoryContent/MediaFile/Stream: listing returned by GET /list.
//
// ProcessRequest/ProcessResponse: job submission body and its {jobId} reply.
//
// JobStatus: job snapshot returned by GET /jobs/<id> and pushed as "status"
// events on the per-job channel.
//
// ActiveJob: roster entry pushed as "jobs_list" events.
//
// # Design Notes
//
// Server-shaped fields use snake_case JSON tags; jobId is the only
// client-invented camelCase field. Every response type exposes Validate so the
// client can reject payloads that do not match the closed shape instead of
// tolerating missing fields. Nullable server fields (current_file, first_file)
// are pointers.
package api
