package client

import "fmt"

// Op names a remote operation.
type Op string

const (
	OpFetchTree    Op = "fetch_tree"
	OpFetchList    Op = "fetch_list"
	OpStartProcess Op = "start_process"
	OpFetchJob     Op = "fetch_job"
	OpCancelJob    Op = "cancel_job"
)

var opMessages = map[Op]string{
	OpFetchTree:    "Failed to fetch tree",
	OpFetchList:    "Failed to fetch list",
	OpStartProcess: "Failed to start process",
	OpFetchJob:     "Failed to fetch job",
	OpCancelJob:    "Failed to cancel job",
}

// Message returns the user-facing failure message for op.
func (op Op) Message() string {
	if msg, ok := opMessages[op]; ok {
		return msg
	}
	return fmt.Sprintf("Failed to %s", op)
}

// FetchError is returned by every client operation. Error returns only the
// fixed message so it can be shown to users verbatim.
type FetchError struct {
	Op         Op
	StatusCode int
	Err        error
}

func newFetchError(op Op, status int, err error) *FetchError {
	return &FetchError{Op: op, StatusCode: status, Err: err}
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Op.Message()
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Detail describes the underlying cause for logs.
func (e *FetchError) Detail() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return string(e.Op)
}
