package jobtrack

// SubmissionError reports a rejected job submission. Its message is the
// underlying failure's message, unchanged.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	if e == nil || e.Err == nil {
		return "submission failed"
	}
	return e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
