package logging

import "strings"

// ProgressSampler thins out job progress logs. It emits when the file being
// processed changes or when the percent crosses into a new bucket.
type ProgressSampler struct {
	bucketSize float64
	lastFile   string
	lastBucket int
}

// NewProgressSampler returns a sampler with the given bucket width in percent
// (10 when bucketSize is not positive).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress update is worth a log line. A nil
// sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent float64, file string) bool {
	if s == nil {
		return true
	}
	emit := false
	file = strings.TrimSpace(file)
	if file != "" && file != s.lastFile {
		s.lastFile = file
		emit = true
	}
	bucket := int(percent / s.bucketSize)
	if percent >= 100 {
		bucket = int(100 / s.bucketSize)
	}
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset forgets previous updates, e.g. when a new job is tracked.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastFile = ""
	s.lastBucket = -1
}
