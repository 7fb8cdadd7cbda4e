package transfer

import (
	"errors"
	"time"
)

// Recorder is a pre-sized, append-only timestamp log: one entry per
// completed operation, indexed 2*round + {0,1}, in completion order.
// Entries are never mutated or reordered after being written.
type Recorder struct {
	stamps []time.Time
}

// NewRecorder pre-sizes the log for capacity timestamps.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{stamps: make([]time.Time, 0, capacity)}
}

// Record appends a timestamp.
func (r *Recorder) Record(t time.Time) {
	r.stamps = append(r.stamps, t)
}

// Len returns the number of recorded timestamps.
func (r *Recorder) Len() int { return len(r.stamps) }

// Timestamps returns the recorded sequence in completion order.
func (r *Recorder) Timestamps() []time.Time { return r.stamps }

// Summary holds the statistics derived from a completed run. Pure
// functions of the recorded sequence; nothing here is cached state.
type Summary struct {
	Elapsed    time.Duration
	Bytes      uint64
	Rate       float64 // bytes per second
	MeanOneWay time.Duration
}

// Summarize derives the summary from the log: elapsed is the last
// timestamp minus the pre-loop start, total bytes is rounds*size*2
// (one buffer each way per round), and the mean one-way latency is
// elapsed over the operation count.
func (r *Recorder) Summarize(start time.Time, size int) (Summary, error) {
	n := len(r.stamps)
	if n == 0 {
		return Summary{}, errors.New("no completed operations recorded")
	}

	elapsed := r.stamps[n-1].Sub(start)
	bytes := uint64(n) * uint64(size)

	var rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(bytes) / secs
	}

	return Summary{
		Elapsed:    elapsed,
		Bytes:      bytes,
		Rate:       rate,
		MeanOneWay: elapsed / time.Duration(n),
	}, nil
}
