package transfer

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Options selects the optional consistency actions performed around
// each half-round.
type Options struct {
	// PatternFill overwrites the buffer with the half-round sequence
	// byte before each send.
	PatternFill bool
	// BusyPoll spins on the buffer's first byte until it matches the
	// expected pattern byte before polling the receive completion. A
	// software data-visibility proxy; the completion stays the
	// authoritative signal.
	BusyPoll bool
	// Mirror, when non-nil, is the device-backed region shadowing the
	// transfer buffer: staged into the buffer before each send,
	// copied out of it after each receive completion.
	Mirror []byte
}

// Loop runs the configured number of rounds over an endpoint. Each
// round is two half-rounds; across one round both roles send once and
// receive once.
type Loop struct {
	ep       Endpoint
	role     Role
	strategy roleStrategy
	rounds   int
	opts     Options
	rec      *Recorder
	start    time.Time
}

// NewLoop prepares a loop for rounds iterations. The recorder is
// pre-sized for the 2*rounds timestamps a full run produces.
func NewLoop(ep Endpoint, role Role, rounds int, opts Options) *Loop {
	return &Loop{
		ep:       ep,
		role:     role,
		strategy: strategyFor(role),
		rounds:   rounds,
		opts:     opts,
		rec:      NewRecorder(2 * rounds),
	}
}

// Recorder exposes the timestamp log for inspection after a run.
func (l *Loop) Recorder() *Recorder { return l.rec }

// Run executes all rounds. Any post or completion failure aborts the
// run immediately with an OpError naming the failed primitive; there is
// no partial-result reporting.
func (l *Loop) Run() error {
	l.start = time.Now()
	log.Info().
		Stringer("role", l.role).
		Int("rounds", l.rounds).
		Int("size", len(l.ep.Buffer())).
		Msg("Starting transfer loop")

	for round := 0; round < l.rounds; round++ {
		for _, hr := range l.strategy.halfRounds(round) {
			var err error
			if hr.Send {
				err = l.sendStep(hr.Seq)
			} else {
				err = l.recvStep(hr.Seq)
			}
			if err != nil {
				log.Error().Err(err).
					Int("round", round).
					Uint64("seq", hr.Seq).
					Msg("Transfer loop aborted")
				return err
			}
		}
		log.Debug().Int("round", round).Msg("Round complete")
	}
	return nil
}

// sendStep performs the sending side of a half-round: optional mirror
// staging and pattern fill, fence, post, completion, timestamp, and the
// pipelined receive for the peer's next message.
func (l *Loop) sendStep(seq uint64) error {
	buf := l.ep.Buffer()
	if l.opts.Mirror != nil {
		copy(buf, l.opts.Mirror)
	}
	if l.opts.PatternFill {
		pattern := byte(seq)
		for i := range buf {
			buf[i] = pattern
		}
	}
	fence()

	if err := l.ep.PostSend(); err != nil {
		return &OpError{Op: "send", Err: err}
	}
	if err := l.ep.AwaitSend(); err != nil {
		return &OpError{Op: "getCompletion", Err: err}
	}
	l.rec.Record(time.Now())

	// Post the next receive now so the peer's upcoming send never
	// waits for a receive to appear.
	if err := l.ep.PostRecv(); err != nil {
		return &OpError{Op: "receive", Err: err}
	}
	return nil
}

// recvStep performs the receiving side of a half-round. The matching
// receive was posted earlier: during connection setup for the very
// first one, at the end of the previous send step for all others.
func (l *Loop) recvStep(seq uint64) error {
	buf := l.ep.Buffer()
	if l.opts.BusyPoll {
		pattern := byte(seq)
		for buf[0] != pattern {
			fence()
		}
	}

	if err := l.ep.AwaitRecv(); err != nil {
		return &OpError{Op: "getCompletion", Err: err}
	}
	l.rec.Record(time.Now())

	if l.opts.Mirror != nil {
		copy(l.opts.Mirror, buf)
	}
	return nil
}

// Summary derives the run statistics from the recorded timestamps and
// the pre-loop start time.
func (l *Loop) Summary() (Summary, error) {
	return l.rec.Summarize(l.start, len(l.ep.Buffer()))
}
