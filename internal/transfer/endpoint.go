// Package transfer drives the ping-pong rounds over an established
// connection: it alternates message direction every half-round, posts
// sends and receives, blocks on completions, and records one timestamp
// per completed operation.
package transfer

import (
	"fmt"
	"sync/atomic"
)

// Role is fixed for a process's entire run and determines the direction
// of the first half-round.
type Role int

const (
	// Initiator connects out to a peer and opens every round.
	Initiator Role = iota
	// Responder listens, pre-posts the first receive, and answers.
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return "unknown"
	}
}

// Endpoint is the transport surface the loop drives. All calls are
// blocking; Await* return only once exactly one successful completion
// has been observed, or fail. Buffer returns the registered transfer
// buffer that sends read from and receives land in.
type Endpoint interface {
	Buffer() []byte
	PostSend() error
	PostRecv() error
	AwaitSend() error
	AwaitRecv() error
}

// OpError identifies the transport primitive that failed mid-loop. The
// run is aborted; a partially completed run is not a result.
type OpError struct {
	Op  string // "send", "receive" or "getCompletion"
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("transfer aborted: %s failed: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

var fenceWord uint32

// fence orders prior buffer writes before the transport observes the
// buffer. Mandatory before every send; also used between busy-poll
// reads so the spin observes remote writes.
func fence() {
	atomic.AddUint32(&fenceWord, 1)
}
