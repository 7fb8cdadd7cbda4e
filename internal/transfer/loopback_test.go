package transfer

import (
	"errors"
	"fmt"
)

// loopbackEndpoint connects two in-process endpoints with channels,
// standing in for the transport so the loop can run end-to-end without
// hardware. Each endpoint is driven by exactly one goroutine, mirroring
// the one-process-one-thread model of a real run.
type loopbackEndpoint struct {
	buf        []byte
	in         chan []byte
	out        chan []byte
	recvPosted int
	trace      []string

	postSendErr  error
	awaitSendErr error
	postRecvErr  error
	awaitRecvErr error
}

// newLoopbackPair returns a connected initiator/responder endpoint
// pair. The responder side starts with one receive posted, exactly as
// connection setup leaves a real responder.
func newLoopbackPair(size int) (initiator, responder *loopbackEndpoint) {
	iToR := make(chan []byte, 1)
	rToI := make(chan []byte, 1)
	initiator = &loopbackEndpoint{buf: make([]byte, size), in: rToI, out: iToR}
	responder = &loopbackEndpoint{buf: make([]byte, size), in: iToR, out: rToI, recvPosted: 1}
	return initiator, responder
}

func (e *loopbackEndpoint) Buffer() []byte { return e.buf }

func (e *loopbackEndpoint) PostSend() error {
	e.trace = append(e.trace, "post_send")
	if e.postSendErr != nil {
		return e.postSendErr
	}
	msg := make([]byte, len(e.buf))
	copy(msg, e.buf)
	e.out <- msg
	return nil
}

func (e *loopbackEndpoint) AwaitSend() error {
	return e.awaitSendErr
}

func (e *loopbackEndpoint) PostRecv() error {
	e.trace = append(e.trace, "post_recv")
	if e.postRecvErr != nil {
		return e.postRecvErr
	}
	e.recvPosted++
	return nil
}

func (e *loopbackEndpoint) AwaitRecv() error {
	if e.awaitRecvErr != nil {
		return e.awaitRecvErr
	}
	if e.recvPosted == 0 {
		return errors.New("receive completion with no receive posted")
	}
	msg, ok := <-e.in
	if !ok {
		return fmt.Errorf("peer closed")
	}
	e.recvPosted--
	copy(e.buf, msg)
	return nil
}
