package rdma

// State tracks connection setup progress. The responder path passes
// through Listening and Accepted, the initiator path through
// Connecting; Failed is reachable from every state.
type State int

const (
	StateUninitialized State = iota
	StateAddressResolved
	StateEndpointCreated
	StateListening
	StateAccepted
	StateConnecting
	StateConnected
	StateBufferBound
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAddressResolved:
		return "addressResolved"
	case StateEndpointCreated:
		return "endpointCreated"
	case StateListening:
		return "listening"
	case StateAccepted:
		return "accepted"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBufferBound:
		return "bufferBound"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
