package transfer

// halfRound is one unidirectional exchange within a round: the side
// with Send set posts the message, the other side consumes it. Seq is
// the half-round sequence number, strictly increasing across the run,
// and doubles as the pattern byte (mod 256).
type halfRound struct {
	Send bool
	Seq  uint64
}

// roleStrategy yields a round's two half-rounds in issue order. Both
// concrete strategies return one send and one receive per round, which
// makes the alternation invariant hold by construction: a role can
// never issue two consecutive sends or receives within a round.
type roleStrategy interface {
	halfRounds(round int) [2]halfRound
}

// initiatorStrategy opens each round. The responder's receive for the
// opening message is already posted: the first one during connection
// setup, every later one at the end of the responder's send step.
type initiatorStrategy struct{}

func (initiatorStrategy) halfRounds(round int) [2]halfRound {
	return [2]halfRound{
		{Send: true, Seq: uint64(2 * round)},
		{Send: false, Seq: uint64(2*round + 1)},
	}
}

// responderStrategy answers each round.
type responderStrategy struct{}

func (responderStrategy) halfRounds(round int) [2]halfRound {
	return [2]halfRound{
		{Send: false, Seq: uint64(2 * round)},
		{Send: true, Seq: uint64(2*round + 1)},
	}
}

func strategyFor(role Role) roleStrategy {
	if role == Responder {
		return responderStrategy{}
	}
	return initiatorStrategy{}
}
