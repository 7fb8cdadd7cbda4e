package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitiatorStrategy(t *testing.T) {
	s := strategyFor(Initiator)
	for _, round := range []int{0, 1, 7} {
		hr := s.halfRounds(round)
		assert.Equal(t, halfRound{Send: true, Seq: uint64(2 * round)}, hr[0])
		assert.Equal(t, halfRound{Send: false, Seq: uint64(2*round + 1)}, hr[1])
	}
}

func TestResponderStrategy(t *testing.T) {
	s := strategyFor(Responder)
	for _, round := range []int{0, 1, 7} {
		hr := s.halfRounds(round)
		assert.Equal(t, halfRound{Send: false, Seq: uint64(2 * round)}, hr[0])
		assert.Equal(t, halfRound{Send: true, Seq: uint64(2*round + 1)}, hr[1])
	}
}

func TestStrategiesComplement(t *testing.T) {
	init := strategyFor(Initiator)
	resp := strategyFor(Responder)
	for round := 0; round < 4; round++ {
		ih, rh := init.halfRounds(round), resp.halfRounds(round)
		for i := range ih {
			assert.Equal(t, ih[i].Seq, rh[i].Seq, "both roles agree on the sequence")
			assert.NotEqual(t, ih[i].Send, rh[i].Send, "exactly one role sends each half-round")
		}
		assert.NotEqual(t, ih[0].Send, ih[1].Send, "each role alternates within a round")
	}
}
