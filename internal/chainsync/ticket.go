package chainsync

import (
	crand "crypto/rand"
	"encoding/binary"

	"github.com/ecsync/ecsync/types"
)

// ticketMix is the fixed-point multiplicative mix applied to every ticket.
const ticketMix = 0x9e3779b97f4a7c15

// ticketManager issues and verifies the tickets that bind responses to
// the requests that solicited them. A ticket is derived from the request
// id and a secret, so a peer cannot inject a block we never asked for.
//
// Secrets rotate every rotationPeriod ticks. Verification accepts the
// previous secret as well, giving in-flight responses a one-rotation
// grace window.
type ticketManager struct {
	current        uint64
	previous       uint64
	hasPrevious    bool
	ticksSince     uint64
	rotationPeriod uint64
}

func newTicketManager(rotationPeriod uint64) *ticketManager {
	return &ticketManager{
		current:        randomSecret(),
		rotationPeriod: rotationPeriod,
	}
}

// advance counts one tick and rotates the secret when the rotation
// period has elapsed.
func (tm *ticketManager) advance() {
	tm.ticksSince++
	if tm.ticksSince < tm.rotationPeriod {
		return
	}
	tm.previous = tm.current
	tm.hasPrevious = true
	tm.current = randomSecret()
	tm.ticksSince = 0
}

// issue computes the ticket for a request id under the current secret.
func (tm *ticketManager) issue(requestID uint64) types.Ticket {
	return mixTicket(requestID, tm.current)
}

// verify reports whether a response ticket matches the expected value for
// the request id under the current or previous secret.
func (tm *ticketManager) verify(requestID uint64, ticket types.Ticket) bool {
	if ticket == mixTicket(requestID, tm.current) {
		return true
	}
	return tm.hasPrevious && ticket == mixTicket(requestID, tm.previous)
}

func mixTicket(requestID, secret uint64) types.Ticket {
	return types.Ticket((requestID + secret) * ticketMix)
}

func randomSecret() uint64 {
	var bz [8]byte
	if _, err := crand.Read(bz[:]); err != nil {
		panic("failed to read entropy for ticket secret: " + err.Error())
	}
	return binary.BigEndian.Uint64(bz[:])
}
