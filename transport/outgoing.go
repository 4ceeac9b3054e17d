package transport

import (
	"fmt"
	"time"
)

// outgoingPacket records everything about a packet this endpoint sent, kept
// around until it is acknowledged or declared lost so its frames can be
// retransmitted by information (not by packet, per RFC 9000 §13.3).
type outgoingPacket struct {
	packetNumber uint64
	timeSent     time.Time
	frames       []frame
	size         uint64
	ackEliciting bool
	inFlight     bool
}

func newOutgoingPacket(pn uint64, now time.Time) *outgoingPacket {
	return &outgoingPacket{packetNumber: pn, timeSent: now}
}

func (op *outgoingPacket) addFrame(f frame) {
	op.frames = append(op.frames, f)
	switch f.(type) {
	case *paddingFrame, *ackFrame:
		// Neither is ack-eliciting.
	default:
		op.ackEliciting = true
		op.inFlight = true
	}
}

func (op *outgoingPacket) String() string {
	return fmt.Sprintf("pn=%d size=%d frames=%d", op.packetNumber, op.size, len(op.frames))
}
