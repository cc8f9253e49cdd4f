package session

import "github.com/duskforge/channelcore/internal/codec"

// Kind classifies a queued inbound session message.
type Kind int

const (
	MsgPacket Kind = iota
	MsgEncrypted
	MsgTimeout
	MsgDisconnect
)

// Message is one entry on a session's inbound queue. Packet is only
// populated for MsgPacket.
type Message struct {
	Kind   Kind
	Packet codec.Packet
}

// WaitStatus is the outcome of WaitForMessage.
type WaitStatus int

const (
	WaitSuccess WaitStatus = iota
	WaitFailure
	WaitTimeout
)

// Filter inspects a dequeued message. done=false means keep waiting;
// done=true with the accompanying status ends the wait.
type Filter func(Message) (status WaitStatus, done bool)
