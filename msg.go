package xbar

import "fmt"

// Message is the unit of traffic carried through the network.  A
// message remembers the node that generated it, the node it is bound
// for, and the tick on which it was created; all three are fixed at
// construction.
type Message struct {
	source      Node
	destination Node
	timestamp   int
}

// CreateMessage is a constructor.  The source and destination must be
// actual nodes and the creation tick non-negative.
func CreateMessage(source, destination Node, timestamp int) *Message {
	if source == nil {
		panic("message source is nil")
	}
	if destination == nil {
		panic("message destination is nil")
	}
	if timestamp < 0 {
		panic(fmt.Errorf("message timestamp %d is negative", timestamp))
	}
	msg := new(Message)
	msg.source = source
	msg.destination = destination
	msg.timestamp = timestamp
	return msg
}

// Source returns the node that generated this message
func (msg *Message) Source() Node {
	return msg.source
}

// Destination returns the node this message is bound for
func (msg *Message) Destination() Node {
	return msg.destination
}

// Timestamp returns the tick on which this message was created
func (msg *Message) Timestamp() int {
	return msg.timestamp
}

// Age returns how many ticks the message has been in the network as
// of tick t
func (msg *Message) Age(t int) int {
	return t - msg.timestamp
}
