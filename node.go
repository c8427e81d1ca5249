package xbar

// node.go holds the substrate every network device is built on: the
// link registries, the idle-output bookkeeping, and the in-flight
// transmission queues that the per-tick update cycle drains.

import (
	"container/heap"
	"fmt"
)

// Node is the interface satisfied by every device in a network:
// generators, receivers, and switches.  The first two methods identify
// the device; the rest are the hooks the substrate calls during the
// per-tick update cycle.
type Node interface {
	// DevID returns the unique integer id assigned at creation
	DevID() int

	// DevName returns the unique name of the device
	DevName() string

	// core exposes the substrate state embedded in the device
	core() *nodeCore

	// receive handles a message whose destination is this device
	receive(t int, msg *Message)

	// forward queues a message that arrived from 'from' and must
	// travel onward through this device
	forward(t int, from Node, msg *Message)

	// onTick is the device's own update hook, run after arrivals are
	// drained and before outbound sends
	onTick(t int)

	// send gives the device the chance to begin transmissions
	send(t int)
}

// A transitEntry records one in-flight transmission.  On the sender it
// marks when the output port towards 'to' frees up; on the receiver it
// marks when msg becomes visible to the tick handler.
type transitEntry struct {
	tick int      // completion tick
	seq  int      // insertion counter, breaks completion-tick ties
	from Node     // transmitting node
	to   Node     // receiving node
	msg  *Message // nil on the sender-side completion entry
}

// transitHeap and its methods implement a min-priority heap on the
// completion ticks of in-flight transmissions, with ties resolved in
// insertion order so delivery is stable
type transitHeap struct {
	entries []*transitEntry
	nxtSeq  int
}

func (h *transitHeap) Len() int { return len(h.entries) }

func (h *transitHeap) Less(i, j int) bool {
	if h.entries[i].tick != h.entries[j].tick {
		return h.entries[i].tick < h.entries[j].tick
	}
	return h.entries[i].seq < h.entries[j].seq
}

func (h *transitHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

func (h *transitHeap) Push(x any) {
	h.entries = append(h.entries, x.(*transitEntry))
}

func (h *transitHeap) Pop() any {
	old := h.entries
	n := len(old)
	x := old[n-1]
	h.entries = old[0 : n-1]
	return x
}

// add stamps the entry with the next sequence number and pushes it
func (h *transitHeap) add(e *transitEntry) {
	e.seq = h.nxtSeq
	h.nxtSeq++
	heap.Push(h, e)
}

// peek returns the earliest entry without removing it, or nil
func (h *transitHeap) peek() *transitEntry {
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[0]
}

// The nodeCore struct holds the substrate state shared by every
// device type
type nodeCore struct {
	id    int
	name  string
	owner Node // the device this core is embedded in

	inputLinks  map[Node]*Link // links that deliver to this device, by upstream node
	outputLinks map[Node]*Link // links this device transmits over, by downstream node
	outputOrder []Node         // downstream nodes in registration order

	idleOutputs map[Node]bool // output ports able to begin a transmission
	arrivals    *transitHeap  // inbound messages in flight
	completions *transitHeap  // outbound transmissions in flight
}

// initNodeCore wires the substrate into its owning device and assigns
// the device id
func (nc *nodeCore) initNodeCore(name string, owner Node) {
	nc.id = nxtID()
	nc.name = name
	nc.owner = owner
	nc.inputLinks = make(map[Node]*Link)
	nc.outputLinks = make(map[Node]*Link)
	nc.outputOrder = make([]Node, 0)
	nc.idleOutputs = make(map[Node]bool)
	nc.arrivals = new(transitHeap)
	nc.completions = new(transitHeap)
}

func (nc *nodeCore) core() *nodeCore { return nc }

// DevID returns the unique integer id assigned at creation
func (nc *nodeCore) DevID() int { return nc.id }

// DevName returns the unique name of the device
func (nc *nodeCore) DevName() string { return nc.name }

// addInputLink registers a link whose sink is this device
func (nc *nodeCore) addInputLink(t int, link *Link) {
	if link.Sink() != nc.owner {
		panic(fmt.Errorf("%s is not the sink of the registered input link", nc.name))
	}
	if !link.CanTransmit(t) {
		panic("input link is busy at registration")
	}
	nc.inputLinks[link.Source()] = link
}

// addOutputLink registers a link whose source is this device and
// marks its port idle
func (nc *nodeCore) addOutputLink(t int, link *Link) {
	if link.Source() != nc.owner {
		panic(fmt.Errorf("%s is not the source of the registered output link", nc.name))
	}
	if !link.CanTransmit(t) {
		panic("output link is busy at registration")
	}
	_, present := nc.outputLinks[link.Sink()]
	if !present {
		nc.outputOrder = append(nc.outputOrder, link.Sink())
	}
	nc.outputLinks[link.Sink()] = link
	nc.idleOutputs[link.Sink()] = true
}

// outputLink returns the link towards the given downstream node, or
// nil if none is registered
func (nc *nodeCore) outputLink(sink Node) *Link {
	return nc.outputLinks[sink]
}

// isIdle reports whether the output port towards sink can begin a
// transmission this tick
func (nc *nodeCore) isIdle(sink Node) bool {
	return nc.idleOutputs[sink]
}

// idleOutputPorts returns the currently idle output ports in link
// registration order, so scans over them are deterministic
func (nc *nodeCore) idleOutputPorts() []Node {
	idle := make([]Node, 0, len(nc.idleOutputs))
	for _, sink := range nc.outputOrder {
		if nc.idleOutputs[sink] {
			idle = append(idle, sink)
		}
	}
	return idle
}

// update runs the device through one time slot.  The phase order is
// fixed: output ports whose transmissions have completed return to the
// idle set, then arrivals whose completion tick has passed are
// drained, then the device's own update hook runs, and finally the
// device may begin new transmissions.  Draining arrivals before the
// send phase of the same tick is what keeps a message invisible until
// the tick after its transmission completes, regardless of the order
// nodes are visited in.
func (nc *nodeCore) update(t int) {
	for nc.completions.peek() != nil && nc.completions.peek().tick <= t {
		e := heap.Pop(nc.completions).(*transitEntry)
		nc.idleOutputs[e.to] = true
	}

	for nc.arrivals.peek() != nil && nc.arrivals.peek().tick <= t {
		e := heap.Pop(nc.arrivals).(*transitEntry)
		if e.msg.Destination() == nc.owner {
			nc.owner.receive(t, e.msg)
		} else {
			nc.owner.forward(t, e.from, e.msg)
		}
	}

	nc.owner.onTick(t)

	nc.owner.send(t)
}

// transmitToNode begins moving msg towards sink at tick t.  The output
// port leaves the idle set, the link is occupied, a completion entry
// is queued so the port returns to the idle set when the transmission
// ends, and an arrival entry is posted on the sink.  A sink that is
// not an output neighbor is a routing error; a busy link or
// non-idle port is a contention error.  Both are fatal.
func (nc *nodeCore) transmitToNode(t int, sink Node, msg *Message) {
	link := nc.outputLinks[sink]
	if link == nil {
		panic(fmt.Errorf("%s has no output link towards %s", nc.name, sink.DevName()))
	}
	if !link.CanTransmit(t) || !nc.idleOutputs[sink] {
		panic(fmt.Errorf("%s cannot transmit to %s at tick %d, link is busy", nc.name, sink.DevName(), t))
	}

	delete(nc.idleOutputs, sink)
	link.Transmit(t, msg)

	completes := t + link.TransmissionRate()
	nc.completions.add(&transitEntry{tick: completes, from: nc.owner, to: sink})

	// in a concurrent rendition posting would synchronize on the
	// sink's arrival queue; the single-threaded engine makes it a
	// plain mutation
	sink.core().arrivals.add(&transitEntry{tick: completes, from: nc.owner, to: sink, msg: msg})
}
