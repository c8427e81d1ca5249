package xbar

// traffic.go holds the devices a model is built from: switches that
// defer all forwarding decisions to their scheduler, generators that
// emit flow traffic, and receivers that record what reaches them.

import "fmt"

// The deferredCore struct extends the node substrate with
// scheduler-deferred forwarding: messages in transit are handed to the
// scheduler's queues, and the send phase asks the scheduler to match
// them to output ports
type deferredCore struct {
	nodeCore
	sched Scheduler
}

// initDeferredCore wires the substrate and remembers the scheduler
func (dc *deferredCore) initDeferredCore(name string, owner Node, sched Scheduler) {
	dc.initNodeCore(name, owner)
	dc.sched = sched
}

func (dc *deferredCore) forward(t int, from Node, msg *Message) {
	dc.sched.AddMessageToSchedule(t, from, dc.owner, msg)
}

func (dc *deferredCore) send(t int) {
	dc.sched.ScheduleNode(t, dc.owner)
}

// SwitchNode is a pure crossbar: it generates nothing, terminates
// nothing, and moves whatever its scheduler matches
type SwitchNode struct {
	deferredCore
}

// CreateSwitch is a constructor
func CreateSwitch(name string, sched Scheduler) *SwitchNode {
	sw := new(SwitchNode)
	sw.initDeferredCore(name, sw, sched)
	return sw
}

// receive faults: a message can terminate at a switch only through a
// routing misconfiguration
func (sw *SwitchNode) receive(t int, msg *Message) {
	panic(fmt.Errorf("switch %s received a message destined for it", sw.DevName()))
}

func (sw *SwitchNode) onTick(t int) {}

// GeneratorNode emits the traffic of the flows rooted at it.  At the
// start of each frame the generator fills a bucket with one token per
// provisioned message; on a tick with timeLeft slots remaining in the
// frame and msgsLeft tokens in the bucket it emits with probability
// msgsLeft/timeLeft, drawing the flow in proportion to its remaining
// tokens.  Spreading the draws this way delivers each flow its
// required capacity per frame in expectation without bursting.
type GeneratorNode struct {
	deferredCore
	net *Network

	// this frame's remaining tokens, one weighted entry per flow
	bucket *WeightedSet[*Flow]

	// messages emitted so far
	emitted int
}

// CreateGenerator is a constructor.  The generator learns its network
// when the network registers it.
func CreateGenerator(name string, sched Scheduler) *GeneratorNode {
	gen := new(GeneratorNode)
	gen.initDeferredCore(name, gen, sched)
	return gen
}

// receive faults: flows never terminate at a generator
func (gen *GeneratorNode) receive(t int, msg *Message) {
	panic(fmt.Errorf("generator %s received a message", gen.DevName()))
}

func (gen *GeneratorNode) onTick(t int) {
	if gen.net == nil {
		panic(fmt.Errorf("generator %s is not registered with a network", gen.DevName()))
	}

	timeLeft := FrameSize - (t % FrameSize)

	// a fresh bucket on every frame boundary
	if t%FrameSize == 0 {
		flows := gen.net.flowsFromNode.Get(gen)
		if flows == nil {
			gen.bucket = nil
		} else {
			gen.bucket = flows.Clone()
		}
	}

	if gen.bucket == nil {
		return
	}

	msgsLeft := int(gen.bucket.Weight())
	if msgsLeft <= 0 {
		return
	}

	roll := gen.net.rng.RandInt(0, timeLeft-1)
	if roll >= msgsLeft {
		return
	}

	flow, ok := gen.bucket.PickRandom(gen.net.rng)
	if !ok {
		return
	}

	msg := CreateMessage(flow.Source(), flow.Sink(), t)
	gen.bucket.Add(flow, gen.bucket.WeightOf(flow)-1.0)
	gen.emitted++
	gen.forward(t, gen, msg)
}

// Emitted returns the number of messages this generator has created
func (gen *GeneratorNode) Emitted() int {
	return gen.emitted
}

// A messageRecord remembers one delivered message for the run report
type messageRecord struct {
	age     int
	arrival int
	source  Node
}

// ReceiverNode terminates flows and records the age and arrival tick
// of everything delivered to it
type ReceiverNode struct {
	deferredCore
	records []messageRecord
}

// CreateReceiver is a constructor
func CreateReceiver(name string, sched Scheduler) *ReceiverNode {
	rcv := new(ReceiverNode)
	rcv.initDeferredCore(name, rcv, sched)
	rcv.records = make([]messageRecord, 0)
	return rcv
}

func (rcv *ReceiverNode) receive(t int, msg *Message) {
	rcv.records = append(rcv.records, messageRecord{
		age:     msg.Age(t),
		arrival: t,
		source:  msg.Source(),
	})
}

func (rcv *ReceiverNode) onTick(t int) {}

// Received returns the number of messages delivered so far
func (rcv *ReceiverNode) Received() int {
	return len(rcv.records)
}
