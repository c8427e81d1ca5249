package xbar

// scheduler.go holds the scheduler contract, the bookkeeping shared by
// every concrete scheduler, and the program-execution path the
// VOQ-based matchers funnel through.

import (
	"fmt"

	"github.com/iti/rngstream"
)

// Scheduler computes, for every switch under its domain and every
// time slot, which queued messages leave on which output ports.  One
// scheduler instance serves all the switches of a network; the
// per-switch queueing state lives in tags the scheduler owns, keyed by
// device id, so devices carry no scheduler internals.
type Scheduler interface {
	// AddNode places a device under this scheduler's domain,
	// creating its tag and decision structure
	AddNode(node Node)

	// AddMessageToSchedule hands the scheduler a message that
	// arrived at node from 'from' at tick t and must be forwarded.
	// A node that generated the message passes itself as 'from'.
	AddMessageToSchedule(t int, from Node, node Node, msg *Message)

	// ScheduleNode computes and executes one time slot's worth of
	// transmissions out of the given node
	ScheduleNode(t int, node Node)

	// NextHop returns the node the message should be forwarded to
	// from the given node
	NextHop(node Node, msg *Message) Node

	// decisionStructure exposes the node's forwarding state to the
	// network flow bookkeeping
	decisionStructure(node Node) *DecisionStructure

	// bindRNG points the scheduler at the random stream of the
	// network it serves.  Every random draw a policy makes comes
	// from this stream; policies never construct their own.
	bindRNG(rng *rngstream.RngStream)
}

// The schedulerCore struct holds the domain bookkeeping common to all
// schedulers
type schedulerCore struct {
	nodes     map[int]Node
	decisions map[int]*DecisionStructure
	rng       *rngstream.RngStream
}

// initSchedulerCore readies the domain maps
func (sc *schedulerCore) initSchedulerCore() {
	sc.nodes = make(map[int]Node)
	sc.decisions = make(map[int]*DecisionStructure)
}

// register admits a node to the domain and creates its decision
// structure
func (sc *schedulerCore) register(node Node) {
	sc.nodes[node.DevID()] = node
	sc.decisions[node.DevID()] = CreateDecisionStructure()
}

func (sc *schedulerCore) bindRNG(rng *rngstream.RngStream) {
	sc.rng = rng
}

// decisionStructure returns the forwarding state of a node under this
// scheduler's domain
func (sc *schedulerCore) decisionStructure(node Node) *DecisionStructure {
	ds, present := sc.decisions[node.DevID()]
	if !present {
		panic(fmt.Errorf("%s is not under this scheduler's domain", node.DevName()))
	}
	return ds
}

// NextHop returns the node the message should be forwarded to from
// the given node
func (sc *schedulerCore) NextHop(node Node, msg *Message) Node {
	return sc.decisionStructure(node).Decision(msg.Source(), msg.Destination())
}

// randomStream returns the network random stream the scheduler was
// bound to
func (sc *schedulerCore) randomStream() *rngstream.RngStream {
	if sc.rng == nil {
		panic("scheduler has no random stream; was it attached to a network?")
	}
	return sc.rng
}

// matchPlanner is the capability a VOQ-based policy supplies: given
// the pending queues and forwarding state of one switch, choose the
// set of edges to schedule this time slot.  A planner only plans;
// dequeueing and transmission stay in the shared execution path.
type matchPlanner interface {
	plan(t int, node Node, tag *voqTable, ds *DecisionStructure, rng *rngstream.RngStream) []Edge
}

// The voqScheduler struct is the shared machinery of the VOQ-based
// schedulers.  It owns the per-switch queue tables and runs the
// programs its planner produces.
type voqScheduler struct {
	schedulerCore
	tags    map[int]*voqTable
	planner matchPlanner
}

// initVOQScheduler wires the planner in.  The concrete scheduler
// passes itself.
func (vs *voqScheduler) initVOQScheduler(planner matchPlanner) {
	vs.initSchedulerCore()
	vs.tags = make(map[int]*voqTable)
	vs.planner = planner
}

// AddNode places a device under this scheduler's domain, creating its
// queue table and decision structure
func (vs *voqScheduler) AddNode(node Node) {
	vs.register(node)
	vs.tags[node.DevID()] = createVOQTable(vs.planner.(Scheduler))
}

// tag returns the queue table of a node under this scheduler's domain
func (vs *voqScheduler) tag(node Node) *voqTable {
	tag, present := vs.tags[node.DevID()]
	if !present {
		panic(fmt.Errorf("%s is not under this scheduler's domain", node.DevName()))
	}
	return tag
}

// AddMessageToSchedule appends the message to the queue it contends
// on, keyed by the neighbor it arrived from and the next hop its flow
// is routed towards
func (vs *voqScheduler) AddMessageToSchedule(t int, from Node, node Node, msg *Message) {
	vs.tag(node).enqueue(from, node, msg)
}

// ScheduleNode asks the planner for this slot's matching and executes
// it: every scheduled edge dequeues its head message and begins
// transmission on its output port.  A program that names the same
// input twice is a policy bug and halts the run; a duplicated output
// trips the contention check inside transmitToNode.
func (vs *voqScheduler) ScheduleNode(t int, node Node) {
	tag := vs.tag(node)
	program := vs.planner.plan(t, node, tag, vs.decisionStructure(node), vs.randomStream())

	usedInputs := make(map[Node]bool)
	for _, edge := range program {
		if usedInputs[edge.In] {
			panic(fmt.Errorf("scheduling violation at %s: input %s scheduled twice",
				node.DevName(), edge.In.DevName()))
		}
		usedInputs[edge.In] = true

		msg := tag.pop(edge)
		node.core().transmitToNode(t, edge.Out, msg)
	}
}
