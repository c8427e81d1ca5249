package xbar

// network.go assembles devices, links, and flows into a runnable
// model.  The network owns the random stream every policy and
// generator draws from, and drives the per-tick update cycle off an
// event manager: a single recurring event visits every node, in
// registration order, once per tick.

import (
	"fmt"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
)

// terminals keys the flow table by the endpoints of a flow
type terminals struct {
	source Node
	sink   Node
}

// Network is a set of nodes, the links between them, and the flows
// provisioned across them, scheduled by a single scheduler instance
type Network struct {
	name  string
	sched Scheduler

	// every device in the network, in registration order.  The tick
	// handler visits nodes in exactly this order, which together with
	// the seeded random stream makes a run reproducible.
	nodes []Node

	// flows keyed by their (source, sink) endpoints
	flows map[terminals]*Flow

	// generator -> its flows, weighted by required capacity.  The
	// generators draw their per-frame buckets from this map.
	flowsFromNode *WeightedMultiMap[Node, *Flow]

	generators []*GeneratorNode
	receivers  []*ReceiverNode

	rng    *rngstream.RngStream
	evtMgr *evtm.EventManager

	// ticks simulated by previous Run calls
	elapsed int

	// first tick past the end of the current Run call
	endTick int
}

// CreateNetwork is a constructor.  The network draws a random stream
// at construction and hands it to its scheduler, so every random
// decision of a run comes from the one stream.
func CreateNetwork(name string, sched Scheduler) *Network {
	net := new(Network)
	net.name = name
	net.sched = sched
	net.nodes = make([]Node, 0)
	net.flows = make(map[terminals]*Flow)
	net.flowsFromNode = CreateWeightedMultiMap[Node, *Flow]()
	net.generators = make([]*GeneratorNode, 0)
	net.receivers = make([]*ReceiverNode, 0)
	net.rng = rngstream.New(name)
	net.evtMgr = evtm.New()
	net.elapsed = 0
	sched.bindRNG(net.rng)
	return net
}

// Name returns the network name
func (net *Network) Name() string {
	return net.name
}

// Scheduler returns the scheduler driving this network's switches
func (net *Network) Scheduler() Scheduler {
	return net.sched
}

// RNG returns the network's random stream
func (net *Network) RNG() *rngstream.RngStream {
	return net.rng
}

// Nodes returns the devices in registration order.  The slice is the
// network's own and must not be modified.
func (net *Network) Nodes() []Node {
	return net.nodes
}

// Generators returns the traffic sources registered so far
func (net *Network) Generators() []*GeneratorNode {
	return net.generators
}

// Receivers returns the traffic sinks registered so far
func (net *Network) Receivers() []*ReceiverNode {
	return net.receivers
}

// AddNode registers a device with the network and its scheduler
func (net *Network) AddNode(node Node) {
	net.nodes = append(net.nodes, node)
	net.sched.AddNode(node)
	switch dev := node.(type) {
	case *GeneratorNode:
		dev.net = net
		net.generators = append(net.generators, dev)
	case *ReceiverNode:
		net.receivers = append(net.receivers, dev)
	}
}

// Connect creates a link from source to sink at the given
// transmission rate and registers it at both endpoints
func (net *Network) Connect(source, sink Node, rate int) *Link {
	link := CreateLink(source, sink, rate)
	source.core().addOutputLink(0, link)
	sink.core().addInputLink(0, link)
	return link
}

// Flow returns the flow between the given endpoints, or nil
func (net *Network) Flow(source, sink Node) *Flow {
	return net.flows[terminals{source: source, sink: sink}]
}

// Flows returns the number of provisioned flows
func (net *Network) Flows() int {
	return len(net.flows)
}

// AddFlow provisions a flow through the network.  Missing links along
// the path are created at unit rate, every node on the path learns
// the flow's next hop, and the capacity reserved across each
// (previous hop, next hop) pair grows by the flow's requirement.  A
// flow between the same endpoints replaces its predecessor.
func (net *Network) AddFlow(flow *Flow) {
	key := terminals{source: flow.Source(), sink: flow.Sink()}
	old, present := net.flows[key]
	if present {
		net.RemoveFlow(old)
	}
	net.flows[key] = flow

	path := flow.Path()
	for idx := 0; idx < len(path)-1; idx++ {
		node := path[idx]
		next := path[idx+1]

		if node.core().outputLink(next) == nil {
			net.Connect(node, next, 1)
		}

		// at the flow source the message enters its own queue, so
		// the input side of the first edge is the source itself
		prev := node
		if idx > 0 {
			prev = path[idx-1]
		}

		ds := net.sched.decisionStructure(node)
		ds.PutDecision(flow.Source(), flow.Sink(), next)
		ds.TranslateReservedCapacity(Edge{In: prev, Out: next}, flow.RequiredCapacity())
	}

	net.flowsFromNode.Put(flow.Source(), flow, float64(flow.RequiredCapacity()))
}

// RemoveFlow withdraws a flow, undoing exactly the decision-structure
// bookkeeping AddFlow put in place.  Links stay; the node graph is
// fixed after construction.
func (net *Network) RemoveFlow(flow *Flow) {
	key := terminals{source: flow.Source(), sink: flow.Sink()}
	registered, present := net.flows[key]
	if !present || registered != flow {
		return
	}
	delete(net.flows, key)

	path := flow.Path()
	for idx := 0; idx < len(path)-1; idx++ {
		node := path[idx]
		next := path[idx+1]

		prev := node
		if idx > 0 {
			prev = path[idx-1]
		}

		ds := net.sched.decisionStructure(node)
		ds.RemoveDecision(flow.Source(), flow.Sink())
		ds.TranslateReservedCapacity(Edge{In: prev, Out: next}, -flow.RequiredCapacity())
	}

	net.flowsFromNode.Remove(flow.Source(), flow)
}

// Run advances the simulation by the given number of frames.  Repeated
// calls continue from where the previous call stopped.
func (net *Network) Run(frames int) {
	if frames <= 0 {
		panic(fmt.Errorf("frame count %d is not positive", frames))
	}
	net.prePhase()

	net.endTick = net.elapsed + frames*FrameSize
	net.evtMgr.Schedule(net, net.elapsed, netTick, vrtime.SecondsToTime(0.0))
	net.evtMgr.Run(float64(net.endTick + 1))
	net.elapsed = net.endTick

	net.postPhase()
}

// netTick visits every node for one time slot and reschedules itself
// for the next, one unit of virtual time later
func netTick(evtMgr *evtm.EventManager, context any, data any) any {
	net := context.(*Network)
	t := data.(int)

	for _, node := range net.nodes {
		node.core().update(t)
	}

	if t+1 < net.endTick {
		evtMgr.Schedule(net, t+1, netTick, vrtime.SecondsToTime(1.0))
	}
	return nil
}

// prePhase announces the run
func (net *Network) prePhase() {
	fmt.Println("========================")
	fmt.Printf("starting network %s\n", net.name)
}

// postPhase summarizes what the receivers saw
func (net *Network) postPhase() {
	report := net.BuildReport()
	fmt.Println("network run complete")
	fmt.Printf("messages received: %d\n", report.Messages)
	fmt.Printf("mean age: %.2f, age range [%d,%d]\n", report.MeanAge, report.MinAge, report.MaxAge)
	fmt.Printf("mean arrival disparity: %.2f\n", report.MeanDisparity)
	fmt.Println("========================")
}
