package xbar

// builders.go constructs the canonical experiment networks: a bank of
// generators and a bank of receivers around one crossbar switch, with
// the flow capacities setting the traffic pattern.  For topologies
// with more than one switch, flow paths are recovered from the link
// graph with a shortest-path search rather than spelled out by hand.

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// crossbarPorts is the number of generators and of receivers the
// canonical experiment networks place around their switch
const crossbarPorts = 16

// createCrossbar builds the generator bank, the receiver bank, and
// the switch between them, registering everything with the network
func createCrossbar(net *Network) ([]*GeneratorNode, []*ReceiverNode, *SwitchNode) {
	generators := make([]*GeneratorNode, crossbarPorts)
	for idx := range generators {
		generators[idx] = CreateGenerator(fmt.Sprintf("%s.gen-%d", net.Name(), idx+1), net.Scheduler())
		net.AddNode(generators[idx])
	}

	receivers := make([]*ReceiverNode, crossbarPorts)
	for idx := range receivers {
		receivers[idx] = CreateReceiver(fmt.Sprintf("%s.rcv-%d", net.Name(), idx+1), net.Scheduler())
		net.AddNode(receivers[idx])
	}

	sw := CreateSwitch(fmt.Sprintf("%s.xbar", net.Name()), net.Scheduler())
	net.AddNode(sw)

	return generators, receivers, sw
}

// CreateUniformNetwork builds a network whose generators each send
// the same capacity to every receiver: SafeCapacity/16 messages per
// frame per flow, loading every port evenly
func CreateUniformNetwork(name string, sched Scheduler) *Network {
	net := CreateNetwork(name, sched)
	generators, receivers, sw := createCrossbar(net)

	capacity := SafeCapacity / crossbarPorts
	for _, gen := range generators {
		for _, rcv := range receivers {
			net.AddFlow(CreateFlow([]Node{gen, sw, rcv}, capacity))
		}
	}
	return net
}

// CreatePrivilegedGeneratorNetwork builds a network whose generator i
// (1-indexed) sends capacity i*p to every receiver, with p chosen so
// the total provisioned load still fits inside SafeCapacity.  The
// skew separates capacity-aware policies from capacity-blind ones.
func CreatePrivilegedGeneratorNetwork(name string, sched Scheduler) *Network {
	net := CreateNetwork(name, sched)
	generators, receivers, sw := createCrossbar(net)

	p := 2 * SafeCapacity / (crossbarPorts * (crossbarPorts + 1))
	for idx, gen := range generators {
		capacity := (idx + 1) * p
		for _, rcv := range receivers {
			net.AddFlow(CreateFlow([]Node{gen, sw, rcv}, capacity))
		}
	}
	return net
}

// RouteThrough recovers a path from source to sink over the links
// registered so far, minimizing hop count.  The returned sequence
// includes both endpoints and is suitable for CreateFlow; a
// disconnected pair yields nil.
func RouteThrough(net *Network, source, sink Node) []Node {
	// express the link graph in the form the path search consumes,
	// weighting every edge 1 so the shortest path is the fewest hops
	connGraph := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	byID := make(map[int64]Node)
	for _, node := range net.Nodes() {
		byID[int64(node.DevID())] = node
	}
	for _, node := range net.Nodes() {
		for _, sinkNode := range node.core().outputOrder {
			edge := simple.WeightedEdge{
				F: simple.Node(int64(node.DevID())),
				T: simple.Node(int64(sinkNode.DevID())),
				W: 1.0,
			}
			connGraph.SetWeightedEdge(edge)
		}
	}

	spTree := path.DijkstraFrom(simple.Node(int64(source.DevID())), connGraph)
	nodeSeq, _ := spTree.To(int64(sink.DevID()))
	if len(nodeSeq) == 0 {
		return nil
	}

	return convertNodeSeq(nodeSeq, byID)
}

// convertNodeSeq maps a path-search node sequence back onto network
// devices
func convertNodeSeq(nodeSeq []graph.Node, byID map[int64]Node) []Node {
	route := make([]Node, 0, len(nodeSeq))
	for _, gn := range nodeSeq {
		node, present := byID[gn.ID()]
		if !present {
			panic(fmt.Errorf("path search returned unknown device id %d", gn.ID()))
		}
		route = append(route, node)
	}
	return route
}

// AddFlowAlongRoute provisions a flow over the shortest registered
// path between two devices
func (net *Network) AddFlowAlongRoute(source, sink Node, capacity int) *Flow {
	route := RouteThrough(net, source, sink)
	if route == nil {
		panic(fmt.Errorf("no route from %s to %s", source.DevName(), sink.DevName()))
	}
	flow := CreateFlow(route, capacity)
	net.AddFlow(flow)
	return flow
}
