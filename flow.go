package xbar

import "fmt"

// Flow is a provisioned path from a traffic source to a sink,
// carrying a fixed number of messages per frame.  The node sequence
// and capacity are set at construction and never change; networks key
// their flows by the (source, sink) pair.
type Flow struct {
	path             []Node
	requiredCapacity int
}

// CreateFlow is a constructor.  The path must name at least a source
// and a sink, and the per-frame capacity must be positive.
func CreateFlow(path []Node, requiredCapacity int) *Flow {
	if len(path) < 2 {
		panic("flow path needs at least a source and a sink")
	}
	for _, node := range path {
		if node == nil {
			panic("flow path contains a nil node")
		}
	}
	if requiredCapacity <= 0 {
		panic(fmt.Errorf("flow capacity %d is not positive", requiredCapacity))
	}
	flow := new(Flow)
	flow.path = make([]Node, len(path))
	copy(flow.path, path)
	flow.requiredCapacity = requiredCapacity
	return flow
}

// Source returns the node that generates this flow's messages
func (flow *Flow) Source() Node {
	return flow.path[0]
}

// Sink returns the node this flow's messages terminate at
func (flow *Flow) Sink() Node {
	return flow.path[len(flow.path)-1]
}

// Path returns the node sequence from source to sink.  The slice is
// the flow's own and must not be modified.
func (flow *Flow) Path() []Node {
	return flow.path
}

// RequiredCapacity returns the messages per frame provisioned for
// this flow
func (flow *Flow) RequiredCapacity() int {
	return flow.requiredCapacity
}
