package xbar

import "fmt"

// voqTable is the per-switch tag owned by a scheduler: the virtual
// output queues of one switch, keyed by (arrived-from, next-hop).
// Queues are created lazily on first insert and removed the moment
// they drain, so the key set always equals the set of non-empty
// queues and a scan over the keys is a scan over pending traffic.
type voqTable struct {
	sched  Scheduler
	queues map[Edge][]*Message
	order  []Edge // keys in creation order, for deterministic scans
}

// createVOQTable is a constructor
func createVOQTable(sched Scheduler) *voqTable {
	tag := new(voqTable)
	tag.sched = sched
	tag.queues = make(map[Edge][]*Message)
	tag.order = make([]Edge, 0)
	return tag
}

// enqueue appends msg to the queue for the edge it contends for.  The
// output coordinate comes from the owning scheduler's next-hop lookup,
// which is fatal if the flow was never routed through this switch.
func (tag *voqTable) enqueue(from Node, node Node, msg *Message) {
	edge := Edge{In: from, Out: tag.sched.NextHop(node, msg)}
	_, present := tag.queues[edge]
	if !present {
		tag.order = append(tag.order, edge)
	}
	tag.queues[edge] = append(tag.queues[edge], msg)
}

// available returns the edges with pending messages, in queue creation
// order.  The returned slice is the table's own ordering and must not
// be modified by the caller.
func (tag *voqTable) available() []Edge {
	return tag.order
}

// length returns the number of messages waiting on the edge
func (tag *voqTable) length(edge Edge) int {
	return len(tag.queues[edge])
}

// peek returns the head message of the edge's queue
func (tag *voqTable) peek(edge Edge) *Message {
	queue, present := tag.queues[edge]
	if !present {
		panic(fmt.Errorf("peek on empty queue (%s,%s)", edge.In.DevName(), edge.Out.DevName()))
	}
	return queue[0]
}

// pop removes and returns the head message of the edge's queue,
// dropping the queue itself when it drains
func (tag *voqTable) pop(edge Edge) *Message {
	queue, present := tag.queues[edge]
	if !present {
		panic(fmt.Errorf("pop on empty queue (%s,%s)", edge.In.DevName(), edge.Out.DevName()))
	}
	msg := queue[0]
	tag.queues[edge] = queue[1:]
	if len(tag.queues[edge]) == 0 {
		tag.removeEdge(edge)
	}
	return msg
}

// removeEdge drops a drained queue from the table
func (tag *voqTable) removeEdge(edge Edge) {
	queue, present := tag.queues[edge]
	if !present {
		return
	}
	if len(queue) > 0 {
		panic(fmt.Errorf("removing non-empty queue (%s,%s)", edge.In.DevName(), edge.Out.DevName()))
	}
	delete(tag.queues, edge)
	for idx, e := range tag.order {
		if e == edge {
			tag.order = append(tag.order[:idx], tag.order[idx+1:]...)
			break
		}
	}
}
