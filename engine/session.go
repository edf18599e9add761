package engine

import "fmt"

// Flow is one conversational script: a directed graph of blocks with the
// variable table bound to it.
type Flow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Groups    []Group   `json:"groups"`
	Edges     []Edge    `json:"edges,omitempty"`
	Variables Variables `json:"variables,omitempty"`
}

// FlowContext is one entry of the session queue: a flow definition plus its
// variable table.
type FlowContext struct {
	Flow Flow `json:"flow"`
}

// SessionState is the persisted state of one end-user conversation. The
// queue head (index 0) is always the currently executing flow context;
// sub-flow invocation pushes onto the queue. CurrentBlockID points into the
// head flow's groups, or is empty before the session starts / after it ends.
type SessionState struct {
	FlowQueue      []FlowContext `json:"flowQueue"`
	CurrentBlockID string        `json:"currentBlockId,omitempty"`
}

// CurrentFlow returns the head flow context's flow, or nil if the queue is
// empty. All resolution reads go through the head.
func (s *SessionState) CurrentFlow() *Flow {
	if len(s.FlowQueue) == 0 {
		return nil
	}
	return &s.FlowQueue[0].Flow
}

// CurrentVariables returns the head flow's variable table. The table is
// exclusively owned by the request processing this session; there are no
// concurrent writers for one session id.
func (s *SessionState) CurrentVariables() Variables {
	flow := s.CurrentFlow()
	if flow == nil {
		return nil
	}
	return flow.Variables
}

// FindBlock locates a block by id across the flow's groups. A missing block
// is a recoverable client-state condition, not a panic.
func (f *Flow) FindBlock(blockID string) (*Group, *Block, error) {
	for gi := range f.Groups {
		for bi := range f.Groups[gi].Blocks {
			if f.Groups[gi].Blocks[bi].ID == blockID {
				return &f.Groups[gi], &f.Groups[gi].Blocks[bi], nil
			}
		}
	}
	return nil, nil, fmt.Errorf("block %q not found in flow %q", blockID, f.ID)
}

// findEdge returns the edge with the given id, or nil.
func (f *Flow) findEdge(edgeID string) *Edge {
	for i := range f.Edges {
		if f.Edges[i].ID == edgeID {
			return &f.Edges[i]
		}
	}
	return nil
}

// NextBlock follows an outgoing edge to the next block to execute. An edge
// targeting a group without a block id enters at the group's first block.
// A missing or dangling edge ends the flow (false), it does not error.
func (f *Flow) NextBlock(edgeID string) (*Block, bool) {
	if edgeID == "" {
		return nil, false
	}
	edge := f.findEdge(edgeID)
	if edge == nil {
		return nil, false
	}
	if edge.To.BlockID != "" {
		_, block, err := f.FindBlock(edge.To.BlockID)
		if err != nil {
			return nil, false
		}
		return block, true
	}
	for gi := range f.Groups {
		if f.Groups[gi].ID == edge.To.GroupID {
			if len(f.Groups[gi].Blocks) == 0 {
				return nil, false
			}
			return &f.Groups[gi].Blocks[0], true
		}
	}
	return nil, false
}

// Successor returns the block executed after the given one: the target of
// its outgoing edge when one is declared, otherwise the next block of the
// same group. A dangling edge or the end of the last group ends the flow.
func (f *Flow) Successor(block *Block) (*Block, bool) {
	if block.OutgoingEdgeID != "" {
		return f.NextBlock(block.OutgoingEdgeID)
	}
	for gi := range f.Groups {
		blocks := f.Groups[gi].Blocks
		for bi := range blocks {
			if blocks[bi].ID == block.ID {
				if bi+1 < len(blocks) {
					return &blocks[bi+1], true
				}
				return nil, false
			}
		}
	}
	return nil, false
}

// FirstBlock returns the entry block of the flow: the first block of the
// first non-empty group.
func (f *Flow) FirstBlock() (*Block, bool) {
	for gi := range f.Groups {
		if len(f.Groups[gi].Blocks) > 0 {
			return &f.Groups[gi].Blocks[0], true
		}
	}
	return nil, false
}
