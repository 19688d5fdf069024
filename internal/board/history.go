package board

// History is a linear undo/redo log of full element snapshots.
// Invariant: snapshots[step] always equals the current collection, and step is
// always a valid index. None of the operations can fail; undo/redo degrade to
// no-ops at the boundaries. Not safe for concurrent use on its own — the
// owning Session serializes access.
type History struct {
	snapshots [][]Element
	step      int
}

// NewHistory starts a log containing a single snapshot of the initial state.
func NewHistory(initial []Element) *History {
	return &History{
		snapshots: [][]Element{CloneElements(initial)},
		step:      0,
	}
}

// Commit records a new snapshot after a mutation. Any redo branch beyond the
// current step is discarded (standard linear-undo semantics, not a tree).
func (h *History) Commit(snapshot []Element) {
	h.snapshots = append(h.snapshots[:h.step+1], CloneElements(snapshot))
	h.step++
}

// Undo steps back one snapshot and returns it. At step 0 it is a no-op.
func (h *History) Undo() []Element {
	if h.step > 0 {
		h.step--
	}
	return CloneElements(h.snapshots[h.step])
}

// Redo steps forward one snapshot and returns it. At the tip it is a no-op.
func (h *History) Redo() []Element {
	if h.step < len(h.snapshots)-1 {
		h.step++
	}
	return CloneElements(h.snapshots[h.step])
}

// Current returns the snapshot at the current step.
func (h *History) Current() []Element {
	return CloneElements(h.snapshots[h.step])
}

// Reset discards the log and starts over with a single snapshot.
func (h *History) Reset(snapshot []Element) {
	h.snapshots = [][]Element{CloneElements(snapshot)}
	h.step = 0
}

// CanUndo reports whether an undo would change state.
func (h *History) CanUndo() bool { return h.step > 0 }

// CanRedo reports whether a redo would change state.
func (h *History) CanRedo() bool { return h.step < len(h.snapshots)-1 }

// Step returns the current step index.
func (h *History) Step() int { return h.step }

// Len returns the number of snapshots in the log.
func (h *History) Len() int { return len(h.snapshots) }
