package planilha

const defaultHistoryLimit = 100

// edit is one undoable write: the raw input a cell held before and after
type edit struct {
	addr   CellAddress
	before string
	after  string
}

// History holds bounded undo/redo stacks of raw edits. Entries store raw
// input only; replaying an entry through the normal write path rebuilds
// values and dependency edges, so the stacks never go stale.
type History struct {
	limit int
	undo  []edit
	redo  []edit
}

// NewHistory creates a history bounded to limit entries; limit <= 0 falls
// back to the default
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &History{limit: limit}
}

// Record pushes a completed write. Any redoable edits are discarded: a
// fresh write forks the timeline.
func (h *History) Record(addr CellAddress, before, after string) {
	if before == after {
		return
	}
	h.undo = append(h.undo, edit{addr: addr, before: before, after: after})
	if len(h.undo) > h.limit {
		h.undo = h.undo[1:]
	}
	h.redo = h.redo[:0]
}

// PopUndo moves the latest edit to the redo stack and returns it
func (h *History) PopUndo() (edit, bool) {
	if len(h.undo) == 0 {
		return edit{}, false
	}
	last := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, last)
	return last, true
}

// PopRedo moves the latest undone edit back to the undo stack and returns it
func (h *History) PopRedo() (edit, bool) {
	if len(h.redo) == 0 {
		return edit{}, false
	}
	last := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, last)
	return last, true
}

// CanUndo reports whether an undoable edit exists
func (h *History) CanUndo() bool {
	return len(h.undo) > 0
}

// CanRedo reports whether a redoable edit exists
func (h *History) CanRedo() bool {
	return len(h.redo) > 0
}
