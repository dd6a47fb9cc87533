package planilha

import (
	"strings"

	"github.com/rs/zerolog"
)

// cellRecord is one cell in the store. raw is what the user typed; value
// is the computed result; ast is present only for formula cells that
// parsed successfully.
type cellRecord struct {
	raw   string
	value Primitive
	ast   ASTNode
	state CellState
}

// Engine is a single-sheet formula recalculation engine: cell store,
// dependency graph, and synchronous topological scheduler. Instances are
// independent; one engine per sheet session. Not safe for concurrent use.
type Engine struct {
	cells   map[CellAddress]*cellRecord
	graph   *DependencyGraph
	funcs   *Builtins
	history *History
	log     zerolog.Logger

	// set while a recalculation pass is walking the graph; writes arriving
	// during the pass fail with ErrRecalculationInProgress
	recalculating bool
}

// Option configures an Engine at construction time
type Option func(*Engine)

// WithClock injects the time source used by HOJE
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.funcs.clock = clock
	}
}

// WithLogger sets the engine's logger; default is a no-op logger
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithHistoryLimit caps the undo stack depth
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		e.history = NewHistory(limit)
	}
}

// New creates an empty engine
func New(opts ...Option) *Engine {
	e := &Engine{
		cells:   make(map[CellAddress]*cellRecord),
		graph:   NewDependencyGraph(),
		funcs:   NewBuiltins(),
		history: NewHistory(defaultHistoryLimit),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetCellValue writes raw input to a cell and synchronously recalculates
// everything downstream. It returns the set of cells whose computed value
// changed, keyed by canonical address.
//
// A formula that fails to parse keeps the raw text and computes to the
// #ERROR marker; the ParseError is also returned. A formula that would
// close a dependency cycle is rejected outright: the cell's prior state
// is untouched and a CircularReferenceError is returned.
func (e *Engine) SetCellValue(address, raw string) (map[string]Primitive, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	before := e.rawAt(addr)
	changed, err := e.setCell(addr, raw)
	if _, rejected := err.(*CircularReferenceError); rejected {
		return nil, err
	}
	if err == nil || changed != nil {
		// parse errors still commit the raw text, so they are undoable
		e.history.Record(addr, before, raw)
	}
	return changed, err
}

// GetCellValue returns the computed value of a cell. Empty and
// never-written cells read as nil.
func (e *Engine) GetCellValue(address string) (Primitive, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return e.valueAt(addr), nil
}

// GetCellRaw returns the raw input of a cell as the user typed it
func (e *Engine) GetCellRaw(address string) (string, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return "", err
	}
	return e.rawAt(addr), nil
}

// Clear removes a cell's content. While other formulas still reference
// the cell a placeholder remains and reads as nil.
func (e *Engine) Clear(address string) (map[string]Primitive, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	before := e.rawAt(addr)
	changed, err := e.setCell(addr, "")
	if err == nil {
		e.history.Record(addr, before, "")
	}
	return changed, err
}

// RecalculateAll re-evaluates every formula cell in one topological pass.
// Between writes the pass is idempotent: values never change unless a
// volatile input (the clock) moved.
func (e *Engine) RecalculateAll() map[string]Primitive {
	e.recalculating = true
	defer func() { e.recalculating = false }()

	changed := make(map[string]Primitive)

	// graph order covers every cell with edges; formula cells without
	// references (=1+1, =HOJE()) have no node and are appended after
	inOrder := make(map[CellAddress]struct{})
	order := e.graph.Order()
	for _, addr := range order {
		inOrder[addr] = struct{}{}
	}
	for addr, rec := range e.cells {
		if rec.ast != nil {
			if _, seen := inOrder[addr]; !seen {
				order = append(order, addr)
			}
		}
	}

	for _, addr := range order {
		e.evalCell(addr, changed)
	}

	e.log.Debug().Int("cells", len(order)).Int("changed", len(changed)).
		Msg("full recalculation pass")
	return changed
}

// Undo reverts the most recent write, replaying the previous raw input
// through the normal write path. Reports false when there is nothing to
// undo.
func (e *Engine) Undo() (map[string]Primitive, bool) {
	edit, ok := e.history.PopUndo()
	if !ok {
		return nil, false
	}
	changed, err := e.setCell(edit.addr, edit.before)
	if err != nil && changed == nil {
		return nil, false
	}
	return changed, true
}

// Redo re-applies the most recently undone write
func (e *Engine) Redo() (map[string]Primitive, bool) {
	edit, ok := e.history.PopRedo()
	if !ok {
		return nil, false
	}
	changed, err := e.setCell(edit.addr, edit.after)
	if err != nil && changed == nil {
		return nil, false
	}
	return changed, true
}

// valueAt reads a computed value; missing cells read as nil
func (e *Engine) valueAt(addr CellAddress) Primitive {
	if rec, exists := e.cells[addr]; exists {
		return rec.value
	}
	return nil
}

// rawAt reads a raw input; missing cells read as ""
func (e *Engine) rawAt(addr CellAddress) string {
	if rec, exists := e.cells[addr]; exists {
		return rec.raw
	}
	return ""
}

// setCell is the single write path: parse, update edges, recalculate.
// Undo/redo and Clear all funnel through here.
func (e *Engine) setCell(addr CellAddress, raw string) (map[string]Primitive, error) {
	if e.recalculating {
		return nil, ErrRecalculationInProgress
	}

	if raw == "" {
		return e.clearCell(addr), nil
	}

	if strings.HasPrefix(raw, "=") {
		return e.setFormula(addr, raw)
	}

	// literal write: coerce and drop any outgoing edges the cell had
	old := e.valueAt(addr)
	rec := e.getOrCreateRecord(addr)
	rec.raw = raw
	rec.ast = nil
	rec.value = coerceLiteral(raw)
	rec.state = StateLiteral
	e.graph.SetDependencies(addr, nil)

	e.log.Debug().Stringer("cell", addr).Str("raw", raw).Msg("literal write")
	changed := e.recalcFrom(addr)
	if !valuesEqual(old, rec.value) {
		changed[addr.String()] = rec.value
	}
	return changed, nil
}

// setFormula parses and installs a formula write
func (e *Engine) setFormula(addr CellAddress, raw string) (map[string]Primitive, error) {
	ast, perr := parseFormula(raw)
	if perr != nil {
		// the raw text is kept so the user can fix it in place; the cell
		// computes to the #ERROR marker and dependents see that value
		old := e.valueAt(addr)
		rec := e.getOrCreateRecord(addr)
		rec.raw = raw
		rec.ast = nil
		rec.value = NewCellError(ErrorCodeParse, perr.Message)
		rec.state = StateFormulaError
		e.graph.SetDependencies(addr, nil)

		e.log.Debug().Stringer("cell", addr).Str("raw", raw).
			Str("error", perr.Message).Msg("formula parse failed")
		changed := e.recalcFrom(addr)
		if !valuesEqual(old, rec.value) {
			changed[addr.String()] = rec.value
		}
		return changed, perr
	}

	refs := make(map[CellAddress]struct{})
	collectRefs(ast, refs)

	// reject cycles before touching the cell: prior raw, value, and edges
	// all survive a rejected write
	if cycleErr := e.graph.SetDependencies(addr, refs); cycleErr != nil {
		e.log.Debug().Stringer("cell", addr).Str("raw", raw).
			Str("cycle", cycleErr.Error()).Msg("write rejected")
		return nil, cycleErr
	}

	rec := e.getOrCreateRecord(addr)
	rec.raw = raw
	rec.ast = ast
	rec.state = StateFormula

	e.log.Debug().Stringer("cell", addr).Str("raw", raw).
		Int("refs", len(refs)).Msg("formula write")
	return e.recalcFrom(addr), nil
}

// clearCell empties a cell. A placeholder record survives while other
// formulas reference the cell; otherwise the record is dropped entirely.
func (e *Engine) clearCell(addr CellAddress) map[string]Primitive {
	rec, exists := e.cells[addr]
	if !exists {
		return map[string]Primitive{}
	}

	hadValue := rec.value != nil
	e.graph.SetDependencies(addr, nil)

	if e.graph.HasDependents(addr) {
		rec.raw = ""
		rec.ast = nil
		rec.value = nil
		rec.state = StateEmpty
	} else {
		delete(e.cells, addr)
	}

	changed := e.recalcFrom(addr)
	if hadValue {
		changed[addr.String()] = nil
	}
	e.log.Debug().Stringer("cell", addr).Msg("cell cleared")
	return changed
}

func (e *Engine) getOrCreateRecord(addr CellAddress) *cellRecord {
	if rec, exists := e.cells[addr]; exists {
		return rec
	}
	rec := &cellRecord{}
	e.cells[addr] = rec
	return rec
}

// recalcFrom re-evaluates the written cell and its transitive dependents
// in topological order, collecting every cell whose value changed
func (e *Engine) recalcFrom(addr CellAddress) map[string]Primitive {
	e.recalculating = true
	defer func() { e.recalculating = false }()

	changed := make(map[string]Primitive)
	for _, a := range e.graph.RecalcOrder(addr) {
		e.evalCell(a, changed)
	}
	return changed
}

// evalCell recomputes one cell in place and records it in changed when
// the value moved
func (e *Engine) evalCell(addr CellAddress, changed map[string]Primitive) {
	rec, exists := e.cells[addr]
	if !exists {
		return
	}

	var newValue Primitive
	switch {
	case rec.ast != nil:
		newValue = rec.ast.Eval(e)
		// a bare range (=A1:B2) cannot live in a single cell
		if _, isRange := newValue.(*RangeValue); isRange {
			newValue = NewCellError(ErrorCodeValue, "range cannot be the value of a cell")
		}
	default:
		// literals, parse-error cells, and placeholders keep their value
		newValue = rec.value
	}

	if !valuesEqual(rec.value, newValue) {
		changed[addr.String()] = newValue
	}
	rec.value = newValue

	if rec.ast != nil {
		if asCellError(newValue) != nil {
			rec.state = StateFormulaError
		} else {
			rec.state = StateFormula
		}
	}
}

// collectRefs gathers every cell address an AST reads, ranges flattened
// to their component cells. Lazy branches count: SE contributes edges for
// both arms even though only one evaluates.
func collectRefs(node ASTNode, out map[CellAddress]struct{}) {
	switch n := node.(type) {
	case *CellRefNode:
		out[n.Addr] = struct{}{}
	case *RangeNode:
		for addr := range n.Range.Addresses() {
			out[addr] = struct{}{}
		}
	case *BinaryOpNode:
		collectRefs(n.Left, out)
		collectRefs(n.Right, out)
	case *UnaryOpNode:
		collectRefs(n.Operand, out)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			collectRefs(arg, out)
		}
	}
}
