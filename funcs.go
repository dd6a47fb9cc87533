package planilha

import (
	"fmt"
	"iter"
	"math"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Func identifies a built-in function. The set is closed: resolution
// happens at parse time against funcTable, anything else is FuncUnknown
// and evaluates to #NAME?.
type Func uint8

const (
	FuncUnknown Func = iota
	FuncSoma
	FuncMedia
	FuncMaximo
	FuncMinimo
	FuncContNum
	FuncContValores
	FuncSe
	FuncProcv
	FuncConcatenar
	FuncHoje
)

// funcSpec declares arity and evaluation mode for a built-in
type funcSpec struct {
	name    string
	minArgs int
	maxArgs int // -1 = variadic
	lazy    bool
}

var funcTable = map[Func]funcSpec{
	FuncSoma:        {name: "SOMA", minArgs: 1, maxArgs: -1},
	FuncMedia:       {name: "MÉDIA", minArgs: 1, maxArgs: -1},
	FuncMaximo:      {name: "MÁXIMO", minArgs: 1, maxArgs: -1},
	FuncMinimo:      {name: "MÍNIMO", minArgs: 1, maxArgs: -1},
	FuncContNum:     {name: "CONT.NÚM", minArgs: 1, maxArgs: -1},
	FuncContValores: {name: "CONT.VALORES", minArgs: 1, maxArgs: -1},
	FuncSe:          {name: "SE", minArgs: 3, maxArgs: 3, lazy: true},
	FuncProcv:       {name: "PROCV", minArgs: 3, maxArgs: 4},
	FuncConcatenar:  {name: "CONCATENAR", minArgs: 1, maxArgs: -1},
	FuncHoje:        {name: "HOJE", minArgs: 0, maxArgs: 0},
}

// funcByName is keyed on the normalized (uppercased, accent-stripped)
// spelling, so MÉDIA and MEDIA resolve to the same function
var funcByName = func() map[string]Func {
	m := make(map[string]Func, len(funcTable))
	for fn, spec := range funcTable {
		m[normalizeFuncName(spec.name)] = fn
	}
	return m
}()

// accentStripper removes combining marks after NFD decomposition, then
// recomposes. "MÉDIA" and "MEDIA" normalize identically.
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeFuncName uppercases and strips accents for table lookup
func normalizeFuncName(name string) string {
	stripped, _, err := transform.String(accentStripper, name)
	if err != nil {
		stripped = name
	}
	return strings.ToUpper(stripped)
}

// lookupFunc resolves a function name as typed in a formula
func lookupFunc(name string) Func {
	if fn, ok := funcByName[normalizeFuncName(name)]; ok {
		return fn
	}
	return FuncUnknown
}

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RangeValue is the evaluated form of a range reference. It reads cell
// values lazily through the engine, so builtins iterate without
// materializing the rectangle.
type RangeValue struct {
	rng    CellRange
	engine *Engine
}

// Values iterates the component cell values in row-major order
func (r *RangeValue) Values() iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		for addr := range r.rng.Addresses() {
			if !yield(r.engine.valueAt(addr)) {
				return
			}
		}
	}
}

// Rows iterates the range one row at a time, for row-wise lookups
func (r *RangeValue) Rows() iter.Seq[[]Primitive] {
	return func(yield func([]Primitive) bool) {
		width := r.rng.Width()
		for row := r.rng.Start.Row; row <= r.rng.End.Row; row++ {
			values := make([]Primitive, width)
			for i := 0; i < width; i++ {
				values[i] = r.engine.valueAt(CellAddress{Col: r.rng.Start.Col + i, Row: row})
			}
			if !yield(values) {
				return
			}
		}
	}
}

// Builtins implements the closed function set. Methods return Primitive
// values; failures are *CellError values, never Go errors.
type Builtins struct {
	clock Clock
}

// NewBuiltins creates the default Builtins backed by system time
func NewBuiltins() *Builtins {
	return &Builtins{clock: &WallClock{}}
}

// Call dispatches a strict (all-arguments-evaluated) built-in
func (b *Builtins) Call(fn Func, args []Primitive) Primitive {
	spec := funcTable[fn]
	if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
		return NewCellError(ErrorCodeValue,
			fmt.Sprintf("%s called with %d argument(s)", spec.name, len(args)))
	}

	switch fn {
	case FuncSoma:
		return b.soma(args)
	case FuncMedia:
		return b.media(args)
	case FuncMaximo:
		return b.extremum(args, func(a, best float64) bool { return a > best })
	case FuncMinimo:
		return b.extremum(args, func(a, best float64) bool { return a < best })
	case FuncContNum:
		return b.contNum(args)
	case FuncContValores:
		return b.contValores(args)
	case FuncProcv:
		return b.procv(args)
	case FuncConcatenar:
		return b.concatenar(args)
	case FuncHoje:
		return b.hoje()
	default:
		return NewCellError(ErrorCodeName, "unknown function")
	}
}

// CallLazy dispatches built-ins that receive unevaluated argument nodes
func (b *Builtins) CallLazy(e *Engine, fn Func, args []ASTNode) Primitive {
	switch fn {
	case FuncSe:
		return b.se(e, args)
	default:
		return NewCellError(ErrorCodeName, "unknown function")
	}
}

// forEachScalar flattens scalar and range arguments into one stream of
// values. Iteration stops early when the callback returns false.
func forEachScalar(args []Primitive, fn func(Primitive) bool) {
	for _, arg := range args {
		if r, ok := arg.(*RangeValue); ok {
			for value := range r.Values() {
				if !fn(value) {
					return
				}
			}
		} else {
			if !fn(arg) {
				return
			}
		}
	}
}

// soma adds every numeric value; non-numeric text and empty cells are
// skipped, error values propagate
func (b *Builtins) soma(args []Primitive) Primitive {
	sum := 0.0
	var failed *CellError
	forEachScalar(args, func(value Primitive) bool {
		if err := asCellError(value); err != nil {
			failed = err
			return false
		}
		if _, isStr := value.(string); isStr {
			return true // text is skipped, even numeric-looking text
		}
		if value == nil {
			return true
		}
		if num, ok := toNumber(value); ok && !math.IsNaN(num) {
			sum += num
		}
		return true
	})
	if failed != nil {
		return failed
	}
	return sum
}

// media averages the numeric values; zero numeric values is #DIV0
func (b *Builtins) media(args []Primitive) Primitive {
	sum := 0.0
	count := 0
	var failed *CellError
	forEachScalar(args, func(value Primitive) bool {
		if err := asCellError(value); err != nil {
			failed = err
			return false
		}
		if num, ok := numericValue(value); ok {
			sum += num
			count++
		}
		return true
	})
	if failed != nil {
		return failed
	}
	if count == 0 {
		return NewCellError(ErrorCodeDiv0, "MÉDIA of no numeric values")
	}
	return sum / float64(count)
}

// extremum implements MÁXIMO and MÍNIMO; no numeric values yields 0
func (b *Builtins) extremum(args []Primitive, better func(candidate, best float64) bool) Primitive {
	best := 0.0
	found := false
	var failed *CellError
	forEachScalar(args, func(value Primitive) bool {
		if err := asCellError(value); err != nil {
			failed = err
			return false
		}
		if num, ok := numericValue(value); ok {
			if !found || better(num, best) {
				best = num
				found = true
			}
		}
		return true
	})
	if failed != nil {
		return failed
	}
	return best
}

// contNum counts numeric values only
func (b *Builtins) contNum(args []Primitive) Primitive {
	count := 0
	var failed *CellError
	forEachScalar(args, func(value Primitive) bool {
		if err := asCellError(value); err != nil {
			failed = err
			return false
		}
		if _, ok := numericValue(value); ok {
			count++
		}
		return true
	})
	if failed != nil {
		return failed
	}
	return float64(count)
}

// contValores counts non-empty values of any type
func (b *Builtins) contValores(args []Primitive) Primitive {
	count := 0
	var failed *CellError
	forEachScalar(args, func(value Primitive) bool {
		if err := asCellError(value); err != nil {
			failed = err
			return false
		}
		if value != nil {
			count++
		}
		return true
	})
	if failed != nil {
		return failed
	}
	return float64(count)
}

// se evaluates only the taken branch. Both branches still contribute
// dependency edges, extracted from the unevaluated tree.
func (b *Builtins) se(e *Engine, args []ASTNode) Primitive {
	if len(args) != 3 {
		return NewCellError(ErrorCodeValue,
			fmt.Sprintf("SE called with %d argument(s)", len(args)))
	}

	cond := args[0].Eval(e)
	if err := asCellError(cond); err != nil {
		return err
	}
	if _, ok := cond.(*RangeValue); ok {
		return NewCellError(ErrorCodeValue, "SE condition cannot be a range")
	}

	if isTruthy(cond) {
		return args[1].Eval(e)
	}
	return args[2].Eval(e)
}

// procv looks up a value in the first column of a table range and returns
// the value from the given 1-based column of the matching row. The fourth
// argument selects approximate (default, assumes sorted first column) or
// exact matching.
func (b *Builtins) procv(args []Primitive) Primitive {
	if err := asCellError(args[0]); err != nil {
		return err
	}
	needle := args[0]
	if _, ok := needle.(*RangeValue); ok {
		return NewCellError(ErrorCodeValue, "PROCV lookup value cannot be a range")
	}

	table, ok := args[1].(*RangeValue)
	if !ok {
		return NewCellError(ErrorCodeValue, "PROCV requires a table range")
	}

	colNum, ok := toNumber(args[2])
	if !ok {
		return NewCellError(ErrorCodeValue, "PROCV column index must be numeric")
	}
	col := int(colNum)
	if col < 1 || col > table.rng.Width() {
		return NewCellError(ErrorCodeRef,
			fmt.Sprintf("PROCV column index %d outside table of width %d", col, table.rng.Width()))
	}

	approximate := true
	if len(args) == 4 {
		if err := asCellError(args[3]); err != nil {
			return err
		}
		approximate = isTruthy(args[3])
	}

	var result Primitive
	found := false
	for row := range table.Rows() {
		key := row[0]
		if err := asCellError(key); err != nil {
			return err
		}
		cmp := comparePrimitives(key, needle)
		if cmp == 0 {
			result = row[col-1]
			found = true
			if !approximate {
				break
			}
		} else if approximate {
			// sorted-first-column convention: the last key <= needle wins
			if cmp < 0 {
				result = row[col-1]
				found = true
			} else {
				break
			}
		}
	}

	if !found {
		return NewCellError(ErrorCodeValue, "PROCV found no matching row")
	}
	return result
}

// concatenar joins arguments as text; ranges contribute each cell
func (b *Builtins) concatenar(args []Primitive) Primitive {
	var sb strings.Builder
	var failed *CellError
	forEachScalar(args, func(value Primitive) bool {
		if err := asCellError(value); err != nil {
			failed = err
			return false
		}
		sb.WriteString(toString(value))
		return true
	})
	if failed != nil {
		return failed
	}
	return sb.String()
}

// excelEpoch is day serial 1; the off-by-two accounts for the fictional
// 1900-02-29 the serial scheme inherited.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// hoje returns today's date as a day serial number
func (b *Builtins) hoje() Primitive {
	now := b.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return float64(today.Sub(excelEpoch) / (24 * time.Hour))
}

// numericValue reports whether value is a number for counting purposes.
// Unlike toNumber it does not coerce: strings and empty cells are not
// numeric, booleans are not numeric.
func numericValue(value Primitive) (float64, bool) {
	if num, ok := value.(float64); ok {
		return num, true
	}
	return 0, false
}
