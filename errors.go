package planilha

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress reports a malformed cell address passed to the public API.
var ErrInvalidAddress = errors.New("invalid cell address")

// ErrRecalculationInProgress reports a re-entrant write: SetCellValue (or
// Clear) was called while a recalculation pass was running. Recalculation is
// a pure, synchronous walk and must never feed back into the write path.
var ErrRecalculationInProgress = errors.New("recalculation in progress")

// ParseError reports malformed formula syntax. The cell falls back to
// displaying the raw text with the #ERROR marker; the dependency graph is
// not touched.
type ParseError struct {
	Input   string
	Pos     int // rune offset of the offending character
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Message)
}

// CircularReferenceError reports a rejected write: installing the formula
// would have closed a dependency cycle. Unlike in-cell error values this
// blocks the write outright, because accepting it would corrupt the graph's
// acyclic invariant. Cycle holds the offending path, first == last.
type CircularReferenceError struct {
	Cycle []CellAddress
}

func (e *CircularReferenceError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, addr := range e.Cycle {
		parts[i] = addr.String()
	}
	return "circular reference: " + strings.Join(parts, " -> ")
}
