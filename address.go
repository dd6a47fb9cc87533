package planilha

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// CellAddress identifies a single cell. Row and Col are zero-based
// internally; the canonical serialized form is "<COL><ROW>" with a 1-based
// row, e.g. {Col: 2, Row: 4} <-> "C5". Value type, usable as a map key.
type CellAddress struct {
	Col int
	Row int
}

// ParseAddress parses a canonical cell address like "A1" or "AB12".
func ParseAddress(s string) (CellAddress, error) {
	if len(s) < 2 {
		return CellAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	// find where letters end and digits begin
	letterEnd := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z' {
			letterEnd = i + 1
		} else {
			break
		}
	}

	if letterEnd == 0 || letterEnd == len(s) {
		return CellAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	// column letters (A=0, B=1, ..., Z=25, AA=26, AB=27, ...)
	col := 0
	for _, ch := range strings.ToUpper(s[:letterEnd]) {
		col = col*26 + int(ch-'A') + 1
	}
	col--

	rowNum, err := strconv.Atoi(s[letterEnd:])
	if err != nil || rowNum < 1 {
		return CellAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	return CellAddress{Col: col, Row: rowNum - 1}, nil
}

// String returns the canonical form, e.g. "C5"
func (a CellAddress) String() string {
	return columnName(a.Col) + strconv.Itoa(a.Row+1)
}

// columnName converts a zero-based column index to its letter form
func columnName(col int) string {
	name := ""
	col++
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

// CellRange is a rectangular span between two corner addresses, normalized
// so Start is the top-left corner. It expands lazily: Addresses yields the
// component cells in row-major order without materializing a slice.
type CellRange struct {
	Start CellAddress
	End   CellAddress
}

// NewCellRange builds a normalized range from any two corners
func NewCellRange(a, b CellAddress) CellRange {
	return CellRange{
		Start: CellAddress{Col: min(a.Col, b.Col), Row: min(a.Row, b.Row)},
		End:   CellAddress{Col: max(a.Col, b.Col), Row: max(a.Row, b.Row)},
	}
}

// ParseRange parses a range like "A1:B10"
func ParseRange(s string) (CellRange, error) {
	start, end, found := strings.Cut(s, ":")
	if !found {
		return CellRange{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	a, err := ParseAddress(start)
	if err != nil {
		return CellRange{}, err
	}
	b, err := ParseAddress(end)
	if err != nil {
		return CellRange{}, err
	}
	return NewCellRange(a, b), nil
}

func (r CellRange) String() string {
	return r.Start.String() + ":" + r.End.String()
}

// Width returns the number of columns spanned
func (r CellRange) Width() int {
	return r.End.Col - r.Start.Col + 1
}

// Height returns the number of rows spanned
func (r CellRange) Height() int {
	return r.End.Row - r.Start.Row + 1
}

// Contains checks if a cell is within the range
func (r CellRange) Contains(a CellAddress) bool {
	return a.Row >= r.Start.Row && a.Row <= r.End.Row &&
		a.Col >= r.Start.Col && a.Col <= r.End.Col
}

// Addresses returns an iterator over all component addresses, row-major
func (r CellRange) Addresses() iter.Seq[CellAddress] {
	return func(yield func(CellAddress) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				if !yield(CellAddress{Col: col, Row: row}) {
					return
				}
			}
		}
	}
}
