package planilha

import (
	"fmt"
	"strconv"
	"strings"
)

// Primitive represents basic cell value types.
// types:
//   - float64: numeric values (integers are converted to float64)
//   - string: text values
//   - bool: boolean values (VERDADEIRO/FALSO)
//   - nil: empty/null cells
//   - *CellError: error values (#DIV0, #VALUE!, etc.)
type Primitive any

// ErrorCode represents the in-cell error classes. These are values, not Go
// errors: a formula referencing an error cell becomes an error cell itself.
type ErrorCode uint8

const (
	ErrorCodeDiv0     ErrorCode = 1 // #DIV0 - division by zero
	ErrorCodeValue    ErrorCode = 2 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef      ErrorCode = 3 // #REF! - reference beyond valid bounds
	ErrorCodeName     ErrorCode = 4 // #NAME? - unrecognized function name
	ErrorCodeCircular ErrorCode = 5 // #CIRCULAR - rejected circular formula
	ErrorCodeParse    ErrorCode = 6 // #ERROR - raw input failed to parse
)

// errorLabels maps error codes to their grid display strings
var errorLabels = map[ErrorCode]string{
	ErrorCodeDiv0:     "#DIV0",
	ErrorCodeValue:    "#VALUE!",
	ErrorCodeRef:      "#REF!",
	ErrorCodeName:     "#NAME?",
	ErrorCodeCircular: "#CIRCULAR",
	ErrorCodeParse:    "#ERROR",
}

// CellError preserves the error class for display in cells
type CellError struct {
	Code    ErrorCode
	Message string
}

func (e *CellError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", errorLabels[e.Code], e.Message)
	}
	return errorLabels[e.Code]
}

// Label returns the bare grid marker (e.g. "#DIV0") without the message
func (e *CellError) Label() string {
	return errorLabels[e.Code]
}

func NewCellError(code ErrorCode, message string) *CellError {
	return &CellError{
		Code:    code,
		Message: message,
	}
}

// asCellError returns the error if value is a *CellError, nil otherwise
func asCellError(value Primitive) *CellError {
	if err, ok := value.(*CellError); ok {
		return err
	}
	return nil
}

// CellState tracks where a cell sits in its lifecycle. Transitions happen
// only through SetCellValue, except formula-valid <-> formula-error which
// flip silently during recalculation as upstream values change.
type CellState uint8

const (
	StateEmpty CellState = iota
	StateLiteral
	StateFormula
	StateFormulaError
)

func (s CellState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLiteral:
		return "literal"
	case StateFormula:
		return "formula-valid"
	case StateFormulaError:
		return "formula-error"
	default:
		return "unknown"
	}
}

// coerceLiteral converts non-formula raw input to its natural type:
// number if numeric-looking, boolean literal if spelled as one, else the
// string as typed. Empty input is the empty cell.
func coerceLiteral(raw string) Primitive {
	if raw == "" {
		return nil
	}
	if num, err := strconv.ParseFloat(raw, 64); err == nil {
		return num
	}
	switch strings.ToUpper(raw) {
	case "VERDADEIRO", "TRUE":
		return true
	case "FALSO", "FALSE":
		return false
	}
	return raw
}

// toNumber converts value to number, returning ok=false if conversion fails.
// nil (empty cell) coerces to 0: the one blank-cell convention, applied
// everywhere arithmetic touches a reference.
func toNumber(value Primitive) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		num, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return num, true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

// toString converts value to string. nil (empty cell) coerces to "".
func toString(value Primitive) string {
	switch v := value.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "VERDADEIRO"
		}
		return "FALSO"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case *CellError:
		return v.Label()
	default:
		return fmt.Sprint(value)
	}
}

// Display formats a computed value the way a grid would show it: numbers
// without trailing zeros, booleans as VERDADEIRO/FALSO, errors as their
// marker, empty cells as the empty string.
func Display(value Primitive) string {
	return toString(value)
}

// isTruthy checks if value is truthy
func isTruthy(value Primitive) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case nil:
		return false
	default:
		return true
	}
}

// comparePrimitives compares two primitive values. returns -1 if left < right,
// 0 if equal, 1 if left > right, -2 if not comparable
func comparePrimitives(left, right Primitive) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	// numeric comparison first, including numeric-looking strings
	leftNum, leftIsNum := toNumber(left)
	rightNum, rightIsNum := toNumber(right)

	if leftIsNum && rightIsNum {
		if leftNum < rightNum {
			return -1
		} else if leftNum > rightNum {
			return 1
		}
		return 0
	}

	leftBool, leftIsBool := left.(bool)
	rightBool, rightIsBool := right.(bool)

	if leftIsBool && rightIsBool {
		if leftBool == rightBool {
			return 0
		} else if !leftBool && rightBool {
			return -1
		}
		return 1
	}

	leftStr := toString(left)
	rightStr := toString(right)

	if leftStr < rightStr {
		return -1
	} else if leftStr > rightStr {
		return 1
	}
	return 0
}

// valuesEqual reports whether two computed values are the same for the
// purposes of the changed-cell map returned by a write
func valuesEqual(a, b Primitive) bool {
	aErr, aIsErr := a.(*CellError)
	bErr, bIsErr := b.(*CellError)
	if aIsErr || bIsErr {
		if !aIsErr || !bIsErr {
			return false
		}
		return aErr.Code == bErr.Code && aErr.Message == bErr.Message
	}
	return a == b
}
