package planilha

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFuncName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SOMA", "SOMA"},
		{"soma", "SOMA"},
		{"MÉDIA", "MEDIA"},
		{"média", "MEDIA"},
		{"MÁXIMO", "MAXIMO"},
		{"MÍNIMO", "MINIMO"},
		{"CONT.NÚM", "CONT.NUM"},
		{"cont.núm", "CONT.NUM"},
		{"PROCV", "PROCV"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeFuncName(tt.input))
		})
	}
}

func TestLookupFunc(t *testing.T) {
	assert.Equal(t, FuncSoma, lookupFunc("SOMA"))
	assert.Equal(t, FuncMedia, lookupFunc("MÉDIA"))
	assert.Equal(t, FuncMedia, lookupFunc("media"))
	assert.Equal(t, FuncContNum, lookupFunc("CONT.NUM"))
	assert.Equal(t, FuncContNum, lookupFunc("CONT.NÚM"))
	assert.Equal(t, FuncUnknown, lookupFunc("SUM")) // english names are not aliases
	assert.Equal(t, FuncUnknown, lookupFunc(""))
}

func TestAggregatesOverRange(t *testing.T) {
	e := newTestEngine(t)

	mustSet(t, e, "A1", "10")
	mustSet(t, e, "A2", "20")
	mustSet(t, e, "A3", "30")
	mustSet(t, e, "A4", "texto")
	// A5 left empty

	tests := []struct {
		formula string
		want    Primitive
	}{
		{"=SOMA(A1:A5)", 60.0},
		{"=MÉDIA(A1:A5)", 20.0},      // text and empty don't count
		{"=MÁXIMO(A1:A5)", 30.0},
		{"=MÍNIMO(A1:A5)", 10.0},
		{"=CONT.NÚM(A1:A5)", 3.0},    // numbers only
		{"=CONT.VALORES(A1:A5)", 4.0}, // text counts, empty doesn't
		{"=SOMA(A1:A3;100)", 160.0},  // scalars and ranges mix
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			mustSet(t, e, "C1", tt.formula)
			assert.Equal(t, tt.want, value(t, e, "C1"))
		})
	}
}

func TestMediaOfNoNumbersIsDiv0(t *testing.T) {
	e := newTestEngine(t)

	mustSet(t, e, "A1", "texto")
	mustSet(t, e, "B1", "=MÉDIA(A1:A3)")

	v, ok := value(t, e, "B1").(*CellError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeDiv0, v.Code)
}

func TestExtremumOfNoNumbersIsZero(t *testing.T) {
	e := newTestEngine(t)

	mustSet(t, e, "B1", "=MÁXIMO(A1:A3)")
	assert.Equal(t, 0.0, value(t, e, "B1"))
	mustSet(t, e, "B2", "=MÍNIMO(A1:A3)")
	assert.Equal(t, 0.0, value(t, e, "B2"))
}

func TestAggregatePropagatesErrorValues(t *testing.T) {
	e := newTestEngine(t)

	mustSet(t, e, "A1", "1")
	mustSet(t, e, "A2", "=1/0")
	mustSet(t, e, "B1", "=SOMA(A1:A2)")

	v, ok := value(t, e, "B1").(*CellError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeDiv0, v.Code)
}

func TestConcatenar(t *testing.T) {
	e := newTestEngine(t)

	mustSet(t, e, "A1", "mundo")
	mustSet(t, e, "A2", "42")
	mustSet(t, e, "B1", `=CONCATENAR("olá ";A1;" ";A2)`)

	assert.Equal(t, "olá mundo 42", value(t, e, "B1"))
}

func TestProcvExactMatch(t *testing.T) {
	e := newTestEngine(t)

	// lookup table: code in column A, name in B, price in C
	mustSet(t, e, "A1", "10")
	mustSet(t, e, "B1", "parafuso")
	mustSet(t, e, "C1", "0.5")
	mustSet(t, e, "A2", "20")
	mustSet(t, e, "B2", "porca")
	mustSet(t, e, "C2", "0.3")
	mustSet(t, e, "A3", "30")
	mustSet(t, e, "B3", "arruela")
	mustSet(t, e, "C3", "0.1")

	mustSet(t, e, "E1", "=PROCV(20;A1:C3;2;FALSO)")
	assert.Equal(t, "porca", value(t, e, "E1"))

	mustSet(t, e, "E2", "=PROCV(30;A1:C3;3;FALSO)")
	assert.Equal(t, 0.1, value(t, e, "E2"))

	// no exact match
	mustSet(t, e, "E3", "=PROCV(25;A1:C3;2;FALSO)")
	v, ok := value(t, e, "E3").(*CellError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeValue, v.Code)
}

func TestProcvApproximateMatch(t *testing.T) {
	e := newTestEngine(t)

	// sorted first column: grade thresholds
	mustSet(t, e, "A1", "0")
	mustSet(t, e, "B1", "F")
	mustSet(t, e, "A2", "60")
	mustSet(t, e, "B2", "D")
	mustSet(t, e, "A3", "70")
	mustSet(t, e, "B3", "C")
	mustSet(t, e, "A4", "80")
	mustSet(t, e, "B4", "B")
	mustSet(t, e, "A5", "90")
	mustSet(t, e, "B5", "A")

	// the fourth argument defaults to approximate
	mustSet(t, e, "D1", "=PROCV(75;A1:B5;2)")
	assert.Equal(t, "C", value(t, e, "D1"))

	mustSet(t, e, "D2", "=PROCV(90;A1:B5;2)")
	assert.Equal(t, "A", value(t, e, "D2"))

	// below the first key there is nothing to fall back on
	mustSet(t, e, "D3", "=PROCV(-5;A1:B5;2)")
	v, ok := value(t, e, "D3").(*CellError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeValue, v.Code)
}

func TestProcvColumnOutOfRange(t *testing.T) {
	e := newTestEngine(t)

	mustSet(t, e, "A1", "1")
	mustSet(t, e, "B1", "um")
	mustSet(t, e, "D1", "=PROCV(1;A1:B1;3)")

	v, ok := value(t, e, "D1").(*CellError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeRef, v.Code)
	assert.Equal(t, "#REF!", v.Label())

	mustSet(t, e, "D2", "=PROCV(1;A1:B1;0)")
	v, ok = value(t, e, "D2").(*CellError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeRef, v.Code)
}

func TestFunctionArityViolations(t *testing.T) {
	e := newTestEngine(t)

	// too many arguments is an evaluation-time #VALUE!
	mustSet(t, e, "A1", "=PROCV(1;B1:C2;2;FALSO;1)")
	v, ok := value(t, e, "A1").(*CellError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeValue, v.Code)

	mustSet(t, e, "A2", "=HOJE(1)")
	v, ok = value(t, e, "A2").(*CellError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeValue, v.Code)
}

func TestSeConditionForms(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		formula string
		want    Primitive
	}{
		{"=SE(VERDADEIRO;1;2)", 1.0},
		{"=SE(FALSO;1;2)", 2.0},
		{"=SE(5;\"sim\";\"não\")", "sim"},   // non-zero number is truthy
		{"=SE(0;\"sim\";\"não\")", "não"},
		{"=SE(\"\";1;2)", 2.0},             // empty string is falsy
		{"=SE(1>2;\"a\";\"b\")", "b"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			mustSet(t, e, "Z1", tt.formula)
			assert.Equal(t, tt.want, value(t, e, "Z1"))
		})
	}
}

func TestPercentAndPower(t *testing.T) {
	e := newTestEngine(t)

	mustSet(t, e, "A1", "=50%")
	assert.Equal(t, 0.5, value(t, e, "A1"))

	mustSet(t, e, "A2", "=200*10%")
	assert.Equal(t, 20.0, value(t, e, "A2"))

	mustSet(t, e, "A3", "=2^10")
	assert.Equal(t, 1024.0, value(t, e, "A3"))
}

func TestComparisonOperators(t *testing.T) {
	e := newTestEngine(t)

	mustSet(t, e, "A1", "5")
	mustSet(t, e, "A2", "texto")

	tests := []struct {
		formula string
		want    Primitive
	}{
		{"=A1=5", true},
		{"=A1<>5", false},
		{"=A1>4", true},
		{"=A1>=5", true},
		{"=A1<5", false},
		{"=A2=\"texto\"", true},
		{"=\"abc\"<\"abd\"", true},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			mustSet(t, e, "Z1", tt.formula)
			assert.Equal(t, tt.want, value(t, e, "Z1"))
		})
	}
}
