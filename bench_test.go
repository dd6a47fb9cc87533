package planilha

import (
	"fmt"
	"strconv"
	"testing"
)

// chain: A1 feeds A2 feeds A3 ... writes to A1 ripple through every cell
func BenchmarkChainRecalculation(b *testing.B) {
	e := New()
	const depth = 100

	if _, err := e.SetCellValue("A1", "1"); err != nil {
		b.Fatal(err)
	}
	for i := 2; i <= depth; i++ {
		formula := fmt.Sprintf("=A%d+1", i-1)
		if _, err := e.SetCellValue("A"+strconv.Itoa(i), formula); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.SetCellValue("A1", strconv.Itoa(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// fan-out: many formulas all read the same cell
func BenchmarkFanOutRecalculation(b *testing.B) {
	e := New()
	const width = 200

	if _, err := e.SetCellValue("A1", "1"); err != nil {
		b.Fatal(err)
	}
	for i := 1; i <= width; i++ {
		if _, err := e.SetCellValue("B"+strconv.Itoa(i), "=A1*2"); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.SetCellValue("A1", strconv.Itoa(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// one aggregate over a large range, recalculated as a member changes
func BenchmarkLargeRangeSoma(b *testing.B) {
	e := New()
	const rows = 1000

	for i := 1; i <= rows; i++ {
		if _, err := e.SetCellValue("A"+strconv.Itoa(i), strconv.Itoa(i)); err != nil {
			b.Fatal(err)
		}
	}
	if _, err := e.SetCellValue("C1", fmt.Sprintf("=SOMA(A1:A%d)", rows)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.SetCellValue("A500", strconv.Itoa(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseFormula(b *testing.B) {
	formulas := []string{
		"=A1+B2*C3",
		"=SOMA(A1:A100)",
		"=SE(A1>10;PROCV(A1;B1:D100;2);MÉDIA(A1:A10))",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, formula := range formulas {
			if _, perr := parseFormula(formula); perr != nil {
				b.Fatal(perr)
			}
		}
	}
}

func BenchmarkRecalculateAll(b *testing.B) {
	e := New()
	const rows = 200

	for i := 1; i <= rows; i++ {
		if _, err := e.SetCellValue("A"+strconv.Itoa(i), strconv.Itoa(i)); err != nil {
			b.Fatal(err)
		}
		if _, err := e.SetCellValue("B"+strconv.Itoa(i), fmt.Sprintf("=A%d*2", i)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.RecalculateAll()
	}
}
