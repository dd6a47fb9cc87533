package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/celulas/planilha"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "planilha [script]",
		Short: "Evaluate a sheet script and print the computed cells",
		Long: `planilha reads a sheet script (one "ADDRESS=input" entry per line,
"-" or no argument for stdin), applies every entry through the formula
engine, and prints the computed value of each cell.

Formulas start with '=' after the address separator, so a line like
C1==A1*2 writes the formula =A1*2 into C1. Blank lines and lines
starting with # are ignored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: run,
	}
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every write and recalculation")
	root.SilenceUsage = true

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := zerolog.Nop()
	if verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	engine := planilha.New(planilha.WithLogger(log))

	written := make(map[string]struct{})
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		address, raw, found := strings.Cut(line, "=")
		if !found {
			return fmt.Errorf("line %d: expected ADDRESS=input, got %q", lineNo, line)
		}
		address = strings.TrimSpace(address)

		if _, err := engine.SetCellValue(address, raw); err != nil {
			// parse errors leave the #ERROR marker in the cell and the
			// script keeps going; anything else stops it
			if _, isParse := err.(*planilha.ParseError); isParse {
				fmt.Fprintf(cmd.ErrOrStderr(), "line %d: %s: %v\n", lineNo, address, err)
			} else {
				return fmt.Errorf("line %d: %s: %w", lineNo, address, err)
			}
		}
		written[strings.ToUpper(address)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	addresses := make([]string, 0, len(written))
	for address := range written {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	out := cmd.OutOrStdout()
	for _, address := range addresses {
		value, err := engine.GetCellValue(address)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\n", address, planilha.Display(value))
	}
	return nil
}
