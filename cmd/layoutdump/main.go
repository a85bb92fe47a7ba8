// Command layoutdump disassembles layout strings.
//
// It reads a layout string from a file (raw bytes, or hex with -hex),
// prints the record listing, and with -i opens an interactive browser.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/wippyai/layout-runtime/inspect"
	"github.com/wippyai/layout-runtime/witness"
)

func main() {
	var (
		file        = flag.String("file", "", "Path to layout string file")
		hexInput    = flag.Bool("hex", false, "Treat input as hex text instead of raw bytes")
		summary     = flag.Bool("summary", false, "Print record counts per kind and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: layoutdump -file <layout.bin> [-hex] [-summary]")
		fmt.Fprintln(os.Stderr, "       layoutdump -file <layout.bin> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*file, *hexInput); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*file, *hexInput, *summary); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(file string, hexInput, summary bool) error {
	listing, err := load(file, hexInput)
	if err != nil {
		return err
	}

	fmt.Printf("Layout string: %s\n", file)
	fmt.Printf("Record section: %d bytes\n", listing.SectionSize)
	fmt.Printf("Records: %d\n\n", countRecords(listing.Records))

	if summary {
		printSummary(listing)
		return nil
	}

	fmt.Print(listing.String())
	return nil
}

func load(file string, hexInput bool) (*inspect.Listing, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	if hexInput {
		clean := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
				return -1
			}
			return r
		}, string(data))
		data, err = hex.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("decode hex: %w", err)
		}
	}

	listing, err := inspect.Disassemble(data)
	if err != nil {
		return nil, fmt.Errorf("disassemble: %w", err)
	}
	return listing, nil
}

func countRecords(records []inspect.Record) int {
	n := 0
	for _, rec := range records {
		n++
		for _, nested := range rec.Cases {
			n += countRecords(nested)
		}
	}
	return n
}

func printSummary(listing *inspect.Listing) {
	counts := make(map[witness.RefCountKind]int)
	var tally func(records []inspect.Record)
	tally = func(records []inspect.Record) {
		for _, rec := range records {
			counts[rec.Kind]++
			for _, nested := range rec.Cases {
				tally(nested)
			}
		}
	}
	tally(listing.Records)

	fmt.Println("Records per kind:")
	for kind := witness.RefCountKind(0); int(kind) < witness.NumRefCountKinds; kind++ {
		if n := counts[kind]; n > 0 {
			fmt.Printf("  %-32s %d\n", kind, n)
		}
	}
}
