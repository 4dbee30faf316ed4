// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// jitrt_inspect resolves the symbolic shapes of a function call and exercises the JIT memory mapper,
// printing reports of both.
//
// Example:
//
//	jitrt_inspect -signature="?x8,?" -operands="4x8,4" -purpose=code -size=100
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/jitrt/internal/workerspool"
	"github.com/gomlx/jitrt/pkg/jit/memmapper"
	"github.com/gomlx/jitrt/pkg/jit/symbolic"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagSignature = flag.String("signature", "?x?,?",
		"Function signature: comma-separated operand types, each either '*' (unranked), 'scalar' "+
			"or axes separated by 'x', with '?' for dynamic axes.")
	flagConstraints = flag.String("constraints", "",
		"Comma-separated constraint per operand: resolved, rank, shape or value. Defaults to resolved for all operands.")
	flagOperands = flag.String("operands", "",
		"Comma-separated runtime shapes of the operands, e.g. '4x8,4'. If empty the symbolic shapes report is skipped.")
	flagLabel   = flag.String("label", "", "Label of the JIT code memory. Defaults to a unique name.")
	flagPurpose = flag.String("purpose", "code", "Purpose of the memory allocation: code, ro_data or rw_data.")
	flagSize    = flag.Int("size", 100, "Number of bytes to allocate. If <= 0 the memory report is skipped.")
	flagStress  = flag.Int("stress", 0, "Number of concurrent allocate/protect/release cycles to run.")
	flagPlain   = flag.Bool("plain", false, "Disable colors in the reports.")
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	rowStyle   = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if withHeader && row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if col == 0 {
				return rowStyle.Align(lipgloss.Right)
			}
			return rowStyle.Align(lipgloss.Left)
		})
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagPlain {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	label := *flagLabel
	if label == "" {
		label = "jitrt_inspect_" + uuid.NewString()
	}

	if *flagOperands != "" {
		if err := reportShapes(); err != nil {
			klog.Exitf("Failed to resolve symbolic shapes: %+v", err)
		}
	}
	purpose, err := memmapper.PurposeString(*flagPurpose)
	if err != nil {
		klog.Exitf("Invalid -purpose=%q: %v", *flagPurpose, err)
	}
	strategy := memmapper.New(label)
	if *flagSize > 0 {
		if err := reportMemory(strategy, label, purpose, *flagSize); err != nil {
			klog.Exitf("Memory mapper failed: %+v", err)
		}
	}
	if *flagStress > 0 {
		if err := stress(strategy, purpose, *flagStress); err != nil {
			klog.Exitf("Stress test failed: %+v", err)
		}
	}
}

func reportShapes() error {
	signature, err := symbolic.ParseSignature(*flagSignature)
	if err != nil {
		return err
	}
	constraints := make([]symbolic.Constraint, len(signature))
	if *flagConstraints != "" {
		constraints, err = symbolic.ParseConstraints(*flagConstraints)
		if err != nil {
			return err
		}
	}
	resolver, err := symbolic.NewResolver(signature, constraints)
	if err != nil {
		return err
	}
	parts := strings.Split(*flagOperands, ",")
	operands := make([]symbolic.Operand, len(parts))
	for ii, part := range parts {
		dims, err := symbolic.ParseDims(part)
		if err != nil {
			return errors.WithMessagef(err, "operand #%d", ii)
		}
		operands[ii] = dims
	}
	shapes, err := resolver.Resolve(operands)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Symbolic Shapes"))
	table := newTable(true).Headers("#", "Signature", "Constraint", "Runtime", "Symbolic", "Normalized")
	for ii, shape := range shapes {
		table.Row(fmt.Sprint(ii), signature[ii].String(), constraints[ii].String(),
			fmt.Sprint(operands[ii]), shape.String(), symbolic.Normalize(shape).String())
	}
	fmt.Println(table.Render())
	fmt.Printf("Cache key: %q\n", symbolic.Key(shapes))
	return nil
}

func reportMemory(strategy memmapper.Strategy, label string, purpose memmapper.Purpose, size int) error {
	block, err := strategy.AllocateMappedMemory(purpose, size, memmapper.ProtRead|memmapper.ProtWrite)
	if err != nil {
		return err
	}
	strategyName := "anonymous"
	if _, ok := strategy.(*memmapper.Mapper); ok {
		strategyName = fmt.Sprintf("memfd %q", label)
	}

	fmt.Println(titleStyle.Render("JIT Memory"))
	table := newTable(true).Headers("Step", "Address", "Size", "Protection", "Mapping")
	addRow := func(step string) {
		table.Row(step, fmt.Sprintf("0x%x", block.Address()), humanize.IBytes(uint64(block.Size())),
			block.Protection().String(), mapsLine(block.Address()))
	}
	addRow("allocate " + purpose.String())

	// Write a "ret" instruction, then make it read-only (and executable for code).
	copy(block.Bytes(), []byte{0xC3})
	finalProtection := memmapper.ProtRead
	if purpose == memmapper.PurposeCode {
		finalProtection |= memmapper.ProtExec
	} else if purpose == memmapper.PurposeRWData {
		finalProtection |= memmapper.ProtWrite
	}
	if err = strategy.ProtectMappedMemory(&block, finalProtection); err != nil {
		return err
	}
	addRow("protect")
	if err = strategy.ReleaseMappedMemory(&block); err != nil {
		return err
	}
	fmt.Println(table.Render())
	fmt.Printf("Strategy: %s, released.\n", strategyName)
	return nil
}

// mapsLine returns the entry of /proc/self/maps that contains addr, if available.
func mapsLine(addr uintptr) string {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return "(unavailable)"
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		var start, end uintptr
		if _, err := fmt.Sscanf(line, "%x-%x", &start, &end); err != nil {
			continue
		}
		if addr >= start && addr < end {
			return line
		}
	}
	return "(not found)"
}

// stress runs numCycles allocate/protect/release cycles, in parallel, and returns the first error.
func stress(strategy memmapper.Strategy, purpose memmapper.Purpose, numCycles int) error {
	bar := progressbar.NewOptions(numCycles,
		progressbar.OptionSetDescription("allocate/protect/release"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("cycles"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII))

	pool := workerspool.New()
	for cycle := range numCycles {
		pool.Go(func() error {
			defer func() { _ = bar.Add(1) }()
			return stressCycle(strategy, purpose, cycle)
		})
	}
	err := pool.Wait()
	must.M(bar.Finish())
	fmt.Println()
	return err
}

func stressCycle(strategy memmapper.Strategy, purpose memmapper.Purpose, cycle int) error {
	size := 1 + (cycle*37)%(1<<16)
	block, err := strategy.AllocateMappedMemory(purpose, size, memmapper.ProtRead|memmapper.ProtWrite)
	if err != nil {
		return errors.WithMessagef(err, "cycle %d", cycle)
	}
	block.Bytes()[size-1] = byte(cycle)
	if err = strategy.ProtectMappedMemory(&block, memmapper.ProtRead); err != nil {
		return errors.WithMessagef(err, "cycle %d", cycle)
	}
	return errors.WithMessagef(strategy.ReleaseMappedMemory(&block), "cycle %d", cycle)
}
