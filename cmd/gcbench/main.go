// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.

// gcbench drives a gc.Heap outside of any virtual machine: it runs a
// synthetic allocation workload against it and reports before/after
// statistics, or, with -interactive, offers a line-oriented console for
// poking the collector by hand.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/gmofishsauce/wut4/gc"
)

var (
	stackWords  = flag.Uint64("stack-words", 1024, "Stack region capacity, in words")
	youngWords  = flag.Uint64("young-words", 16384, "Each young semi-space's capacity, in words")
	oldWords    = flag.Uint64("old-words", 16384, "Old generation capacity, in words")
	traceFile   = flag.String("trace", "", "Write collector trace to file")
	interactive = flag.Bool("interactive", false, "Run an interactive heap inspector instead of the benchmark workload")
	showVersion = flag.Bool("version", false, "Show version and exit")
)

const version = "1.0.0"

var savedTermState *term.State

// setupTerminal puts the terminal in raw mode for the interactive
// inspector, which reads and echoes its command lines itself.
func setupTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	state, err := term.GetState(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to get terminal state: %v", err)
	}
	savedTermState = state
	if _, err := term.MakeRaw(int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("failed to set raw mode: %v", err)
	}
	return nil
}

// restoreTerminal restores the terminal to its original state.
func restoreTerminal() {
	if savedTermState != nil && term.IsTerminal(int(os.Stdin.Fd())) {
		term.Restore(int(os.Stdin.Fd()), savedTermState)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("gcbench v%s\n", version)
		os.Exit(0)
	}

	h := gc.NewHeap(gc.WordSize(*stackWords), gc.WordSize(*youngWords), gc.WordSize(*oldWords), true)

	if *traceFile != "" {
		f, err := os.Create(*traceFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		h.SetTracer(gc.NewTracer(f))
		fmt.Fprintf(f, "gcbench trace\n")
		fmt.Fprintf(f, "stack=%d young-side=%d old=%d\n", *stackWords, *youngWords, *oldWords)
		fmt.Fprintf(f, "========================================\n\n")
	}

	if *interactive {
		runInteractive(h)
		return
	}

	runWorkload(h)
}

// runWorkload exercises the collector end to end without any VM: one
// stack frame per round holding heap objects, some mutable, some forming a
// cycle, collected between rounds. This is gcbench's non-interactive
// default and the thing CI would run as a smoke test.
func runWorkload(h *gc.Heap) {
	const rounds = 4
	startTime := time.Now()

	for r := 0; r < rounds; r++ {
		err := h.Scope(func() error {
			root, err := h.AllocStack(2, 2)
			if err != nil {
				return err
			}
			a, err := h.AllocHeap(1, 4, true)
			if err != nil {
				return err
			}
			b, err := h.AllocHeap(1, 2, true)
			if err != nil {
				return err
			}
			h.WritePointer(a, 0, b)
			h.WritePointer(b, 0, a)
			h.WritePointer(root, 0, a)
			h.WritePointer(root, 1, b)

			// Allocate and immediately drop some garbage to give the
			// collector something to reclaim.
			for i := 0; i < 8; i++ {
				if _, err := h.AllocHeap(0, 3, false); err != nil {
					return err
				}
			}

			stats, err := h.CollectMinor()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "round %d: young %d -> %d words (capacity %d)\n",
				r, stats.InitialLen, stats.FinalLen, stats.FinalCapacity)
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "\n========================================\n")
	fmt.Fprintf(os.Stderr, "Rounds: %d\n", rounds)
	fmt.Fprintf(os.Stderr, "Time: %v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "Final young heap: %d words\n", h.YoungHeapSize())
	fmt.Fprintf(os.Stderr, "Final stack: %d words\n", h.StackSize())
	fmt.Fprintf(os.Stderr, "Final old generation: %d words\n", h.OldHeapSize())
}

// runInteractive puts the terminal in raw mode and reads one
// line-buffered command at a time, each a word naming an operation and
// its arguments (e.g. "alloc 1 3 false", "push", "pop", "collect").
func runInteractive(h *gc.Heap) {
	if err := setupTerminal(); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up terminal: %v\n", err)
		os.Exit(1)
	}
	defer restoreTerminal()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		restoreTerminal()
		os.Exit(130)
	}()

	fmt.Fprintf(os.Stderr, "gcbench interactive heap inspector (stack=%d young-side=%d old=%d)\r\n",
		h.Config().StackCapacity, h.Config().YoungSideCapacity, h.Config().OldCapacity)
	fmt.Fprintf(os.Stderr, "commands: alloc <pc> <ts> [mutable], stackalloc <pc> <ts>, push, pop, collect, size, quit\r\n")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprintf(os.Stderr, "> ")
		line, err := readLine(reader)
		if err != nil {
			break
		}
		if !dispatch(h, line) {
			break
		}
	}
}

// readLine reads a CRLF- or LF-terminated line from a raw-mode
// terminal, echoing each byte back since raw mode disables the
// terminal's own echo.
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\r' || b == '\n' {
			fmt.Fprintf(os.Stderr, "\r\n")
			return sb.String(), nil
		}
		os.Stderr.Write([]byte{b})
		sb.WriteByte(b)
	}
}

func dispatch(h *gc.Heap, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "quit", "q":
		return false
	case "push":
		report(h.FramePush())
	case "pop":
		report(h.FramePop())
	case "collect", "c":
		stats, err := h.CollectMinor()
		if err != nil {
			report(err)
			return true
		}
		fmt.Fprintf(os.Stderr, "young %d -> %d words (capacity %d)\r\n", stats.InitialLen, stats.FinalLen, stats.FinalCapacity)
	case "size":
		fmt.Fprintf(os.Stderr, "stack=%d young=%d old=%d\r\n", h.StackSize(), h.YoungHeapSize(), h.OldHeapSize())
	case "alloc":
		pc, ts, mutable, err := parseAllocArgs(fields[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\r\n", err)
			return true
		}
		p, err := h.AllocHeap(pc, ts, mutable)
		if err != nil {
			report(err)
			return true
		}
		fmt.Fprintf(os.Stderr, "allocated at %d\r\n", p)
	case "stackalloc":
		pc, ts, _, err := parseAllocArgs(append(fields[1:], "false"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\r\n", err)
			return true
		}
		p, err := h.AllocStack(pc, ts)
		if err != nil {
			report(err)
			return true
		}
		fmt.Fprintf(os.Stderr, "allocated at %d\r\n", p)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\r\n", fields[0])
	}
	return true
}

func parseAllocArgs(args []string) (pc, ts uint8, mutable bool, err error) {
	if len(args) < 2 {
		return 0, 0, false, fmt.Errorf("usage: alloc <pointer-count> <total-size> [mutable]")
	}
	pcv, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, false, fmt.Errorf("bad pointer count: %v", err)
	}
	tsv, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, false, fmt.Errorf("bad total size: %v", err)
	}
	if len(args) > 2 {
		mutable, _ = strconv.ParseBool(args[2])
	}
	return uint8(pcv), uint8(tsv), mutable, nil
}

func report(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\r\n", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "gcbench - drive the gc collector without a virtual machine\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nWith -interactive, connects a line-oriented heap inspector to stdin/stderr.\n")
}
