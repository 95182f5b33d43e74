// Command lox is the REPL and file runner for the Lox bytecode VM.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"loxvm/internal/compiler"
	"loxvm/internal/vm"
)

func main() {
	disassemble := flag.Bool("disassemble", false, "print bytecode disassembly before running")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: clox [path]\n")
	}
	flag.Parse()

	args := flag.Args()
	switch len(args) {
	case 0:
		repl(*disassemble)
	case 1:
		runFile(args[0], *disassemble)
	default:
		fmt.Fprintf(os.Stderr, "Usage: clox [path]\n")
		os.Exit(64)
	}
}

func repl(disassemble bool) {
	machine := vm.New()
	fmt.Printf("Lox REPL (session %s)\n", machine.SessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			break
		}

		c, ok := compiler.Compile(line, machine.Strings(), os.Stderr)
		if !ok {
			continue
		}
		if disassemble {
			c.Disassemble("repl")
		}
		if err := machine.Interpret(c); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func runFile(path string, disassemble bool) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not read file %q: %v\n", path, err)
		os.Exit(74)
	}

	machine := vm.New()
	c, ok := compiler.Compile(string(source), machine.Strings(), os.Stderr)
	if !ok {
		os.Exit(65)
	}

	if disassemble {
		c.Disassemble(path)
	}

	if err := machine.Interpret(c); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(70)
	}
}
