package vm

import (
	"bytes"
	"strings"
	"testing"

	"loxvm/internal/compiler"
)

type vmTestCase struct {
	input  string
	output string
}

func runSource(t *testing.T, m *VM, source string) (string, error) {
	t.Helper()
	var stderr bytes.Buffer
	c, ok := compiler.Compile(source, m.Strings(), &stderr)
	if !ok {
		t.Fatalf("compile error for %q: %s", source, stderr.String())
	}
	var stdout bytes.Buffer
	m.out = &stdout
	err := m.Interpret(c)
	return stdout.String(), err
}

func runVMTests(t *testing.T, tests []vmTestCase) {
	t.Helper()
	for _, tt := range tests {
		m := New()
		got, err := runSource(t, m, tt.input)
		if err != nil {
			t.Fatalf("input %q: runtime error: %v", tt.input, err)
		}
		if got != tt.output {
			t.Errorf("input %q: output = %q, want %q", tt.input, got, tt.output)
		}
	}
}

func TestArithmeticAndPrint(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"print 1 + 4 * 3;", "13\n"},
		{"print 5 * (123 + 1);", "620\n"},
		{"print 2 * (5 + 10) + 3 * 3 * 3 - 10;", "47\n"},
	})
}

func TestBlockScopedLocal(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{`{ var a = 10; var b = 20; a = b; print a; }`, "20\n"},
	})
}

func TestStringConcatAndInterning(t *testing.T) {
	m := New()
	got, err := runSource(t, m, `print "Hello, " + "world!";`)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if got != "Hello, world!\n" {
		t.Fatalf("output = %q, want %q", got, "Hello, world!\n")
	}

	one := m.Strings().FindString("Hello, ", hashOf("Hello, "))
	if one == nil {
		t.Fatal("expected \"Hello, \" to be interned after first run")
	}

	// Running a second program referencing the same literal in the
	// same session reuses the interned record.
	_, err = runSource(t, m, `print "Hello, " + "again";`)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	two := m.Strings().FindString("Hello, ", hashOf("Hello, "))
	if two != one {
		t.Fatal("expected the same interned StrRef across compiles in one session")
	}
}

func hashOf(s string) uint32 {
	const offset, prime uint32 = 2166136261, 16777619
	h := offset
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

func TestUndefinedGlobalAssignmentDoesNotCreateIt(t *testing.T) {
	m := New()
	_, err := runSource(t, m, "a = 1;")
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "Undefined variable 'a'.") {
		t.Fatalf("error = %v, want it to mention undefined variable 'a'", err)
	}

	name := m.strings.FindString("a", hashOf("a"))
	if name == nil {
		t.Fatal("compiling the identifier constant should have interned 'a'")
	}
	if _, ok := m.globals.Get(name); ok {
		t.Fatal("globals table must not contain 'a' after a failed assignment")
	}
}

func TestShortCircuitAndNeverEvaluatesRHS(t *testing.T) {
	m := New()
	got, err := runSource(t, m, "print false and (1/0);")
	if err != nil {
		t.Fatalf("unexpected runtime error (RHS should never run): %v", err)
	}
	if got != "false\n" {
		t.Fatalf("output = %q, want %q", got, "false\n")
	}
}

func TestShortCircuitOr(t *testing.T) {
	m := New()
	got, err := runSource(t, m, "print true or (1/0);")
	if err != nil {
		t.Fatalf("unexpected runtime error (RHS should never run): %v", err)
	}
	if got != "true\n" {
		t.Fatalf("output = %q, want %q", got, "true\n")
	}
}

func TestWhileLoop(t *testing.T) {
	m := New()
	got, err := runSource(t, m, "var i = 0; while (i < 3) { print i; i = i + 1; }")
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if got != "0\n1\n2\n" {
		t.Fatalf("output = %q, want %q", got, "0\n1\n2\n")
	}
}

func TestForLoop(t *testing.T) {
	m := New()
	got, err := runSource(t, m, "for (var i = 0; i < 3; i = i + 1) { print i; }")
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if got != "0\n1\n2\n" {
		t.Fatalf("output = %q, want %q", got, "0\n1\n2\n")
	}
}

func TestStatementsAreStackNeutral(t *testing.T) {
	m := New()
	_, err := runSource(t, m, `
		var a = 1;
		{ var b = 2; print a + b; }
		if (a == 1) { print "one"; } else { print "other"; }
		while (a < 3) { a = a + 1; }
		print a;
	`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if m.stackTop != 0 {
		t.Fatalf("stack not empty after top-level statements: stackTop = %d", m.stackTop)
	}
}

func TestOperandTypeErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`print -"x";`, "Operand must be a number."},
		{`print 1 + true;`, "Operands must be two numbers or two strings."},
		{`print 1 < "x";`, "Operands must be numbers."},
	}
	for _, tt := range tests {
		m := New()
		_, err := runSource(t, m, tt.input)
		if err == nil {
			t.Fatalf("input %q: expected runtime error", tt.input)
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("input %q: error = %v, want it to contain %q", tt.input, err, tt.want)
		}
	}
}

func TestEqualityIsConsistentWithNotEqual(t *testing.T) {
	m := New()
	got, err := runSource(t, m, `print (1 == 1) == !(1 != 1);`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if got != "true\n" {
		t.Fatalf("output = %q, want true", got)
	}
}
