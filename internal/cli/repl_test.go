package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"
)

type fakeExec struct {
	calls []string
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return nil
}

func (f *fakeExec) Scan(_ context.Context, args []string) error   { return f.record("scan", args) }
func (f *fakeExec) List(_ context.Context, args []string) error   { return f.record("list", args) }
func (f *fakeExec) Show(_ context.Context, args []string) error   { return f.record("show", args) }
func (f *fakeExec) Sync(_ context.Context, args []string) error   { return f.record("sync", args) }
func (f *fakeExec) Export(_ context.Context, args []string) error { return f.record("export", args) }
func (f *fakeExec) Status(_ context.Context, args []string) error { return f.record("status", args) }

func silenceREPL(t *testing.T) *[]string {
	t.Helper()
	var out []string
	origPrintln, origPrint := printlnFn, printFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, fmt.Sprint(a...))
		return 0, nil
	}
	printFn = func(a ...any) (int, error) {
		out = append(out, "PROMPT:"+fmt.Sprint(a...))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn, printFn = origPrintln, origPrint })
	return &out
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := silenceREPL(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"scan a.jpg b.png",
		"",
		"l",
		"list",
		"show 123",
		"sync",
		"export -",
		"status",
		"foobar",
		"exit",
		"list",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewScanner(input), false)

	want := []string{"scan a.jpg b.png", "list", "list", "show 123", "sync", "export -", "status"}
	if strings.Join(exec.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("calls = %v, want %v", exec.calls, want)
	}

	joined := strings.Join(*out, "\n")
	if !strings.Contains(joined, "Unknown command:foobar") && !strings.Contains(joined, "Unknown command: foobar") {
		t.Fatalf("unknown command not reported: %q", joined)
	}
	if strings.Contains(joined, "PROMPT:") {
		t.Fatalf("prompt printed in non-interactive mode: %q", joined)
	}
	if !strings.Contains(joined, "Bye!") {
		t.Fatalf("missing goodbye: %q", joined)
	}
}

func TestRunREPL_PromptWhenInteractive(t *testing.T) {
	out := silenceREPL(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "local-only, 2 pending" }, bufio.NewScanner(strings.NewReader("quit\n")), true)

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
	if len(*out) == 0 || (*out)[0] != "PROMPT:receipts (local-only, 2 pending)> " {
		t.Fatalf("prompt = %v", *out)
	}
}

func TestRunREPL_StopsOnEOFAndCancel(t *testing.T) {
	silenceREPL(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("sync")), false)
	if len(exec.calls) != 1 {
		t.Fatalf("calls = %v", exec.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec = &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("sync\n")), false)
	if len(exec.calls) != 0 {
		t.Fatalf("cancelled REPL ran %v", exec.calls)
	}
}
