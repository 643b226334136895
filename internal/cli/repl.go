package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn and printFn are test seams for REPL output.
var (
	printlnFn = fmt.Println
	printFn   = fmt.Print
)

// execIface is the command surface the REPL dispatches to. App satisfies it.
type execIface interface {
	Scan(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
}

// runREPL reads commands line by line and dispatches them to a until EOF,
// "exit" or "quit". The prompt, showing statusFn, is printed only when
// interactive is set.
//
// Commands:
//
//	help             list commands
//	scan <file>...   parse receipt images
//	(l)ist           list receipts
//	show <id>        show one receipt
//	sync             push local-only receipts
//	export [dir|-]   write a CSV export
//	status           show mode and pending count
//	exit | quit      leave
//
// Handlers print their own errors, so they are ignored here.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, interactive bool) {
	for {
		if ctx.Err() != nil {
			return
		}
		if interactive {
			printFn(fmt.Sprintf("receipts (%s)> ", statusFn()))
		}
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands: scan <file>..., (l)ist, show <id>, sync, export [dir|-], status, exit")
		case "scan":
			_ = a.Scan(ctx, args)
		case "l", "list":
			_ = a.List(ctx, args)
		case "show":
			_ = a.Show(ctx, args)
		case "sync":
			_ = a.Sync(ctx, args)
		case "export":
			_ = a.Export(ctx, args)
		case "status":
			_ = a.Status(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
