// Package cli provides the receiptkeeper command-line client.
//
// It wires configuration, the local store, the optional remote tier, the
// ingest pipeline and the receipt service, then runs either a single cobra
// subcommand or an interactive REPL.
//
// Commands:
//   - scan <image>...  parse receipt images and store the records
//   - list             show every receipt with its sync status
//   - show <id>        show one receipt with its line items
//   - sync             push local-only receipts to the remote tier
//   - export [dir]     write a CSV export ("-" for stdout)
//   - status           show the storage mode and pending count
//   - repl             interactive loop over the same commands
//   - version          print build information
package cli
