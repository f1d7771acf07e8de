// Package command defines the tokvault-cli command tree on urfave/cli.
//
// Commands that talk to a server resolve a connection from the selected
// profile, then flags and TOKVAULT_* environment variables. Output goes
// to the app writer in the format chosen with --output.
package command
