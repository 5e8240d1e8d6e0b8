package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively against one open database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, a)
		},
	}
}

func runShell(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(a.in)

	fmt.Fprintln(out, "Welcome to the Library Management System!")
	fmt.Fprintln(out, "Commands: book, member, lend, return, lendings, overdue, report, metrics, help, exit")

	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			break
		}
		args, err := splitArgs(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "shell":
			fmt.Fprintln(out, "Already in the shell.")
			continue
		}

		// A fresh tree per line keeps flag values from leaking between commands.
		line := newRootCmd(a)
		line.SetArgs(args)
		line.SetIn(a.in)
		line.SetOut(out)
		line.SetErr(out)
		if err := line.ExecuteContext(cmd.Context()); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

// splitArgs splits a shell line on whitespace, keeping single- or
// double-quoted runs together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				args = append(args, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inToken {
		args = append(args, cur.String())
	}
	return args, nil
}
