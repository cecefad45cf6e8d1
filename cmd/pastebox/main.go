package main

import (
	"os"
	"strings"

	"pastebox/internal/cli"
	"pastebox/internal/store"

	"github.com/spf13/cobra"
)

func rewriteDirectShowArgs(argv []string, commands map[string]bool) []string {
	// Convenience: `pastebox <name>` works like `pastebox show <name>`.
	//
	// Cobra treats the first non-flag token as a subcommand, so we rewrite argv
	// before parsing. Persistent flags may come first, so look for the first
	// positional token rather than argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--config": true,
		"--dir":    true,
		"--secret": true,
		"--format": true,
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}

		if commands[a] || !store.ValidName(a) {
			return argv
		}
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:i]...)
		out = append(out, "show")
		out = append(out, argv[i:]...)
		return out
	}
	return argv
}

func commandNames(root *cobra.Command) map[string]bool {
	names := map[string]bool{"help": true, "completion": true}
	for _, c := range root.Commands() {
		names[c.Name()] = true
		for _, a := range c.Aliases {
			names[a] = true
		}
	}
	return names
}

func main() {
	cmd := cli.NewRootCmd()
	cmd.SetArgs(rewriteDirectShowArgs(os.Args, commandNames(cmd))[1:])
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
