package main

import (
	"os"
	"path/filepath"
	"strings"

	"prdraft/internal/cli"
)

func isDraftFile(s string) bool {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(s))) {
	case ".md", ".markdown":
		return true
	}
	return false
}

func rewriteDraftFileArgs(argv []string) []string {
	// Convenience: `prdraft <file>.md` works like `prdraft draft parse <file>.md`.
	//
	// Cobra treats the first non-flag token as a subcommand, so argv is rewritten before
	// parsing. Persistent flags may come first (`prdraft --format yaml X.md`), so look for
	// the first positional token, not argv[1].
	if len(argv) < 2 {
		return argv
	}

	// Unknown flags are skipped without their value so the file name is never consumed.
	valueFlags := map[string]bool{
		"--config":    true,
		"--addr":      true,
		"--dir":       true,
		"--format":    true,
		"--log-level": true,
	}

	rewrite := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "draft", "parse")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isDraftFile(argv[i+1]) {
				return rewrite(i + 1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if isDraftFile(a) {
			return rewrite(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDraftFileArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
