// Command orange orchestrates long-running coding agents across git
// worktrees and tmux sessions.
package main

import (
	"os"

	"github.com/orangehq/orange/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
