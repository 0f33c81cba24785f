package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapmux/tether/internal/logging"
)

var version = "dev"

func main() {
	_ = logging.Setup("info")

	if len(os.Args) < 2 {
		// No subcommand: chat (default).
		if err := runChat(os.Args[1:]); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "chat":
		if err := runChat(os.Args[2:]); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	case "echo":
		if err := runEcho(os.Args[2:]); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		// If the first arg starts with '-', treat as chat flags.
		if len(os.Args[1]) > 0 && os.Args[1][0] == '-' {
			if err := runChat(os.Args[1:]); err != nil {
				slog.Error("fatal", "error", err)
				os.Exit(1)
			}
			return
		}
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "usage: tether [chat|echo|version] [flags]\n")
		os.Exit(1)
	}
}
