// Package cmd contains the CLI entry point: an interactive chat REPL on
// top of the session facade, plus version and help output.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/studypal/studypal/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the StudyPal CLI.
func Execute() error {
	// --version and --help work even with an invalid config.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersionInfo()
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runChat(ctx, cfg)
}

func printVersionInfo() {
	fmt.Printf("StudyPal v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}

func printHelp() {
	fmt.Println("StudyPal - multi-agent study assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  studypal             Start interactive chat (default)")
	fmt.Println("  studypal --version   Show version information")
	fmt.Println("  studypal --help      Show this help")
	fmt.Println()
	fmt.Println("Interactive commands:")
	fmt.Println("  /help                Show available commands")
	fmt.Println("  /new                 Start a new conversation thread")
	fmt.Println("  /history             Show the current thread's transcript")
	fmt.Println("  /add <topic>: <text> Ingest study material for retrieval")
	fmt.Println("  /exit, /quit         Leave StudyPal")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  GEMINI_API_KEY       Required for the default gemini provider")
	fmt.Println("  STUDYPAL_USER        User ID for this session (default: local)")
	fmt.Println("  STUDYPAL_*           Config overrides, see config package")
}
