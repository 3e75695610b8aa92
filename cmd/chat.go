package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/studypal/studypal/internal/app"
	"github.com/studypal/studypal/internal/config"
)

// runChat starts the interactive REPL.
func runChat(ctx context.Context, cfg *config.Config) error {
	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("starting application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	userID := os.Getenv("STUDYPAL_USER")
	if userID == "" {
		userID = "local"
	}

	repl := &chatLoop{
		app:      a,
		userID:   userID,
		threadID: uuid.NewString(),
		out:      os.Stdout,
	}
	return repl.run(ctx, os.Stdin)
}

// chatLoop is the interactive session: one thread at a time, slash
// commands for everything that is not a message.
type chatLoop struct {
	app      *app.App
	userID   string
	threadID string
	out      io.Writer
}

func (c *chatLoop) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(c.out, "StudyPal v%s. Ask a study question, or /help for commands.\n", AppVersion)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit := c.command(ctx, line)
			if quit {
				break
			}
			continue
		}

		reply, err := c.app.Facade.HandleMessage(ctx, c.userID, c.threadID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(c.out, "[%s] %s\n\n", reply.Agent, reply.Text)
	}
	return scanner.Err()
}

// command handles one slash command; returns true to quit.
func (c *chatLoop) command(ctx context.Context, line string) bool {
	cmd, args, _ := strings.Cut(line, " ")

	switch cmd {
	case "/exit", "/quit":
		fmt.Fprintln(c.out, "Good luck with your studies!")
		return true

	case "/help":
		printHelp()

	case "/new":
		c.threadID = uuid.NewString()
		fmt.Fprintln(c.out, "Started a new conversation thread.")

	case "/history":
		msgs, err := c.app.Facade.History(ctx, c.threadID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		if len(msgs) == 0 {
			fmt.Fprintln(c.out, "No messages in this thread yet.")
			break
		}
		for _, m := range msgs {
			who := string(m.Role)
			if m.Agent != "" {
				who = m.Agent
			}
			fmt.Fprintf(c.out, "%s: %s\n", who, m.Text)
		}

	case "/add":
		topic, text, ok := parseAddArgs(args)
		if !ok {
			fmt.Fprintln(c.out, "Usage: /add <topic>: <text>")
			break
		}
		if err := c.app.Documents.Add(ctx, c.userID, topic, text); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		fmt.Fprintf(c.out, "Added study material under %q.\n", topic)

	default:
		fmt.Fprintf(c.out, "Unknown command %s; /help lists the available ones.\n", cmd)
	}
	return false
}

// parseAddArgs splits "/add calculus: the chain rule says ..." arguments
// into topic and content.
func parseAddArgs(args string) (topic, text string, ok bool) {
	topic, text, found := strings.Cut(args, ":")
	topic = strings.TrimSpace(topic)
	text = strings.TrimSpace(text)
	if !found || topic == "" || text == "" {
		return "", "", false
	}
	return topic, text, true
}
