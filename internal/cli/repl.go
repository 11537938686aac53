package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/channel"
	"github.com/spetersoncode/codison/internal/app"
	"github.com/spetersoncode/codison/output"
)

const replPrompt = "You: "

// runREPL reads prompts line by line and renders each run on the console
// before asking for the next.
func runREPL(ctx context.Context, s *app.Session, in io.Reader, out, errOut io.Writer) error {
	sub := s.Channel().Subscribe()
	defer sub.Close()
	turns := output.NewConsole(out, errOut).Follow(sub.Events())

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, replPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "history":
			printHistory(out, s.History().Messages())
			continue
		case "clear":
			if err := s.History().Clear(ctx); err != nil {
				fmt.Fprintf(errOut, "\n[ERROR]: %v\n\n", err)
				continue
			}
			fmt.Fprintln(out, "History cleared.")
			continue
		}

		if err := s.Channel().Submit(channel.RunRequest{Prompt: line}); err != nil {
			fmt.Fprintf(errOut, "\n[ERROR]: %v\n\n", err)
			continue
		}
		select {
		case _, ok := <-turns:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printHistory(w io.Writer, msgs []codison.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "History is empty.")
		return
	}
	for _, m := range msgs {
		switch m := m.(type) {
		case codison.UserTurn:
			fmt.Fprintf(w, "user: %s\n", m.Content)
		case codison.AssistantTurn:
			fmt.Fprintf(w, "assistant: %s\n", m.Content)
		case codison.ToolCallRequest:
			fmt.Fprintf(w, "tool call %s [%s]: %s\n", m.Name, m.CallID, m.ArgsJSON())
		case codison.ToolCallResult:
			fmt.Fprintf(w, "tool result %s [%s]: %s\n", m.Name, m.CallID, truncate(m.Output, 200))
		}
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
