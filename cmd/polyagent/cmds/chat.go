package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/polyagent/pkg/agent"
	"github.com/go-go-golems/polyagent/pkg/events"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// chatSession is a line-oriented REPL over one agent. Lines starting with
// a slash are commands, everything else is sent with Execute.
type chatSession struct {
	agent  *agent.Agent
	out    io.Writer
	render bool
	// printed before each line, empty when stdin is not a terminal
	prompt string
}

const chatHelp = "commands: /history /clear /tokens /exit"

// handle processes one line and reports whether the session should end.
// Failed calls are printed and the session goes on.
func (c *chatSession) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false, nil
	case "/exit", "/quit":
		return true, nil
	case "/help":
		_, err := fmt.Fprintln(c.out, chatHelp)
		return false, err
	case "/clear":
		c.agent.ClearHistory()
		_, err := fmt.Fprintln(c.out, "history cleared")
		return false, err
	case "/history":
		for _, t := range c.agent.GetHistory() {
			if _, err := fmt.Fprintln(c.out, t.View()); err != nil {
				return false, err
			}
		}
		return false, nil
	case "/tokens":
		n, err := c.agent.HistoryTokens()
		if err != nil {
			return false, err
		}
		_, err = fmt.Fprintf(c.out, "%d turns, ~%d tokens\n", len(c.agent.GetHistory()), n)
		return false, err
	}

	if strings.HasPrefix(line, "/") {
		_, err := fmt.Fprintf(c.out, "unknown command %s, %s\n", line, chatHelp)
		return false, err
	}

	res, err := c.agent.Execute(ctx, line, engine.CallOptions{})
	if err != nil {
		_, werr := fmt.Fprintf(c.out, "error: %v\n", err)
		return false, werr
	}
	return false, writeReply(c.out, res.Data, c.render)
}

func (c *chatSession) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.prompt != "" {
			_, _ = fmt.Fprint(c.out, c.prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		quit, err := c.handle(ctx, scanner.Text())
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

func NewChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with one agent, line by line",
		Long:  "Chat with one agent, line by line.\n\n" + chatHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadAgentSettings(true)
			if err != nil {
				return err
			}

			return runWithEvents(cmd.Context(), viper.GetBool(flagPrintEvents), func(ctx context.Context, sink events.EventSink) error {
				a, err := newAgent(s, sink)
				if err != nil {
					return err
				}
				session := &chatSession{
					agent:  a,
					out:    cmd.OutOrStdout(),
					render: viper.GetBool(flagRender),
				}
				if isatty.IsTerminal(os.Stdin.Fd()) {
					session.prompt = "> "
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s:%s, %s\n", a.Provider(), a.Model(), chatHelp)
				}
				return session.run(ctx, cmd.InOrStdin())
			})
		},
	}
}
