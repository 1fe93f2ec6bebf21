// File: cmd/chat.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/observability"
)

const chatHelp = `Type a message and press Enter to send it.
Commands: /new (new conversation), /deepthink (enable deep think), /quit (exit).`

func newChatCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), root.cfg, observability.GetLogger(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runChat reads one message per line until /quit, EOF or cancellation.
// Send failures are reported and the loop continues.
func runChat(ctx context.Context, cfg config.Interface, logger *zap.Logger, in io.Reader, out io.Writer) error {
	sess, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeSession(sess, logger)
		fmt.Fprintln(out, "Session terminated successfully.")
	}()

	fmt.Fprintln(out, chatHelp)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "you > ")
		if !scanner.Scan() {
			break // Exit on EOF (Ctrl+D)
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			if err := sess.NewConversation(ctx); err != nil {
				fmt.Fprintln(out, "Error:", err)
			}
			continue
		case "/deepthink":
			if err := sess.EnableDeepThink(ctx); err != nil {
				fmt.Fprintln(out, "Error:", err)
			}
			continue
		}

		reply, err := sess.Send(ctx, line)
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
			continue
		}
		fmt.Fprintf(out, "assistant > %s\n", reply)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading from stdin: %w", err)
	}
	fmt.Fprintln(out)
	return nil
}
