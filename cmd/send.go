// File: cmd/send.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/observability"
)

type sendOptions struct {
	newConversation bool
	deepThink       bool
	file            string
}

func newSendCmd(root *rootOptions) *cobra.Command {
	opts := &sendOptions{}

	sendCmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send one message and print the reply",
		Long: `Signs in, optionally starts a new conversation and enables deep think,
sends the message and prints the reply to stdout. The message is read from the
arguments, or from --file ("-" for stdin).`,
		Example: `  chatpilot send "Summarise RFC 9110 in three sentences"
  chatpilot send --new --deep-think --file prompt.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := readMessage(cmd.InOrStdin(), opts.file, args)
			if err != nil {
				return err
			}
			return runSend(cmd.Context(), root.cfg, observability.GetLogger(), message, opts, cmd.OutOrStdout())
		},
	}

	sendCmd.Flags().BoolVar(&opts.newConversation, "new", false, "start a new conversation first")
	sendCmd.Flags().BoolVar(&opts.deepThink, "deep-think", false, "enable deep think before sending")
	sendCmd.Flags().StringVarP(&opts.file, "file", "f", "", `read the message from a file ("-" for stdin)`)

	return sendCmd
}

// readMessage takes the message from file when set, otherwise joins args.
func readMessage(stdin io.Reader, file string, args []string) (string, error) {
	var message string
	switch {
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read message from stdin: %w", err)
		}
		message = string(b)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read message file: %w", err)
		}
		message = string(b)
	default:
		message = strings.Join(args, " ")
	}

	message = strings.TrimRight(message, "\r\n")
	if strings.TrimSpace(message) == "" {
		return "", errors.New("no message given: pass it as arguments or with --file")
	}
	return message, nil
}

func runSend(ctx context.Context, cfg config.Interface, logger *zap.Logger, message string, opts *sendOptions, out io.Writer) error {
	sess, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSession(sess, logger)

	if opts.newConversation {
		if err := sess.NewConversation(ctx); err != nil {
			return err
		}
	}
	if opts.deepThink {
		if err := sess.EnableDeepThink(ctx); err != nil {
			return err
		}
	}

	reply, err := sess.Send(ctx, message)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, reply)
	return nil
}
