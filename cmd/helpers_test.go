// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	homedir "github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/observability"
)

// fakeSession records what the commands asked of it.
type fakeSession struct {
	mu       sync.Mutex
	cfg      config.Interface
	sent     []string
	calls    []string
	sendErr  error
	closed   int
	replyFmt string
}

func (f *fakeSession) NewConversation(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "new")
	return nil
}

func (f *fakeSession) EnableDeepThink(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "deepthink")
	return nil
}

func (f *fakeSession) Send(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "send")
	f.sent = append(f.sent, text)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	format := f.replyFmt
	if format == "" {
		format = "echo: %s"
	}
	return fmt.Sprintf(format, text), nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// setupCommandTest isolates the command from the developer's environment:
// empty working directory and home, no CHATPILOT_* variables, quiet logger,
// and openSession replaced by one that hands out sess (or fails with openErr).
func setupCommandTest(t *testing.T, sess *fakeSession, openErr error) {
	t.Helper()

	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	for _, key := range []string{"CHATPILOT_EMAIL", "CHATPILOT_PASSWORD", "CHATPILOT_BROWSER_ENGINE", "CHATPILOT_CHAT_CHUNK_SIZE"} {
		t.Setenv(key, "")
	}

	observability.ResetForTest()
	observability.Initialize(config.LoggerConfig{Level: "fatal", Format: "console"}, zapcore.AddSync(io.Discard))
	t.Cleanup(observability.ResetForTest)

	original := openSession
	openSession = func(ctx context.Context, cfg config.Interface, logger *zap.Logger) (chatSession, error) {
		if openErr != nil {
			return nil, openErr
		}
		sess.cfg = cfg
		return sess, nil
	}
	t.Cleanup(func() { openSession = original })
}

// runCommand executes the command line against a fresh tree.
func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	rootCmd := NewRootCommand()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(bytes.NewBufferString(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
