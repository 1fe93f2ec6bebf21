// File: cmd/session.go
package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/chat"
	"github.com/xkilldash9x/chatpilot/internal/config"
)

// chatSession is the part of *chat.Controller the commands use.
type chatSession interface {
	NewConversation(ctx context.Context) error
	EnableDeepThink(ctx context.Context) error
	Send(ctx context.Context, text string) (string, error)
	Close(ctx context.Context) error
}

var _ chatSession = (*chat.Controller)(nil)

// openSession is swapped out in tests.
var openSession = func(ctx context.Context, cfg config.Interface, logger *zap.Logger) (chatSession, error) {
	c, err := chat.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// closeTimeout bounds logout plus browser shutdown.
const closeTimeout = time.Minute

// closeSession runs Close on a fresh context so that an interrupted command
// still signs out and shuts the browser down.
func closeSession(sess chatSession, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := sess.Close(ctx); err != nil {
		logger.Warn("Session did not close cleanly.", zap.Error(err))
	}
}
