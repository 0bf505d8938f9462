package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log. Used when SMTP is not
// configured; every send is reported as delivered.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds the fallback notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendImmediate(ctx context.Context, to, subject, body string) error {
	n.logger.Info("notification",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
