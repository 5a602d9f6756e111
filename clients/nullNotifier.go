package clients

import (
	"net/http"

	"go.uber.org/zap"
)

type (
	// NullNotifier for dummy e-mail client
	NullNotifier struct {
		logger *zap.SugaredLogger
	}
)

// NewNullNotifier Create a dummy e-mail notifier
func NewNullNotifier(logger *zap.SugaredLogger) (*NullNotifier, error) {
	logger.Info("Mail functionality is disabled, no e-mail will be sent.")
	return &NullNotifier{logger: logger}, nil
}

// Send do nothing, return 200, "OK"
func (c *NullNotifier) Send(to []string, subject string, msg string) (int, string) {
	c.logger.Infow("Not sending mail, disabled by server configuration", "to", to, "subject", subject)
	return http.StatusOK, "OK"
}
