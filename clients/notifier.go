package clients

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	MailProviderSes  = "ses"
	MailProviderSMTP = "smtp"
	MailProviderNull = "null"
)

// Notifier sends an HTML email. It returns an HTTP status code and a detail message.
type Notifier interface {
	Send(addresses []string, subject, content string) (int, string)
}

type NotifierConfig struct {
	MailProvider string `split_words:"true" default:"ses"`
	MailFrom     string `split_words:"true" default:"Weapp AB<michael@weapp.se>"`
}

func notifierConfigProvider() (NotifierConfig, error) {
	var config NotifierConfig
	if err := envconfig.Process("dialiv", &config); err != nil {
		return NotifierConfig{}, err
	}
	return config, nil
}

type notifierParams struct {
	fx.In

	Config NotifierConfig
	Ses    SesNotifierConfig
	SMTP   SMTPNotifierConfig
	Logger *zap.SugaredLogger
}

func notifierProvider(p notifierParams) (Notifier, error) {
	switch strings.ToLower(p.Config.MailProvider) {
	case MailProviderSes:
		p.Ses.From = p.Config.MailFrom
		return NewSesNotifier(&p.Ses, p.Logger)
	case MailProviderSMTP:
		p.SMTP.From = p.Config.MailFrom
		return NewSMTPNotifier(p.SMTP, p.Logger)
	case MailProviderNull:
		return NewNullNotifier(p.Logger)
	default:
		return nil, fmt.Errorf("clients: unknown mail provider %q", p.Config.MailProvider)
	}
}

// NotifierModule provides the Notifier selected by DIALIV_MAIL_PROVIDER
var NotifierModule = fx.Options(
	fx.Provide(notifierConfigProvider),
	fx.Provide(sesNotifierConfigProvider),
	fx.Provide(smtpNotifierConfigProvider),
	fx.Provide(notifierProvider),
)
