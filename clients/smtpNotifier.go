package clients

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/http"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Implements a simple SMTP-based notifier that can be used with local development. To enable,
// set DIALIV_MAIL_PROVIDER=smtp together with SMTP_HOST, SMTP_USERNAME and SMTP_PASSWORD.

type SMTPNotifierConfig struct {
	From     string `ignored:"true"`
	Host     string
	Port     int `default:"587"`
	Username string
	Password string
}

func (s SMTPNotifierConfig) IsValid() bool {
	return s.Host != "" && s.Username != "" && s.Password != ""
}

func (s SMTPNotifierConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s SMTPNotifierConfig) Auth() smtp.Auth {
	return smtp.PlainAuth("", s.Username, s.Password, s.Host)
}

func smtpNotifierConfigProvider() (SMTPNotifierConfig, error) {
	var config SMTPNotifierConfig
	if err := envconfig.Process("SMTP", &config); err != nil {
		return SMTPNotifierConfig{}, err
	}
	return config, nil
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPNotifier struct {
	config   SMTPNotifierConfig
	sendMail sendMailFunc
	logger   *zap.SugaredLogger
}

func NewSMTPNotifier(config SMTPNotifierConfig, logger *zap.SugaredLogger) (*SMTPNotifier, error) {
	if !config.IsValid() {
		logger.Warnw("SMTP configuration is incomplete, emails will be refused", "host", config.Host)
	}
	return &SMTPNotifier{
		config:   config,
		sendMail: smtp.SendMail,
		logger:   logger,
	}, nil
}

func (s *SMTPNotifier) Send(to []string, subject string, message string) (int, string) {
	if len(to) < 1 {
		return http.StatusBadRequest, "to is missing"
	} else if subject == "" {
		return http.StatusBadRequest, "subject is missing"
	} else if message == "" {
		return http.StatusBadRequest, "message is missing"
	}

	if !s.config.IsValid() {
		return http.StatusNotImplemented, "config is invalid"
	}

	encodedMessage, err := s.encodeMessage(to, subject, message)
	if err != nil {
		return http.StatusInternalServerError, err.Error()
	}

	if err := s.sendMail(s.config.Address(), s.config.Auth(), envelopeAddress(s.config.From), to, encodedMessage); err != nil {
		return http.StatusInternalServerError, err.Error()
	}

	return http.StatusOK, ""
}

func (s *SMTPNotifier) encodeMessage(to []string, subject string, message string) ([]byte, error) {
	messageBuffer := &bytes.Buffer{}
	messageWriter := multipart.NewWriter(messageBuffer)

	fmt.Fprintf(messageBuffer, "From: %s\n", s.config.From)
	fmt.Fprintf(messageBuffer, "To: %s\n", strings.Join(to, ", "))
	fmt.Fprintf(messageBuffer, "Subject: %s\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(messageBuffer, "MIME-Version: 1.0\n")
	fmt.Fprintf(messageBuffer, "Content-Type: multipart/alternative; boundary=\"%s\"\n", messageWriter.Boundary())
	fmt.Fprintf(messageBuffer, "\n")

	textHeaders := textproto.MIMEHeader{}
	textHeaders.Add("Content-Type", "text/plain; charset=UTF-8")
	textHeaders.Add("Content-Transfer-Encoding", "7bit")
	textPart, err := messageWriter.CreatePart(textHeaders)
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(DefaultTextMessage)); err != nil {
		return nil, err
	}

	htmlHeaders := textproto.MIMEHeader{}
	htmlHeaders.Add("Content-Type", "text/html; charset=UTF-8")
	htmlHeaders.Add("Content-Transfer-Encoding", "quoted-printable")
	htmlPart, err := messageWriter.CreatePart(htmlHeaders)
	if err != nil {
		return nil, err
	}

	htmlBuffer := &bytes.Buffer{}
	htmlWriter := quotedprintable.NewWriter(htmlBuffer)
	if _, err := htmlWriter.Write([]byte(message)); err != nil {
		return nil, err
	}
	if err := htmlWriter.Close(); err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write(htmlBuffer.Bytes()); err != nil {
		return nil, err
	}

	messageWriter.Close()

	return messageBuffer.Bytes(), nil
}

// envelopeAddress extracts the bare address of a "Name<address>" sender
func envelopeAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return strings.TrimSpace(from)
}
