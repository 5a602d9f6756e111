package clients

//go:generate mockgen -destination=mockChatClient.go -package=clients github.com/weapp/dialiv/clients ChatClient

import (
	"context"
	"net/http"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/client/jwt"
	chat "github.com/twilio/twilio-go/rest/chat/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ChatClient provisions channels on the chat service and signs the tokens its SDK connects with
type ChatClient interface {
	// CreateChannel creates a channel with the given unique name and returns its sid
	CreateChannel(ctx context.Context, uniqueName string) (string, error)
	DeleteChannel(ctx context.Context, sid string) error
	AccessToken(identity string) (string, error)
}

type TwilioConfig struct {
	AccountSid     string        `split_words:"true" required:"true"`
	ApiKey         string        `split_words:"true" required:"true"`
	ApiSecret      string        `split_words:"true" required:"true"`
	ChatServiceSid string        `split_words:"true" required:"true"`
	TokenTTL       time.Duration `split_words:"true" default:"1h"`
}

// channelService is the part of the chat v2 api the client drives
type channelService interface {
	CreateChannel(ServiceSid string, params *chat.CreateChannelParams) (*chat.ChatV2Channel, error)
	DeleteChannel(ServiceSid string, Sid string, params *chat.DeleteChannelParams) error
}

type TwilioChatClient struct {
	config   TwilioConfig
	channels channelService
	logger   *zap.SugaredLogger
}

func NewTwilioChatClient(config TwilioConfig, logger *zap.SugaredLogger) *TwilioChatClient {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   config.ApiKey,
		Password:   config.ApiSecret,
		AccountSid: config.AccountSid,
	})
	return &TwilioChatClient{
		config:   config,
		channels: rest.ChatV2,
		logger:   logger,
	}
}

// restStatus returns the http status of a chat service error, zero for other errors
func restStatus(err error) int {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return restErr.Status
	}
	return 0
}

// CreateChannel is not cancellable, the sdk calls carry no context
func (c *TwilioChatClient) CreateChannel(ctx context.Context, uniqueName string) (string, error) {
	params := &chat.CreateChannelParams{}
	params.SetUniqueName(uniqueName)
	params.SetFriendlyName(uniqueName)
	params.SetType("private")

	channel, err := c.channels.CreateChannel(c.config.ChatServiceSid, params)
	if err != nil {
		if restStatus(err) == http.StatusConflict {
			return "", errors.Wrapf(ErrDuplicate, "creating chat channel %s: %s", uniqueName, err)
		}
		return "", errors.Wrapf(err, "creating chat channel %s", uniqueName)
	}
	if channel == nil || channel.Sid == nil || *channel.Sid == "" {
		return "", errors.Errorf("creating chat channel %s: no sid returned", uniqueName)
	}
	c.logger.Debugw("chat channel created", "uniqueName", uniqueName, "sid", *channel.Sid)
	return *channel.Sid, nil
}

func (c *TwilioChatClient) DeleteChannel(ctx context.Context, sid string) error {
	err := c.channels.DeleteChannel(c.config.ChatServiceSid, sid, &chat.DeleteChannelParams{})
	switch {
	case err == nil:
		return nil
	case restStatus(err) == http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "deleting chat channel %s", sid)
	default:
		return errors.Wrapf(err, "deleting chat channel %s", sid)
	}
}

// AccessToken signs a token granting identity access to the chat service
func (c *TwilioChatClient) AccessToken(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("identity is missing")
	}
	tok := jwt.CreateAccessToken(jwt.AccessTokenParams{
		AccountSid:    c.config.AccountSid,
		SigningKeySid: c.config.ApiKey,
		Secret:        c.config.ApiSecret,
		Identity:      identity,
		Ttl:           c.config.TokenTTL.Seconds(),
	})
	tok.AddGrant(&jwt.ChatGrant{ServiceSid: c.config.ChatServiceSid})
	signed, err := tok.ToJwt()
	if err != nil {
		return "", errors.Wrap(err, "signing chat access token")
	}
	return signed, nil
}

func twilioConfigProvider() (TwilioConfig, error) {
	var config TwilioConfig
	if err := envconfig.Process("twilio", &config); err != nil {
		return TwilioConfig{}, err
	}
	return config, nil
}

func chatClientProvider(config TwilioConfig, logger *zap.SugaredLogger) ChatClient {
	return NewTwilioChatClient(config, logger)
}

// TwilioModule provides the Twilio backed ChatClient
var TwilioModule = fx.Options(fx.Provide(twilioConfigProvider, chatClientProvider))
