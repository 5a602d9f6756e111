package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/weapp/dialiv/clients"
)

const deleteTimeout = 60 * time.Second

// ErrInvalidEvent marks a message that will never be handled, whatever the number of retries
var ErrInvalidEvent = errors.New("events: invalid event")

// DeleteUserEvent is published once an account has been deleted
type DeleteUserEvent struct {
	UserId int64 `json:"userId"`
}

type UserEventsHandler interface {
	HandleDeleteUserEvent(payload DeleteUserEvent) error
}

type Handler struct {
	store  clients.StoreClient
	chat   clients.ChatClient
	logger *zap.SugaredLogger
}

var _ UserEventsHandler = &Handler{}

func NewHandler(store clients.StoreClient, chat clients.ChatClient, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		store:  store,
		chat:   chat,
		logger: logger,
	}
}

// HandleMessage decodes a user.deleted message body and handles it
func (h *Handler) HandleMessage(body []byte) error {
	var payload DeleteUserEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return errors.Wrapf(ErrInvalidEvent, "decoding %q: %s", body, err)
	}
	if payload.UserId <= 0 {
		return errors.Wrapf(ErrInvalidEvent, "no user id in %q", body)
	}
	return h.HandleDeleteUserEvent(payload)
}

// HandleDeleteUserEvent removes the user data, then the chat channels of the removed
// sharings. A channel that cannot be deleted on the chat service is only logged, its rows
// are gone already.
func (h *Handler) HandleDeleteUserEvent(payload DeleteUserEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	logger := h.logger.With(zap.Int64("userId", payload.UserId))

	channels, err := h.store.RemoveUserData(ctx, payload.UserId)
	if err != nil {
		return errors.Wrapf(err, "removing data of user %d", payload.UserId)
	}
	for _, channel := range channels {
		if channel.Sid == "" {
			continue
		}
		if err := h.chat.DeleteChannel(ctx, channel.Sid); err != nil {
			logger.With(zap.Error(err), zap.String("channelSid", channel.Sid)).Error("deleting chat channel")
		}
	}
	logger.With(zap.Int("channels", len(channels))).Info("user data removed")
	return nil
}
