package api

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/weapp/dialiv/clients"
	"github.com/weapp/dialiv/models"
	"github.com/weapp/dialiv/utils/otp"
)

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

// undoStack collects the steps reverting the writes of an operation spanning several
// records. Steps run in reverse order of registration.
type undoStack struct {
	steps []undoStep
}

func (u *undoStack) push(name string, fn func(ctx context.Context) error) {
	u.steps = append(u.steps, undoStep{name: name, fn: fn})
}

// rollback runs every step even when one fails, failures are only logged. It is
// detached from the cancellation of ctx so an aborted request still cleans up.
func (u *undoStack) rollback(ctx context.Context, logger *zap.SugaredLogger) {
	ctx = context.WithoutCancel(ctx)
	for i := len(u.steps) - 1; i >= 0; i-- {
		step := u.steps[i]
		if err := step.fn(ctx); err != nil {
			logger.With(zap.String("step", step.name), zap.Error(err)).Error("undoing write")
		}
	}
	u.steps = nil
}

// provisionChannel opens the chat channel between a patient and a provider and stores
// it. The channel is named {userId}-{providerId}-{pairing code}.
func (a *Api) provisionChannel(ctx context.Context, undo *undoStack, userId, providerId int64) (*models.TwilioChatChannel, error) {
	name := fmt.Sprintf("%d-%d-%s", userId, providerId, otp.Pairing())
	sid, err := a.chat.CreateChannel(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "creating chat channel %s", name)
	}
	undo.push("chat channel", func(ctx context.Context) error {
		return a.chat.DeleteChannel(ctx, sid)
	})

	channel := &models.TwilioChatChannel{ChannelId: name, Sid: sid}
	if err := a.Store.CreateTwilioChatChannel(ctx, channel); err != nil {
		return nil, errors.Wrap(err, "saving chat channel")
	}
	undo.push("twilio chat channel", func(ctx context.Context) error {
		return a.Store.RemoveTwilioChatChannel(ctx, channel.Id)
	})
	return channel, nil
}

// joinChannel adds one membership row per user
func (a *Api) joinChannel(ctx context.Context, undo *undoStack, channel *models.TwilioChatChannel, userIds ...int64) error {
	for _, userId := range userIds {
		membership := &models.UserTwilioChatChannel{UserId: userId, TwilioChatChannelId: channel.Id}
		if err := a.Store.CreateUserTwilioChatChannel(ctx, membership); err != nil {
			return errors.Wrapf(err, "adding user %d to chat channel", userId)
		}
		undo.push("user twilio chat channel", func(ctx context.Context) error {
			return a.Store.RemoveUserTwilioChatChannel(ctx, membership.Id)
		})
	}
	return nil
}

// grantRole adds the role unless the user already holds it
func (a *Api) grantRole(ctx context.Context, userId int64, role models.Role) error {
	roles, err := a.Store.FindUserRoles(ctx, userId)
	if err != nil {
		return errors.Wrap(err, "finding user roles")
	}
	if models.HasRole(roles, role) {
		return nil
	}
	err = a.Store.CreateUserRole(ctx, &models.UserRole{UserId: userId, RoleId: role})
	if err != nil && !errors.Is(err, clients.ErrDuplicate) {
		return errors.Wrapf(err, "granting role %s", role)
	}
	return nil
}
