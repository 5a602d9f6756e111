package models

import "time"

type (
	// Sharing is an invitation from a patient to a provider, addressed by
	// the provider's email.
	//
	// A sharing is either bound to a provider account (ProviderId and
	// TwilioChatChannelId set) or has exactly one outstanding SharingToken.
	Sharing struct {
		Id                  int64  `json:"id" bson:"_id"`
		UserId              int64  `json:"userId" bson:"userId"`
		ProviderId          *int64 `json:"providerId" bson:"providerId,omitempty"`
		Email               string `json:"email" bson:"email"`
		Name                string `json:"name,omitempty" bson:"name,omitempty"`
		TwilioChatChannelId *int64 `json:"twilioChatChannelId" bson:"twilioChatChannelId,omitempty"`
	}

	//single use registration token for a sharing whose invitee has no account
	SharingToken struct {
		Id        int64  `json:"id" bson:"_id"`
		SharingId int64  `json:"sharingId" bson:"sharingId"`
		Token     string `json:"token" bson:"token"`
	}

	// TwilioChatChannel is a channel provisioned on the chat service.
	TwilioChatChannel struct {
		Id        int64  `json:"id" bson:"_id"`
		ChannelId string `json:"channelId" bson:"channelId"`
		Sid       string `json:"sid,omitempty" bson:"sid,omitempty"`
	}

	UserTwilioChatChannel struct {
		Id                  int64 `json:"id" bson:"_id"`
		UserId              int64 `json:"userId" bson:"userId"`
		TwilioChatChannelId int64 `json:"twilioChatChannelId" bson:"twilioChatChannelId"`
	}

	PasswordResetRequest struct {
		Id     int64     `json:"id" bson:"_id"`
		UserId int64     `json:"userId" bson:"userId"`
		Token  string    `json:"token" bson:"token"`
		Date   time.Time `json:"date" bson:"date"`
	}

	// UserCode is a short numeric code sent by email. UserId is zero when
	// the code was issued before the account existed.
	UserCode struct {
		Id        int64     `json:"id" bson:"_id"`
		UserId    int64     `json:"userId" bson:"userId"`
		Email     string    `json:"email" bson:"email"`
		Code      string    `json:"-" bson:"code"`
		CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	}
)

// IsBound reports whether the sharing has been paired with a provider.
func (s *Sharing) IsBound() bool {
	return s.ProviderId != nil
}

// Bind pairs the sharing with a provider and the channel they talk on.
func (s *Sharing) Bind(providerId, channelId int64) {
	s.ProviderId = &providerId
	s.TwilioChatChannelId = &channelId
}

// Unbind forgets the provider side of a sharing.
func (s *Sharing) Unbind() {
	s.ProviderId = nil
	s.TwilioChatChannelId = nil
}
