package clients

import (
	"context"

	"github.com/pkg/errors"

	"github.com/weapp/dialiv/models"
)

var (
	// ErrNotFound is returned when an update or a removal targets a record that does not exist.
	// Finders return a nil result instead.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a write would break a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate")
)

// SharingFilter selects sharings on every non zero field
type SharingFilter struct {
	UserId     int64
	ProviderId int64
	Email      string
}

// StoreClient persists the records of the service. Create* methods assign the record id.
type StoreClient interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	FindUserById(ctx context.Context, id int64) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	// ReplaceUserCredential drops any credential of the user and stores the given one
	ReplaceUserCredential(ctx context.Context, credential *models.UserCredential) error
	FindUserCredential(ctx context.Context, userId int64) (*models.UserCredential, error)

	CreateUserRole(ctx context.Context, role *models.UserRole) error
	FindUserRoles(ctx context.Context, userId int64) ([]*models.UserRole, error)

	CreateSharing(ctx context.Context, sharing *models.Sharing) error
	FindSharingById(ctx context.Context, id int64) (*models.Sharing, error)
	FindSharings(ctx context.Context, filter SharingFilter) ([]*models.Sharing, error)
	UpdateSharing(ctx context.Context, sharing *models.Sharing) error
	RemoveSharing(ctx context.Context, id int64) error

	CreateSharingToken(ctx context.Context, token *models.SharingToken) error
	FindSharingToken(ctx context.Context, token string) (*models.SharingToken, error)
	RemoveSharingToken(ctx context.Context, id int64) error

	CreateTwilioChatChannel(ctx context.Context, channel *models.TwilioChatChannel) error
	RemoveTwilioChatChannel(ctx context.Context, id int64) error
	CreateUserTwilioChatChannel(ctx context.Context, membership *models.UserTwilioChatChannel) error
	RemoveUserTwilioChatChannel(ctx context.Context, id int64) error

	CreatePasswordResetRequest(ctx context.Context, request *models.PasswordResetRequest) error
	FindPasswordResetRequests(ctx context.Context, userId int64) ([]*models.PasswordResetRequest, error)
	RemovePasswordResetRequests(ctx context.Context, userId int64) (int64, error)

	CreateUserCode(ctx context.Context, code *models.UserCode) error
	FindUserCodeById(ctx context.Context, id int64) (*models.UserCode, error)
	// FindLatestUserCode returns the most recently issued code of the user
	FindLatestUserCode(ctx context.Context, userId int64) (*models.UserCode, error)
	RemoveUserCode(ctx context.Context, id int64) error

	// RemoveUserData deletes everything owned by the user, including the sharings they sent
	// or received together with the chat channels of those sharings. It returns the removed
	// channels, which still exist on the chat service.
	RemoveUserData(ctx context.Context, userId int64) ([]*models.TwilioChatChannel, error)
}
