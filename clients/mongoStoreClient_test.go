package clients

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weapp/dialiv/models"
	"github.com/weapp/dialiv/testutil"
)

// newTestMongoStoreClient connects to the database named by DIALIV_TEST_MONGO_URI, the test is
// skipped when it is not set
func newTestMongoStoreClient(t *testing.T) *MongoStoreClient {
	uri := os.Getenv("DIALIV_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("DIALIV_TEST_MONGO_URI is not set")
	}
	ctx := context.Background()
	config := MongoConfig{Uri: uri, Database: fmt.Sprintf("dialiv_test_%d", time.Now().UnixNano()), Timeout: 5 * time.Second}
	store, err := NewMongoStoreClient(ctx, config, testutil.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.EnsureIndexes(ctx))
	t.Cleanup(func() {
		store.database.Drop(ctx)
		store.Close(ctx)
	})
	return store
}

func TestMongoStoreUsers(t *testing.T) {
	store := newTestMongoStoreClient(t)
	ctx := context.Background()

	user := &models.User{Email: "Pat@X.com", FirstName: "Pat", DateRegistered: time.Now().UTC()}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.Equal(t, int64(1), user.Id)

	err := store.CreateUser(ctx, &models.User{Email: "pat@x.com"})
	assert.True(t, errors.Is(err, ErrDuplicate))

	found, err := store.FindUserByEmail(ctx, "PAT@x.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.Id, found.Id)

	missing, err := store.FindUserById(ctx, 42)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	err = store.UpdateUser(ctx, &models.User{Id: 42, Email: "nobody@x.com"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMongoStoreRolesAreUnique(t *testing.T) {
	store := newTestMongoStoreClient(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUserRole(ctx, &models.UserRole{UserId: 1, RoleId: models.RoleProvider}))
	err := store.CreateUserRole(ctx, &models.UserRole{UserId: 1, RoleId: models.RoleProvider})
	assert.True(t, errors.Is(err, ErrDuplicate))

	roles, err := store.FindUserRoles(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestMongoStoreSharings(t *testing.T) {
	store := newTestMongoStoreClient(t)
	ctx := context.Background()

	sharing := &models.Sharing{UserId: 1, Email: "doc@y.com"}
	require.NoError(t, store.CreateSharing(ctx, sharing))

	sharing.Bind(2, 3)
	require.NoError(t, store.UpdateSharing(ctx, sharing))

	received, err := store.FindSharings(ctx, SharingFilter{ProviderId: 2})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, int64(3), *received[0].TwilioChatChannelId)

	tok := &models.SharingToken{SharingId: sharing.Id, Token: "abc"}
	require.NoError(t, store.CreateSharingToken(ctx, tok))
	found, err := store.FindSharingToken(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, sharing.Id, found.SharingId)

	require.NoError(t, store.RemoveSharingToken(ctx, tok.Id))
	assert.True(t, errors.Is(store.RemoveSharingToken(ctx, tok.Id), ErrNotFound))
}

func TestMongoStoreLatestUserCode(t *testing.T) {
	store := newTestMongoStoreClient(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.CreateUserCode(ctx, &models.UserCode{UserId: 7, Code: "1111", CreatedAt: now.Add(-time.Minute)}))
	require.NoError(t, store.CreateUserCode(ctx, &models.UserCode{UserId: 7, Code: "2222", CreatedAt: now}))

	latest, err := store.FindLatestUserCode(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "2222", latest.Code)
}

func TestMongoStoreRemoveUserData(t *testing.T) {
	store := newTestMongoStoreClient(t)
	ctx := context.Background()

	patient := &models.User{Email: "pat@x.com"}
	provider := &models.User{Email: "doc@y.com"}
	require.NoError(t, store.CreateUser(ctx, patient))
	require.NoError(t, store.CreateUser(ctx, provider))

	sent := &models.Sharing{UserId: patient.Id, Email: "other@y.com"}
	require.NoError(t, store.CreateSharing(ctx, sent))
	require.NoError(t, store.CreateSharingToken(ctx, &models.SharingToken{SharingId: sent.Id, Token: "tok"}))

	channel := &models.TwilioChatChannel{ChannelId: "2-1-123456", Sid: "CH1"}
	require.NoError(t, store.CreateTwilioChatChannel(ctx, channel))
	require.NoError(t, store.CreateUserTwilioChatChannel(ctx, &models.UserTwilioChatChannel{UserId: provider.Id, TwilioChatChannelId: channel.Id}))
	received := &models.Sharing{UserId: provider.Id, Email: patient.Email}
	received.Bind(patient.Id, channel.Id)
	require.NoError(t, store.CreateSharing(ctx, received))

	removed, err := store.RemoveUserData(ctx, patient.Id)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "CH1", removed[0].Sid)

	gone, err := store.FindUserById(ctx, patient.Id)
	require.NoError(t, err)
	assert.Nil(t, gone)

	tok, err := store.FindSharingToken(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, tok)

	sharing, err := store.FindSharingById(ctx, received.Id)
	require.NoError(t, err)
	assert.Nil(t, sharing)

	assert.ErrorIs(t, store.RemoveTwilioChatChannel(ctx, channel.Id), ErrNotFound)
	memberships, err := store.collection(userTwilioChatChannelsCollection).CountDocuments(ctx, map[string]interface{}{})
	require.NoError(t, err)
	assert.Zero(t, memberships)
}
