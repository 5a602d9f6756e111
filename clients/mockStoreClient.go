package clients

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/weapp/dialiv/models"
)

// MockStoreClient is an in-memory StoreClient.
//
// Setting DoBad makes every call fail. FailOn makes a single method fail,
// which is how tests drive the compensation paths.
type MockStoreClient struct {
	DoBad bool

	mu       sync.Mutex
	failures map[string]error
	seq      map[string]int64

	users                 map[int64]*models.User
	credentials           map[int64]*models.UserCredential
	roles                 map[int64]*models.UserRole
	sharings              map[int64]*models.Sharing
	sharingTokens         map[int64]*models.SharingToken
	channels              map[int64]*models.TwilioChatChannel
	memberships           map[int64]*models.UserTwilioChatChannel
	passwordResetRequests map[int64]*models.PasswordResetRequest
	userCodes             map[int64]*models.UserCode
}

func NewMockStoreClient() *MockStoreClient {
	return &MockStoreClient{
		failures:              map[string]error{},
		seq:                   map[string]int64{},
		users:                 map[int64]*models.User{},
		credentials:           map[int64]*models.UserCredential{},
		roles:                 map[int64]*models.UserRole{},
		sharings:              map[int64]*models.Sharing{},
		sharingTokens:         map[int64]*models.SharingToken{},
		channels:              map[int64]*models.TwilioChatChannel{},
		memberships:           map[int64]*models.UserTwilioChatChannel{},
		passwordResetRequests: map[int64]*models.PasswordResetRequest{},
		userCodes:             map[int64]*models.UserCode{},
	}
}

// FailOn makes the named method return err until cleared with a nil err
func (d *MockStoreClient) FailOn(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, method)
		return
	}
	d.failures[method] = err
}

func (d *MockStoreClient) fail(method string) error {
	if d.DoBad {
		return errors.Errorf("%s failure", method)
	}
	return d.failures[method]
}

func (d *MockStoreClient) nextId(name string) int64 {
	d.seq[name]++
	return d.seq[name]
}

func (d *MockStoreClient) Ping(ctx context.Context) error {
	if d.DoBad {
		return errors.New("Session failure")
	}
	return nil
}

func (d *MockStoreClient) Close(ctx context.Context) error { return nil }

func (d *MockStoreClient) CreateUser(ctx context.Context, user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateUser"); err != nil {
		return err
	}
	user.Email = models.NormalizeEmail(user.Email)
	for _, u := range d.users {
		if u.Email == user.Email {
			return errors.Wrap(ErrDuplicate, "inserting into users")
		}
	}
	user.Id = d.nextId("users")
	stored := *user
	d.users[user.Id] = &stored
	return nil
}

func (d *MockStoreClient) FindUserById(ctx context.Context, id int64) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FindUserById"); err != nil {
		return nil, err
	}
	if u, ok := d.users[id]; ok {
		found := *u
		return &found, nil
	}
	return nil, nil
}

func (d *MockStoreClient) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FindUserByEmail"); err != nil {
		return nil, err
	}
	email = models.NormalizeEmail(email)
	for _, u := range d.users {
		if u.Email == email {
			found := *u
			return &found, nil
		}
	}
	return nil, nil
}

func (d *MockStoreClient) UpdateUser(ctx context.Context, user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("UpdateUser"); err != nil {
		return err
	}
	if _, ok := d.users[user.Id]; !ok {
		return errors.Wrap(ErrNotFound, "replacing in users")
	}
	stored := *user
	stored.Email = models.NormalizeEmail(stored.Email)
	d.users[user.Id] = &stored
	return nil
}

func (d *MockStoreClient) ReplaceUserCredential(ctx context.Context, credential *models.UserCredential) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("ReplaceUserCredential"); err != nil {
		return err
	}
	for id, c := range d.credentials {
		if c.UserId == credential.UserId {
			delete(d.credentials, id)
		}
	}
	credential.Id = d.nextId("userCredentials")
	stored := *credential
	d.credentials[credential.Id] = &stored
	return nil
}

func (d *MockStoreClient) FindUserCredential(ctx context.Context, userId int64) (*models.UserCredential, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FindUserCredential"); err != nil {
		return nil, err
	}
	for _, c := range d.credentials {
		if c.UserId == userId {
			found := *c
			return &found, nil
		}
	}
	return nil, nil
}

func (d *MockStoreClient) CreateUserRole(ctx context.Context, role *models.UserRole) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateUserRole"); err != nil {
		return err
	}
	for _, r := range d.roles {
		if r.UserId == role.UserId && r.RoleId == role.RoleId {
			return errors.Wrap(ErrDuplicate, "inserting into userRoles")
		}
	}
	role.Id = d.nextId("userRoles")
	stored := *role
	d.roles[role.Id] = &stored
	return nil
}

func (d *MockStoreClient) FindUserRoles(ctx context.Context, userId int64) ([]*models.UserRole, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FindUserRoles"); err != nil {
		return nil, err
	}
	var roles []*models.UserRole
	for _, id := range sortedIds(d.roles) {
		if r := d.roles[id]; r.UserId == userId {
			found := *r
			roles = append(roles, &found)
		}
	}
	return roles, nil
}

func (d *MockStoreClient) CreateSharing(ctx context.Context, sharing *models.Sharing) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSharing"); err != nil {
		return err
	}
	sharing.Email = models.NormalizeEmail(sharing.Email)
	for _, s := range d.sharings {
		if s.UserId == sharing.UserId && s.Email == sharing.Email {
			return errors.Wrap(ErrDuplicate, "inserting into sharings")
		}
	}
	sharing.Id = d.nextId("sharings")
	d.sharings[sharing.Id] = copySharing(sharing)
	return nil
}

func (d *MockStoreClient) FindSharingById(ctx context.Context, id int64) (*models.Sharing, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FindSharingById"); err != nil {
		return nil, err
	}
	if s, ok := d.sharings[id]; ok {
		return copySharing(s), nil
	}
	return nil, nil
}

func (d *MockStoreClient) FindSharings(ctx context.Context, filter SharingFilter) ([]*models.Sharing, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FindSharings"); err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(filter.Email)
	var sharings []*models.Sharing
	for _, id := range sortedIds(d.sharings) {
		s := d.sharings[id]
		if filter.UserId != 0 && s.UserId != filter.UserId {
			continue
		}
		if filter.ProviderId != 0 && (s.ProviderId == nil || *s.ProviderId != filter.ProviderId) {
			continue
		}
		if email != "" && s.Email != email {
			continue
		}
		sharings = append(sharings, copySharing(s))
	}
	return sharings, nil
}

func (d *MockStoreClient) UpdateSharing(ctx context.Context, sharing *models.Sharing) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("UpdateSharing"); err != nil {
		return err
	}
	if _, ok := d.sharings[sharing.Id]; !ok {
		return errors.Wrap(ErrNotFound, "replacing in sharings")
	}
	d.sharings[sharing.Id] = copySharing(sharing)
	return nil
}

func (d *MockStoreClient) RemoveSharing(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("RemoveSharing"); err != nil {
		return err
	}
	return removeFrom(d.sharings, id, "sharings")
}

func (d *MockStoreClient) CreateSharingToken(ctx context.Context, token *models.SharingToken) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSharingToken"); err != nil {
		return err
	}
	for _, t := range d.sharingTokens {
		if t.Token == token.Token {
			return errors.Wrap(ErrDuplicate, "inserting into sharingTokens")
		}
	}
	token.Id = d.nextId("sharingTokens")
	stored := *token
	d.sharingTokens[token.Id] = &stored
	return nil
}

func (d *MockStoreClient) FindSharingToken(ctx context.Context, token string) (*models.SharingToken, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FindSharingToken"); err != nil {
		return nil, err
	}
	for _, t := range d.sharingTokens {
		if t.Token == token {
			found := *t
			return &found, nil
		}
	}
	return nil, nil
}

func (d *MockStoreClient) RemoveSharingToken(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("RemoveSharingToken"); err != nil {
		return err
	}
	return removeFrom(d.sharingTokens, id, "sharingTokens")
}

func (d *MockStoreClient) CreateTwilioChatChannel(ctx context.Context, channel *models.TwilioChatChannel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateTwilioChatChannel"); err != nil {
		return err
	}
	for _, c := range d.channels {
		if c.ChannelId == channel.ChannelId {
			return errors.Wrap(ErrDuplicate, "inserting into twilioChatChannels")
		}
	}
	channel.Id = d.nextId("twilioChatChannels")
	stored := *channel
	d.channels[channel.Id] = &stored
	return nil
}

func (d *MockStoreClient) RemoveTwilioChatChannel(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("RemoveTwilioChatChannel"); err != nil {
		return err
	}
	return removeFrom(d.channels, id, "twilioChatChannels")
}

func (d *MockStoreClient) CreateUserTwilioChatChannel(ctx context.Context, membership *models.UserTwilioChatChannel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateUserTwilioChatChannel"); err != nil {
		return err
	}
	membership.Id = d.nextId("userTwilioChatChannels")
	stored := *membership
	d.memberships[membership.Id] = &stored
	return nil
}

func (d *MockStoreClient) RemoveUserTwilioChatChannel(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("RemoveUserTwilioChatChannel"); err != nil {
		return err
	}
	return removeFrom(d.memberships, id, "userTwilioChatChannels")
}

func (d *MockStoreClient) CreatePasswordResetRequest(ctx context.Context, request *models.PasswordResetRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreatePasswordResetRequest"); err != nil {
		return err
	}
	request.Id = d.nextId("passwordResetRequests")
	stored := *request
	d.passwordResetRequests[request.Id] = &stored
	return nil
}

func (d *MockStoreClient) FindPasswordResetRequests(ctx context.Context, userId int64) ([]*models.PasswordResetRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FindPasswordResetRequests"); err != nil {
		return nil, err
	}
	var requests []*models.PasswordResetRequest
	for _, id := range sortedIds(d.passwordResetRequests) {
		if r := d.passwordResetRequests[id]; r.UserId == userId {
			found := *r
			requests = append(requests, &found)
		}
	}
	return requests, nil
}

func (d *MockStoreClient) RemovePasswordResetRequests(ctx context.Context, userId int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("RemovePasswordResetRequests"); err != nil {
		return 0, err
	}
	var count int64
	for id, r := range d.passwordResetRequests {
		if r.UserId == userId {
			delete(d.passwordResetRequests, id)
			count++
		}
	}
	return count, nil
}

func (d *MockStoreClient) CreateUserCode(ctx context.Context, code *models.UserCode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateUserCode"); err != nil {
		return err
	}
	code.Email = models.NormalizeEmail(code.Email)
	code.Id = d.nextId("userCodes")
	stored := *code
	d.userCodes[code.Id] = &stored
	return nil
}

func (d *MockStoreClient) FindUserCodeById(ctx context.Context, id int64) (*models.UserCode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FindUserCodeById"); err != nil {
		return nil, err
	}
	if c, ok := d.userCodes[id]; ok {
		found := *c
		return &found, nil
	}
	return nil, nil
}

func (d *MockStoreClient) FindLatestUserCode(ctx context.Context, userId int64) (*models.UserCode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FindLatestUserCode"); err != nil {
		return nil, err
	}
	var latest *models.UserCode
	for _, id := range sortedIds(d.userCodes) {
		c := d.userCodes[id]
		if c.UserId != userId {
			continue
		}
		if latest == nil || !c.CreatedAt.Before(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	found := *latest
	return &found, nil
}

func (d *MockStoreClient) RemoveUserCode(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("RemoveUserCode"); err != nil {
		return err
	}
	return removeFrom(d.userCodes, id, "userCodes")
}

func (d *MockStoreClient) RemoveUserData(ctx context.Context, userId int64) ([]*models.TwilioChatChannel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("RemoveUserData"); err != nil {
		return nil, err
	}
	channelIds := map[int64]bool{}
	for id, s := range d.sharings {
		if s.UserId != userId && (s.ProviderId == nil || *s.ProviderId != userId) {
			continue
		}
		for tokenId, t := range d.sharingTokens {
			if t.SharingId == id {
				delete(d.sharingTokens, tokenId)
			}
		}
		if s.TwilioChatChannelId != nil {
			channelIds[*s.TwilioChatChannelId] = true
		}
		delete(d.sharings, id)
	}
	var channels []*models.TwilioChatChannel
	for _, id := range sortedIds(d.channels) {
		if channelIds[id] {
			removed := *d.channels[id]
			channels = append(channels, &removed)
			delete(d.channels, id)
		}
	}
	for id, m := range d.memberships {
		if m.UserId == userId || channelIds[m.TwilioChatChannelId] {
			delete(d.memberships, id)
		}
	}
	for id, r := range d.passwordResetRequests {
		if r.UserId == userId {
			delete(d.passwordResetRequests, id)
		}
	}
	for id, c := range d.userCodes {
		if c.UserId == userId {
			delete(d.userCodes, id)
		}
	}
	for id, r := range d.roles {
		if r.UserId == userId {
			delete(d.roles, id)
		}
	}
	for id, c := range d.credentials {
		if c.UserId == userId {
			delete(d.credentials, id)
		}
	}
	delete(d.users, userId)
	return channels, nil
}

// Counts of the stored records, for assertions

func (d *MockStoreClient) CountSharings() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sharings)
}

func (d *MockStoreClient) CountSharingTokens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sharingTokens)
}

func (d *MockStoreClient) CountTwilioChatChannels() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels)
}

func (d *MockStoreClient) CountUserTwilioChatChannels() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.memberships)
}

func (d *MockStoreClient) CountUsers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

// FindSharingTokens returns the tokens of a sharing
func (d *MockStoreClient) FindSharingTokens(sharingId int64) []*models.SharingToken {
	d.mu.Lock()
	defer d.mu.Unlock()
	var tokens []*models.SharingToken
	for _, id := range sortedIds(d.sharingTokens) {
		if t := d.sharingTokens[id]; t.SharingId == sharingId {
			found := *t
			tokens = append(tokens, &found)
		}
	}
	return tokens
}

// FindTwilioChatChannel returns a stored channel by id
func (d *MockStoreClient) FindTwilioChatChannel(id int64) *models.TwilioChatChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.channels[id]; ok {
		found := *c
		return &found
	}
	return nil
}

// FindUserTwilioChatChannels returns the channel memberships of a user
func (d *MockStoreClient) FindUserTwilioChatChannels(userId int64) []*models.UserTwilioChatChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	var memberships []*models.UserTwilioChatChannel
	for _, id := range sortedIds(d.memberships) {
		if m := d.memberships[id]; m.UserId == userId {
			found := *m
			memberships = append(memberships, &found)
		}
	}
	return memberships
}

func copySharing(s *models.Sharing) *models.Sharing {
	c := *s
	if s.ProviderId != nil {
		providerId := *s.ProviderId
		c.ProviderId = &providerId
	}
	if s.TwilioChatChannelId != nil {
		channelId := *s.TwilioChatChannelId
		c.TwilioChatChannelId = &channelId
	}
	return &c
}

func removeFrom[T any](records map[int64]T, id int64, name string) error {
	if _, ok := records[id]; !ok {
		return errors.Wrapf(ErrNotFound, "removing %d from %s", id, name)
	}
	delete(records, id)
	return nil
}

func sortedIds[T any](records map[int64]T) []int64 {
	ids := make([]int64, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
