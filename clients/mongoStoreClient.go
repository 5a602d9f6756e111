package clients

import (
	"context"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/weapp/dialiv/models"
)

const (
	countersCollection               = "counters"
	usersCollection                  = "users"
	userCredentialsCollection        = "userCredentials"
	userRolesCollection              = "userRoles"
	sharingsCollection               = "sharings"
	sharingTokensCollection          = "sharingTokens"
	twilioChatChannelsCollection     = "twilioChatChannels"
	userTwilioChatChannelsCollection = "userTwilioChatChannels"
	passwordResetRequestsCollection  = "passwordResetRequests"
	userCodesCollection              = "userCodes"
)

type MongoConfig struct {
	Uri      string        `default:"mongodb://localhost:27017"`
	Database string        `default:"dialiv"`
	Timeout  time.Duration `default:"10s"`
}

type MongoStoreClient struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.SugaredLogger
}

func NewMongoStoreClient(ctx context.Context, config MongoConfig, logger *zap.SugaredLogger) (*MongoStoreClient, error) {
	opts := options.Client().ApplyURI(config.Uri).SetConnectTimeout(config.Timeout).SetServerSelectionTimeout(config.Timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	return &MongoStoreClient{
		client:   client,
		database: client.Database(config.Database),
		logger:   logger,
	}, nil
}

func (c *MongoStoreClient) collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}

// EnsureIndexes creates the uniqueness constraints the store relies on
func (c *MongoStoreClient) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		userCredentialsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		userRolesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "roleId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		sharingsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "providerId", Value: 1}}},
		},
		sharingTokensCollection: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "sharingId", Value: 1}}},
		},
		twilioChatChannelsCollection: {
			{Keys: bson.D{{Key: "channelId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		userTwilioChatChannelsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		passwordResetRequestsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		userCodesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for name, indexModels := range indexes {
		if _, err := c.collection(name).Indexes().CreateMany(ctx, indexModels); err != nil {
			return errors.Wrapf(err, "creating indexes of %s", name)
		}
	}
	return nil
}

func (c *MongoStoreClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *MongoStoreClient) Close(ctx context.Context) error {
	c.logger.Info("Close the session")
	return c.client.Disconnect(ctx)
}

// nextId increments the sequence of a collection and returns its new value
func (c *MongoStoreClient) nextId(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := c.collection(countersCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).
		Decode(&counter)
	if err != nil {
		return 0, errors.Wrapf(err, "incrementing %s sequence", name)
	}
	return counter.Seq, nil
}

func (c *MongoStoreClient) insert(ctx context.Context, name string, id *int64, document interface{}) error {
	next, err := c.nextId(ctx, name)
	if err != nil {
		return err
	}
	*id = next
	if _, err := c.collection(name).InsertOne(ctx, document); err != nil {
		*id = 0
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(ErrDuplicate, "inserting into %s", name)
		}
		return errors.Wrapf(err, "inserting into %s", name)
	}
	return nil
}

// findOne decodes the first match into result and reports whether there was one
func (c *MongoStoreClient) findOne(ctx context.Context, name string, filter interface{}, result interface{}, opts ...*options.FindOneOptions) (bool, error) {
	err := c.collection(name).FindOne(ctx, filter, opts...).Decode(result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "finding in %s", name)
	}
	return true, nil
}

func (c *MongoStoreClient) replace(ctx context.Context, name string, id int64, document interface{}) error {
	res, err := c.collection(name).ReplaceOne(ctx, bson.M{"_id": id}, document)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(ErrDuplicate, "replacing in %s", name)
		}
		return errors.Wrapf(err, "replacing in %s", name)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "replacing %d in %s", id, name)
	}
	return nil
}

func (c *MongoStoreClient) removeById(ctx context.Context, name string, id int64) error {
	res, err := c.collection(name).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "removing from %s", name)
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(ErrNotFound, "removing %d from %s", id, name)
	}
	return nil
}

func (c *MongoStoreClient) removeMany(ctx context.Context, name string, filter interface{}) (int64, error) {
	res, err := c.collection(name).DeleteMany(ctx, filter)
	if err != nil {
		return 0, errors.Wrapf(err, "removing from %s", name)
	}
	return res.DeletedCount, nil
}

func (c *MongoStoreClient) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	return c.insert(ctx, usersCollection, &user.Id, user)
}

func (c *MongoStoreClient) FindUserById(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if found, err := c.findOne(ctx, usersCollection, bson.M{"_id": id}, &user); !found {
		return nil, err
	}
	return &user, nil
}

func (c *MongoStoreClient) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if found, err := c.findOne(ctx, usersCollection, bson.M{"email": models.NormalizeEmail(email)}, &user); !found {
		return nil, err
	}
	return &user, nil
}

func (c *MongoStoreClient) UpdateUser(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	return c.replace(ctx, usersCollection, user.Id, user)
}

func (c *MongoStoreClient) ReplaceUserCredential(ctx context.Context, credential *models.UserCredential) error {
	if _, err := c.removeMany(ctx, userCredentialsCollection, bson.M{"userId": credential.UserId}); err != nil {
		return err
	}
	return c.insert(ctx, userCredentialsCollection, &credential.Id, credential)
}

func (c *MongoStoreClient) FindUserCredential(ctx context.Context, userId int64) (*models.UserCredential, error) {
	var credential models.UserCredential
	if found, err := c.findOne(ctx, userCredentialsCollection, bson.M{"userId": userId}, &credential); !found {
		return nil, err
	}
	return &credential, nil
}

func (c *MongoStoreClient) CreateUserRole(ctx context.Context, role *models.UserRole) error {
	return c.insert(ctx, userRolesCollection, &role.Id, role)
}

func (c *MongoStoreClient) FindUserRoles(ctx context.Context, userId int64) ([]*models.UserRole, error) {
	var roles []*models.UserRole
	if err := c.findAll(ctx, userRolesCollection, bson.M{"userId": userId}, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (c *MongoStoreClient) findAll(ctx context.Context, name string, filter interface{}, results interface{}, opts ...*options.FindOptions) error {
	cursor, err := c.collection(name).Find(ctx, filter, opts...)
	if err != nil {
		return errors.Wrapf(err, "finding in %s", name)
	}
	if err := cursor.All(ctx, results); err != nil {
		return errors.Wrapf(err, "decoding from %s", name)
	}
	return nil
}

func (c *MongoStoreClient) CreateSharing(ctx context.Context, sharing *models.Sharing) error {
	sharing.Email = models.NormalizeEmail(sharing.Email)
	return c.insert(ctx, sharingsCollection, &sharing.Id, sharing)
}

func (c *MongoStoreClient) FindSharingById(ctx context.Context, id int64) (*models.Sharing, error) {
	var sharing models.Sharing
	if found, err := c.findOne(ctx, sharingsCollection, bson.M{"_id": id}, &sharing); !found {
		return nil, err
	}
	return &sharing, nil
}

func (c *MongoStoreClient) FindSharings(ctx context.Context, filter SharingFilter) ([]*models.Sharing, error) {
	query := bson.M{}
	if filter.UserId != 0 {
		query["userId"] = filter.UserId
	}
	if filter.ProviderId != 0 {
		query["providerId"] = filter.ProviderId
	}
	if filter.Email != "" {
		query["email"] = models.NormalizeEmail(filter.Email)
	}
	var sharings []*models.Sharing
	if err := c.findAll(ctx, sharingsCollection, query, &sharings, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})); err != nil {
		return nil, err
	}
	return sharings, nil
}

func (c *MongoStoreClient) UpdateSharing(ctx context.Context, sharing *models.Sharing) error {
	return c.replace(ctx, sharingsCollection, sharing.Id, sharing)
}

func (c *MongoStoreClient) RemoveSharing(ctx context.Context, id int64) error {
	return c.removeById(ctx, sharingsCollection, id)
}

func (c *MongoStoreClient) CreateSharingToken(ctx context.Context, token *models.SharingToken) error {
	return c.insert(ctx, sharingTokensCollection, &token.Id, token)
}

func (c *MongoStoreClient) FindSharingToken(ctx context.Context, token string) (*models.SharingToken, error) {
	var sharingToken models.SharingToken
	if found, err := c.findOne(ctx, sharingTokensCollection, bson.M{"token": token}, &sharingToken); !found {
		return nil, err
	}
	return &sharingToken, nil
}

func (c *MongoStoreClient) RemoveSharingToken(ctx context.Context, id int64) error {
	return c.removeById(ctx, sharingTokensCollection, id)
}

func (c *MongoStoreClient) CreateTwilioChatChannel(ctx context.Context, channel *models.TwilioChatChannel) error {
	return c.insert(ctx, twilioChatChannelsCollection, &channel.Id, channel)
}

func (c *MongoStoreClient) RemoveTwilioChatChannel(ctx context.Context, id int64) error {
	return c.removeById(ctx, twilioChatChannelsCollection, id)
}

func (c *MongoStoreClient) CreateUserTwilioChatChannel(ctx context.Context, membership *models.UserTwilioChatChannel) error {
	return c.insert(ctx, userTwilioChatChannelsCollection, &membership.Id, membership)
}

func (c *MongoStoreClient) RemoveUserTwilioChatChannel(ctx context.Context, id int64) error {
	return c.removeById(ctx, userTwilioChatChannelsCollection, id)
}

func (c *MongoStoreClient) CreatePasswordResetRequest(ctx context.Context, request *models.PasswordResetRequest) error {
	return c.insert(ctx, passwordResetRequestsCollection, &request.Id, request)
}

func (c *MongoStoreClient) FindPasswordResetRequests(ctx context.Context, userId int64) ([]*models.PasswordResetRequest, error) {
	var requests []*models.PasswordResetRequest
	if err := c.findAll(ctx, passwordResetRequestsCollection, bson.M{"userId": userId}, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (c *MongoStoreClient) RemovePasswordResetRequests(ctx context.Context, userId int64) (int64, error) {
	return c.removeMany(ctx, passwordResetRequestsCollection, bson.M{"userId": userId})
}

func (c *MongoStoreClient) CreateUserCode(ctx context.Context, code *models.UserCode) error {
	code.Email = models.NormalizeEmail(code.Email)
	return c.insert(ctx, userCodesCollection, &code.Id, code)
}

func (c *MongoStoreClient) FindUserCodeById(ctx context.Context, id int64) (*models.UserCode, error) {
	var code models.UserCode
	if found, err := c.findOne(ctx, userCodesCollection, bson.M{"_id": id}, &code); !found {
		return nil, err
	}
	return &code, nil
}

func (c *MongoStoreClient) FindLatestUserCode(ctx context.Context, userId int64) (*models.UserCode, error) {
	var code models.UserCode
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if found, err := c.findOne(ctx, userCodesCollection, bson.M{"userId": userId}, &code, opts); !found {
		return nil, err
	}
	return &code, nil
}

func (c *MongoStoreClient) RemoveUserCode(ctx context.Context, id int64) error {
	return c.removeById(ctx, userCodesCollection, id)
}

func (c *MongoStoreClient) RemoveUserData(ctx context.Context, userId int64) ([]*models.TwilioChatChannel, error) {
	sent, err := c.FindSharings(ctx, SharingFilter{UserId: userId})
	if err != nil {
		return nil, err
	}
	received, err := c.FindSharings(ctx, SharingFilter{ProviderId: userId})
	if err != nil {
		return nil, err
	}
	sharingIds := []int64{}
	channelIds := []int64{}
	for _, sharing := range append(sent, received...) {
		sharingIds = append(sharingIds, sharing.Id)
		if sharing.TwilioChatChannelId != nil {
			channelIds = append(channelIds, *sharing.TwilioChatChannelId)
		}
	}

	var channels []*models.TwilioChatChannel
	if err := c.findAll(ctx, twilioChatChannelsCollection, bson.M{"_id": bson.M{"$in": channelIds}}, &channels); err != nil {
		return nil, err
	}

	removals := []struct {
		name   string
		filter bson.M
	}{
		{sharingTokensCollection, bson.M{"sharingId": bson.M{"$in": sharingIds}}},
		{sharingsCollection, bson.M{"_id": bson.M{"$in": sharingIds}}},
		{userTwilioChatChannelsCollection, bson.M{"$or": bson.A{
			bson.M{"userId": userId},
			bson.M{"twilioChatChannelId": bson.M{"$in": channelIds}},
		}}},
		{twilioChatChannelsCollection, bson.M{"_id": bson.M{"$in": channelIds}}},
		{passwordResetRequestsCollection, bson.M{"userId": userId}},
		{userCodesCollection, bson.M{"userId": userId}},
		{userRolesCollection, bson.M{"userId": userId}},
		{userCredentialsCollection, bson.M{"userId": userId}},
		{usersCollection, bson.M{"_id": userId}},
	}
	for _, removal := range removals {
		count, err := c.removeMany(ctx, removal.name, removal.filter)
		if err != nil {
			return nil, err
		}
		c.logger.Debugw("removed user data", "collection", removal.name, "userId", userId, "count", count)
	}
	return channels, nil
}

func mongoConfigProvider() (MongoConfig, error) {
	var config MongoConfig
	if err := envconfig.Process("mongo", &config); err != nil {
		return MongoConfig{}, err
	}
	return config, nil
}

func mongoStoreProvider(lifecycle fx.Lifecycle, config MongoConfig, logger *zap.SugaredLogger) (StoreClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	store, err := NewMongoStoreClient(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return store.EnsureIndexes(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return store.Close(ctx)
		},
	})
	return store, nil
}

// MongoModule provides the mongo backed StoreClient
var MongoModule = fx.Options(fx.Provide(mongoConfigProvider, mongoStoreProvider))
