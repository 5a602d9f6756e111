package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken     = errors.New("auth: invalid token")
	ErrPasswordMismatch = errors.New("auth: password mismatch")
)

type (
	Config struct {
		TokenSecret string        `split_words:"true" required:"true"`
		TokenTTL    time.Duration `split_words:"true" default:"24h"`
		BcryptCost  int           `split_words:"true" default:"10"`
	}

	// TokenData is what a verified bearer token says about its holder.
	TokenData struct {
		UserId int64
		Role   string
	}

	// TokenService issues and verifies the bearer tokens of the api.
	TokenService interface {
		Issue(userId int64, role string) (string, error)
		Verify(token string) (*TokenData, error)
	}

	PasswordHasher interface {
		Hash(plain string) (string, error)
		Verify(hash, plain string) error
	}

	JWTTokenService struct {
		secret []byte
		ttl    time.Duration
		now    func() time.Time
	}

	BcryptHasher struct {
		cost int
	}
)

func NewJWTTokenService(cfg Config) *JWTTokenService {
	return &JWTTokenService{secret: []byte(cfg.TokenSecret), ttl: cfg.TokenTTL, now: time.Now}
}

// Issue signs an HS256 token whose subject is the user id.
func (s *JWTTokenService) Issue(userId int64, role string) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userId, 10),
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "auth: signing token")
	}
	return signed, nil
}

func (s *JWTTokenService) Verify(raw string) (*TokenData, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}
	userId, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	return &TokenData{UserId: userId, Role: role}, nil
}

func NewBcryptHasher(cfg Config) *BcryptHasher {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", errors.Wrap(err, "auth: hashing password")
	}
	return string(b), nil
}

// Verify returns ErrPasswordMismatch when plain does not match hash.
func (h *BcryptHasher) Verify(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

func authConfigProvider() (Config, error) {
	var config Config
	err := envconfig.Process("auth", &config)
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

func tokenServiceProvider(cfg Config) TokenService {
	return NewJWTTokenService(cfg)
}

func passwordHasherProvider(cfg Config) PasswordHasher {
	return NewBcryptHasher(cfg)
}

// Module provides the token service and the password hasher
var Module = fx.Options(fx.Provide(authConfigProvider, tokenServiceProvider, passwordHasherProvider))
