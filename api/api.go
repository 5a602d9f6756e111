package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tidepool-org/go-common/clients/status"

	"github.com/weapp/dialiv/auth"
	"github.com/weapp/dialiv/clients"
	"github.com/weapp/dialiv/models"
)

type (
	Api struct {
		Store      clients.StoreClient
		notifier   clients.Notifier
		chat       clients.ChatClient
		tokens     auth.TokenService
		hasher     auth.PasswordHasher
		templates  models.Templates
		metrics    *Metrics
		validate   *validator.Validate
		baseLogger *zap.SugaredLogger
		Config     Config
		now        func() time.Time
	}
	Config struct {
		// DashboardUrl is the origin of the web dashboards, links in emails point there
		DashboardUrl string `split_words:"true" required:"true"`
	}
)

const (
	HEADER_REQUEST_ID    = "X-Request-ID"
	HEADER_SHARING_TOKEN = "SharingToken"

	STATUS_ERR_BINDING_SHARING   = "Error binding the sharing to the provider"
	STATUS_ERR_CREATING_CODE     = "Error creating a verification code"
	STATUS_ERR_CREATING_REQUEST  = "Error creating a password reset request"
	STATUS_ERR_CREATING_SHARING  = "Error creating a sharing"
	STATUS_ERR_CREATING_TOKEN    = "Error creating a chat access token"
	STATUS_ERR_CREATING_USER     = "Error creating the user"
	STATUS_ERR_DECODING_BODY     = "Error decoding the request body"
	STATUS_ERR_FINDING_CODE      = "Error finding the verification code"
	STATUS_ERR_FINDING_SHARING   = "Error finding the sharing"
	STATUS_ERR_FINDING_USER      = "Error finding the user"
	STATUS_ERR_RESETTING_PASSWD  = "Error resetting the password"
	STATUS_ERR_SIGNING_TOKEN     = "Error signing the session token"
	STATUS_ERR_UPDATING_USER     = "Error updating user"
	STATUS_ERR_VALIDATING_BODY   = "Error validating the request body"
	STATUS_ERR_VALIDATING_CREDS  = "Email or password is invalid"
	STATUS_CODE_INCORRECT        = "Verification Code is Incorrect, Please try again!"
	STATUS_CODE_MISMATCH         = "code_mismatch"
	STATUS_EMAIL_REGISTERED      = "Email is already registered"
	STATUS_INVALID_CREDENTIALS   = "Email or password is incorrect"
	STATUS_INVALID_REFERER       = "The Referer header does not name a known application"
	STATUS_INVALID_TOKEN         = "The bearer token was invalid"
	STATUS_NO_TOKEN              = "No bearer token was found"
	STATUS_OK                    = "OK"
	STATUS_PASSWORD_RESET        = "Password has been reset"
	STATUS_ROLE_NOT_GRANTED      = "User does not hold the role of the application"
	STATUS_ROLE_NOT_SELF_GRANTED = "Role cannot be granted at registration"
	STATUS_SHARING_BOUND         = "The sharing has already been accepted"
	STATUS_SHARING_EXISTS        = "A sharing with this email already exists"
	STATUS_SHARING_SELF          = "Cannot share with yourself"
	STATUS_SHARING_TOKEN_INVALID = "The sharing token does not match the registration"
	STATUS_SHARING_TOKEN_UNKNOWN = "No matching sharing token was found"
	STATUS_USER_NOT_FOUND        = "User not found"
)

func NewApi(
	cfg Config,
	store clients.StoreClient,
	ntf clients.Notifier,
	chat clients.ChatClient,
	tokens auth.TokenService,
	hasher auth.PasswordHasher,
	templates models.Templates,
	metrics *Metrics,
	logger *zap.SugaredLogger,
) *Api {
	return &Api{
		Store:      store,
		Config:     cfg,
		notifier:   ntf,
		chat:       chat,
		tokens:     tokens,
		hasher:     hasher,
		templates:  templates,
		metrics:    metrics,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		baseLogger: logger,
		now:        time.Now,
	}
}

func apiConfigProvider() (Config, error) {
	var config Config
	err := envconfig.Process("dialiv", &config)
	if err != nil {
		return Config{}, err
	}
	config.DashboardUrl = strings.TrimSuffix(config.DashboardUrl, "/")
	return config, nil
}

func routerProvider(api *Api) *mux.Router {
	rtr := mux.NewRouter()
	api.SetHandlers("", rtr)
	return rtr
}

// RouterModule build a router
var RouterModule = fx.Options(fx.Provide(routerProvider, apiConfigProvider, metricsProvider))

type ctxLoggerKey struct{}

func (a *Api) logger(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return a.cloneLogger()
}

func (a *Api) cloneLogger() *zap.SugaredLogger {
	return a.baseLogger.WithOptions()
}

func (a *Api) ctxLoggerHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origCtx := r.Context()
		ctxLog := a.cloneLogger()
		ctxWithLog := context.WithValue(origCtx, ctxLoggerKey{}, ctxLog)
		rWithLog := r.WithContext(ctxWithLog)
		h.ServeHTTP(w, rWithLog)
	})
}

// requestIdHandler tags the request logger with the caller's X-Request-ID, or a fresh one,
// and echoes it back.
func (a *Api) requestIdHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get(HEADER_REQUEST_ID)
		if requestId == "" {
			requestId = uuid.New().String()
		}
		w.Header().Set(HEADER_REQUEST_ID, requestId)
		ctxLog := a.logger(r.Context()).With(zap.String("request_id", requestId))
		h.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxLoggerKey{}, ctxLog)))
	})
}

func (a *Api) SetHandlers(prefix string, rtr *mux.Router) {
	rtr.Use(mux.MiddlewareFunc(a.ctxLoggerHandler))
	rtr.Use(a.requestIdHandler)
	rtr.Use(a.metrics.handler)

	r := rtr
	if prefix != "" {
		r = rtr.PathPrefix(prefix).Subrouter()
	}

	r.HandleFunc("/status", a.IsReady).Methods("GET")
	r.HandleFunc("/ready", a.IsReady).Methods("GET")
	r.HandleFunc("/live", a.IsAlive).Methods("GET")
	r.Handle("/metrics", a.metrics.exposition).Methods("GET")

	// POST /sharings
	// GET /sharings
	r.HandleFunc("/sharings", a.CreateSharing).Methods("POST")
	r.HandleFunc("/sharings", a.GetSharings).Methods("GET")

	// POST /password-reset-requests
	// POST /users/reset-password
	r.HandleFunc("/password-reset-requests", a.CreatePasswordResetRequest).Methods("POST")
	r.HandleFunc("/users/reset-password", a.ResetPassword).Methods("POST")

	// POST /users
	// POST /users/verify-code
	// POST /users/login
	r.HandleFunc("/users", a.Register).Methods("POST")
	r.HandleFunc("/users/verify-code", a.VerifyCode).Methods("POST")
	r.HandleFunc("/users/login", a.Login).Methods("POST")

	// POST /user-codes
	r.HandleFunc("/user-codes", a.CreateUserCode).Methods("POST")

	// POST /twilio/token/chat
	r.HandleFunc("/twilio/token/chat", a.CreateChatToken).Methods("POST")
}

func (a *Api) IsReady(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	if err := a.Store.Ping(ctx); err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, "store connectivity failure", err)
		return
	}
	res.WriteHeader(http.StatusOK)
	res.Write([]byte(STATUS_OK))
}

func (a *Api) IsAlive(res http.ResponseWriter, req *http.Request) {
	res.WriteHeader(http.StatusOK)
	res.Write([]byte(STATUS_OK))
}

// decodeBody reads the JSON body into v and validates it.
//
// Malformed JSON is answered with a 400, a validation failure with invalidCode. Returns
// false once an error has been sent.
func (a *Api) decodeBody(res http.ResponseWriter, req *http.Request, v interface{}, invalidCode int, invalidReason string) bool {
	ctx := req.Context()
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		a.sendError(ctx, res, http.StatusBadRequest, STATUS_ERR_DECODING_BODY, err)
		return false
	}
	if err := a.validate.Struct(v); err != nil {
		a.sendError(ctx, res, invalidCode, invalidReason, err)
		return false
	}
	return true
}

// Render the named email and send it, errors are logged and counted but never returned
func (a *Api) createAndSendNotification(req *http.Request, templateName models.TemplateName, content map[string]interface{}, recipients ...string) bool {
	ctx := req.Context()

	content["DashboardURL"] = a.Config.DashboardUrl

	template, ok := a.templates[templateName]
	if !ok {
		a.logger(ctx).With(zap.String("template", string(templateName))).
			Info("unknown template type")
		a.metrics.event(EVENT_EMAIL_FAILED)
		return false
	}

	subject, body, err := template.Execute(content)
	if err != nil {
		a.logger(ctx).With(zap.Error(err)).Error("executing email template")
		a.metrics.event(EVENT_EMAIL_FAILED)
		return false
	}

	if len(recipients) == 0 {
		return true
	}

	if status, details := a.notifier.Send(recipients, subject, body); status != http.StatusOK {
		a.logger(ctx).Errorw(
			"error sending email",
			"email", recipients,
			"subject", subject,
			"status", status,
			"message", details,
		)
		a.metrics.event(EVENT_EMAIL_FAILED)
		return false
	}
	a.metrics.event(EVENT_EMAIL_SENT)
	return true
}

// find and validate the bearer token
//
// The token's userID field is added to the context's logger.
func (a *Api) token(res http.ResponseWriter, req *http.Request) *auth.TokenData {
	ctx := req.Context()
	if raw, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer "); ok && raw != "" {
		td, err := a.tokens.Verify(raw)
		if err != nil {
			a.sendError(ctx, res, http.StatusUnauthorized, STATUS_INVALID_TOKEN, err)
			return nil
		}
		//all good!

		ctxLog := a.logger(ctx).With(zap.Int64("token's userID", td.UserId))
		*req = *req.WithContext(context.WithValue(ctx, ctxLoggerKey{}, ctxLog))

		return td
	}
	a.sendError(ctx, res, http.StatusUnauthorized, STATUS_NO_TOKEN)
	return nil
}

// refererRole resolves the application the request comes from. The raw segment is kept
// for callers that accept segments that are not roles.
func (a *Api) refererRole(res http.ResponseWriter, req *http.Request) (string, models.Role, bool) {
	segment, role, err := models.RoleFromReferer(req.Header.Get("Referer"))
	if err != nil {
		a.sendError(req.Context(), res, http.StatusBadRequest, STATUS_INVALID_REFERER, err)
		return "", models.RoleUndefined, false
	}
	return segment, role, true
}

func (a *Api) sendModelAsResWithStatus(ctx context.Context, res http.ResponseWriter, model interface{}, statusCode int) {
	if jsonDetails, err := json.Marshal(model); err != nil {
		a.logger(ctx).With("model", model, zap.Error(err)).Errorf("trying to send model")
		http.Error(res, "Error marshaling data for response", http.StatusInternalServerError)
	} else {
		res.Header().Set("content-type", "application/json")
		res.WriteHeader(statusCode)
		res.Write(jsonDetails)
	}
}

func (a *Api) sendError(ctx context.Context, res http.ResponseWriter, statusCode int, reason string, extras ...interface{}) {
	a.sendErrorLog(ctx, statusCode, reason, extras...)
	a.sendModelAsResWithStatus(ctx, res, status.NewStatus(statusCode, reason), statusCode)
}

func (a *Api) sendErrorLog(ctx context.Context, code int, reason string, extras ...interface{}) {
	details := splitExtrasAndErrorsAndFields(extras)
	log := a.logger(ctx).WithOptions(zap.AddCallerSkip(2)).
		Desugar().With(details.Fields...).Sugar().
		With(zap.Int("code", code))
	if len(details.NonErrors) > 0 {
		log = log.With(zap.Array("extras", zapArrayAny(details.NonErrors)))
	}
	if len(details.Errors) == 1 {
		log = log.With(zap.Error(details.Errors[0]))
	} else if len(details.Errors) > 1 {
		log = log.With(zap.Errors("errors", details.Errors))
	}
	if code < http.StatusInternalServerError || len(details.Errors) == 0 {
		// if there are no errors, use info to skip the stack trace, as it's
		// probably not useful
		log.Info(reason)
	} else {
		log.Error(reason)
	}
}

// sendOK helps send a 200 response with a standard form and optional message.
func (a *Api) sendOK(ctx context.Context, res http.ResponseWriter, reason string) {
	a.sendModelAsResWithStatus(ctx, res, status.NewStatus(http.StatusOK, reason), http.StatusOK)
}

type extrasDetails struct {
	Errors    []error
	NonErrors []interface{}
	Fields    []zap.Field
}

func splitExtrasAndErrorsAndFields(extras []interface{}) extrasDetails {
	details := extrasDetails{
		Errors:    []error{},
		NonErrors: []interface{}{},
		Fields:    []zap.Field{},
	}
	for _, extra := range extras {
		if err, ok := extra.(error); ok {
			if err != nil {
				details.Errors = append(details.Errors, err)
			}
		} else if field, ok := extra.(zap.Field); ok {
			details.Fields = append(details.Fields, field)
		} else if extraErrs, ok := extra.([]error); ok {
			if len(extraErrs) > 0 {
				details.Errors = append(details.Errors, extraErrs...)
			}
		} else {
			details.NonErrors = append(details.NonErrors, extra)
		}
	}
	return details
}

// zapArrayAny helps convert extras to strings for inclusion in a structured
// log message.
func zapArrayAny(extras []interface{}) zapcore.ArrayMarshalerFunc {
	return zapcore.ArrayMarshalerFunc(func(enc zapcore.ArrayEncoder) error {
		for _, extra := range extras {
			enc.AppendString(fmt.Sprintf("%v", extra))
		}
		return nil
	})
}
