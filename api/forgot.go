package api

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/weapp/dialiv/models"
	"github.com/weapp/dialiv/utils/token"
)

const (
	STATUS_RESET_NO_ACCOUNT     = "Email %s does not exist"
	STATUS_RESET_TOKEN_MISMATCH = "The reset token does not match the email"
)

type (
	//lost password request
	forgotBody struct {
		Email string `json:"email" validate:"required,email,excludesall=&"`
	}

	//reset details reseting a users password
	resetBody struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
		Token    string `json:"token"`
	}
)

// Create a lost password request
//
// The Referer names the dashboard the user came from, the emailed link points back to
// the reset page of that same dashboard.
//
// If the email address is found, this will:
// - Store a reset request carrying the token
// - Send an email with a link containing the token
//
// status: 201 the reset request
// status: 400 no email given or the referer is not a dashboard
// status: 404 no account for the email
func (a *Api) CreatePasswordResetRequest(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	defer req.Body.Close()
	body := &forgotBody{}
	if !a.decodeBody(res, req, body, http.StatusBadRequest, STATUS_ERR_VALIDATING_BODY) {
		return
	}

	_, role, ok := a.refererRole(res, req)
	if !ok {
		return
	}
	if !role.IsValid() {
		a.sendError(ctx, res, http.StatusBadRequest, STATUS_INVALID_REFERER, zap.String("referer", req.Header.Get("Referer")))
		return
	}

	email := models.NormalizeEmail(body.Email)
	user, err := a.Store.FindUserByEmail(ctx, email)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_USER, err)
		return
	}
	if user == nil {
		a.sendError(ctx, res, http.StatusNotFound, fmt.Sprintf(STATUS_RESET_NO_ACCOUNT, body.Email))
		return
	}

	tok, err := token.PasswordReset(user.Email)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_CREATING_REQUEST, err)
		return
	}
	resetReq := &models.PasswordResetRequest{UserId: user.Id, Token: tok, Date: a.now().UTC()}
	if err := a.Store.CreatePasswordResetRequest(ctx, resetReq); err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_CREATING_REQUEST, err)
		return
	}
	a.metrics.event(EVENT_PASSWORD_RESET_REQUESTED)

	emailContent := map[string]interface{}{
		"ResetURL": token.Link(a.Config.DashboardUrl+"/"+role.String()+"/reset-password", tok),
	}
	a.createAndSendNotification(req, models.TemplateNamePasswordReset, emailContent, user.Email)

	a.sendModelAsResWithStatus(ctx, res, resetReq, http.StatusCreated)
}

// Replace the password of an account
//
// No reset token is required. When one is given it must have been issued for the same
// email. Outstanding reset requests of the user are dropped once the password changed.
//
// status: 200
// status: 400 malformed body
// status: 403 token issued for another email
// status: 404 no account for the email
// status: 422 email or password invalid
func (a *Api) ResetPassword(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	defer req.Body.Close()
	body := &resetBody{}
	if !a.decodeBody(res, req, body, http.StatusUnprocessableEntity, STATUS_ERR_VALIDATING_CREDS) {
		return
	}

	email := models.NormalizeEmail(body.Email)
	user, err := a.Store.FindUserByEmail(ctx, email)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_USER, err)
		return
	}
	if user == nil {
		a.sendError(ctx, res, http.StatusNotFound, fmt.Sprintf(STATUS_RESET_NO_ACCOUNT, body.Email))
		return
	}

	if body.Token != "" {
		tokenEmail, err := token.ParsePasswordReset(body.Token)
		if err != nil {
			a.sendError(ctx, res, http.StatusForbidden, STATUS_RESET_TOKEN_MISMATCH, err)
			return
		}
		if models.NormalizeEmail(tokenEmail) != user.Email {
			a.sendError(ctx, res, http.StatusForbidden, STATUS_RESET_TOKEN_MISMATCH)
			return
		}
	}

	hash, err := a.hasher.Hash(body.Password)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_RESETTING_PASSWD, err)
		return
	}
	if err := a.Store.ReplaceUserCredential(ctx, &models.UserCredential{UserId: user.Id, Password: hash}); err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_RESETTING_PASSWD, err)
		return
	}
	a.metrics.event(EVENT_PASSWORD_RESET)

	if removed, err := a.Store.RemovePasswordResetRequests(ctx, user.Id); err != nil {
		a.logger(ctx).With(zap.Error(err)).Warn("removing password reset requests")
	} else {
		a.logger(ctx).With(zap.Int64("removed", removed)).Debug("password reset requests removed")
	}

	a.sendOK(ctx, res, STATUS_PASSWORD_RESET)
}
