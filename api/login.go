package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/weapp/dialiv/models"
)

type (
	loginBody struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	loginResponse struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		UserId  int64  `json:"userId"`
	}
)

// Log in to the dashboard named by the Referer
//
// The user must hold the role of that dashboard. The returned bearer token is accepted
// by every authenticated route.
//
// status: 200 {"success": true, "token": ..., "userId": ...}
// status: 400 malformed body or missing Referer
// status: 401 unknown email or wrong password
// status: 403 the user does not hold the role
// status: 422 email or password invalid
func (a *Api) Login(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	defer req.Body.Close()
	body := &loginBody{}
	if !a.decodeBody(res, req, body, http.StatusUnprocessableEntity, STATUS_ERR_VALIDATING_CREDS) {
		return
	}

	segment, role, ok := a.refererRole(res, req)
	if !ok {
		return
	}

	user, err := a.Store.FindUserByEmail(ctx, models.NormalizeEmail(body.Email))
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_USER, err)
		return
	}
	if user == nil {
		a.sendError(ctx, res, http.StatusUnauthorized, STATUS_INVALID_CREDENTIALS)
		return
	}

	credential, err := a.Store.FindUserCredential(ctx, user.Id)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_USER, err)
		return
	}
	if credential == nil {
		a.sendError(ctx, res, http.StatusUnauthorized, STATUS_INVALID_CREDENTIALS, zap.Int64("userId", user.Id))
		return
	}
	if err := a.hasher.Verify(credential.Password, body.Password); err != nil {
		a.sendError(ctx, res, http.StatusUnauthorized, STATUS_INVALID_CREDENTIALS, zap.Int64("userId", user.Id))
		return
	}

	roles, err := a.Store.FindUserRoles(ctx, user.Id)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_USER, err)
		return
	}
	if !role.IsValid() || !models.HasRole(roles, role) {
		a.sendError(ctx, res, http.StatusForbidden, STATUS_ROLE_NOT_GRANTED,
			zap.Int64("userId", user.Id), zap.String("role", segment))
		return
	}

	tok, err := a.tokens.Issue(user.Id, role.String())
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_SIGNING_TOKEN, err)
		return
	}
	a.metrics.event(EVENT_LOGIN)

	a.sendModelAsResWithStatus(ctx, res, loginResponse{Success: true, Token: tok, UserId: user.Id}, http.StatusOK)
}
