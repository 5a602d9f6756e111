package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/weapp/dialiv/clients"
	"github.com/weapp/dialiv/models"
	"github.com/weapp/dialiv/utils/token"
)

type (
	//signup details
	registrationBody struct {
		Email     string `json:"email" validate:"required,email,excludesall=&"`
		Password  string `json:"password" validate:"required,min=8"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Code      string `json:"code"`
		CodeId    int64  `json:"codeId"`
	}

	// codeIssued answers a registration attempt that still needs its email verified
	codeIssued struct {
		Id        int64     `json:"id"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"createdAt"`
	}

	verifyCodeBody struct {
		UserId int64  `json:"userId" validate:"required"`
		Code   string `json:"code" validate:"required"`
	}

	// invitation is a pending sharing claimed by a registering provider
	invitation struct {
		token   *models.SharingToken
		sharing *models.Sharing
	}
)

// @Summary Register an account
// @Description The role of the account is the dashboard named by the Referer, patient when
// @Description the dashboard is not a role. Every account also holds the patient role.
// @Description Patients register in two calls: the first one mails a single use verification
// @Description code, the second one carries the code and creates the account.
// @Description Providers may carry a SharingToken header, the invitation is then accepted
// @Description and a chat channel is opened with the inviter.
// @Accept  json
// @Produce  json
// @Success 201 {object} models.User "the account, or the issued code on a first patient call"
// @Failure 400 {object} status.Status "malformed body or missing Referer"
// @Failure 403 {object} status.Status "code or sharing token does not match"
// @Failure 404 {object} status.Status "unknown sharing token"
// @Failure 409 {object} status.Status "email already registered or invitation already accepted"
// @Failure 422 {object} status.Status "email or password invalid"
// @Router /users [post]
func (a *Api) Register(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	defer req.Body.Close()
	body := &registrationBody{}
	if !a.decodeBody(res, req, body, http.StatusUnprocessableEntity, STATUS_ERR_VALIDATING_CREDS) {
		return
	}
	email := models.NormalizeEmail(body.Email)

	segment, role, ok := a.refererRole(res, req)
	if !ok {
		return
	}
	switch role {
	case models.RoleAdministrator:
		a.sendError(ctx, res, http.StatusForbidden, STATUS_ROLE_NOT_SELF_GRANTED, zap.String("role", segment))
		return
	case models.RoleUndefined:
		role = models.RolePatient
	}

	var used *models.UserCode
	if role != models.RoleProvider {
		if body.Code == "" {
			code, err := a.issueCode(req, 0, email)
			if err != nil {
				a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_CREATING_CODE, err)
				return
			}
			a.sendModelAsResWithStatus(ctx, res, codeIssued{Id: code.Id, Email: code.Email, CreatedAt: code.CreatedAt}, http.StatusCreated)
			return
		}
		code, err := a.Store.FindUserCodeById(ctx, body.CodeId)
		if err != nil {
			a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_CODE, err)
			return
		}
		if code == nil || code.Code != body.Code || models.NormalizeEmail(code.Email) != email {
			a.sendError(ctx, res, http.StatusForbidden, STATUS_CODE_INCORRECT, zap.Int64("codeId", body.CodeId))
			return
		}
		used = code
	}

	if existing, err := a.Store.FindUserByEmail(ctx, email); err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_USER, err)
		return
	} else if existing != nil {
		a.sendError(ctx, res, http.StatusConflict, STATUS_EMAIL_REGISTERED)
		return
	}

	// the invitation is checked before anything is written
	var inv *invitation
	if raw := req.Header.Get(HEADER_SHARING_TOKEN); role == models.RoleProvider && raw != "" {
		if inv = a.findInvitation(res, req, raw, email); inv == nil {
			return
		}
	}

	user, err := a.createAccount(ctx, body, email, role)
	if err != nil {
		if errors.Is(err, clients.ErrDuplicate) {
			a.sendError(ctx, res, http.StatusConflict, STATUS_EMAIL_REGISTERED, err)
			return
		}
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_CREATING_USER, err)
		return
	}
	a.metrics.event(EVENT_USER_REGISTERED)

	if used != nil {
		if err := a.Store.RemoveUserCode(ctx, used.Id); err != nil {
			a.logger(ctx).With(zap.Error(err), zap.Int64("codeId", used.Id)).Error("consuming verification code")
		}
	}

	if inv != nil {
		undo := &undoStack{}
		if err := a.acceptInvitation(ctx, undo, inv, user); err != nil {
			undo.rollback(ctx, a.logger(ctx))
			a.metrics.event(EVENT_COMPENSATED)
			a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_BINDING_SHARING, err,
				zap.Int64("sharingId", inv.sharing.Id))
			return
		}
		a.metrics.event(EVENT_SHARING_BOUND)
	}

	a.sendModelAsResWithStatus(ctx, res, user, http.StatusCreated)
}

// createAccount stores the user with their credential, their role and the patient role.
// A partially created account is removed again.
func (a *Api) createAccount(ctx context.Context, body *registrationBody, email string, role models.Role) (*models.User, error) {
	now := a.now().UTC()
	user := &models.User{
		Email:                  email,
		FirstName:              body.FirstName,
		LastName:               body.LastName,
		DateRegistered:         now,
		EmailVerifiedAt:        &now,
		VersionOfTermsAccepted: &now,
	}
	if err := a.Store.CreateUser(ctx, user); err != nil {
		return nil, errors.Wrap(err, "saving user")
	}

	undo := &undoStack{}
	undo.push("user", func(ctx context.Context) error {
		_, err := a.Store.RemoveUserData(ctx, user.Id)
		return err
	})

	err := func() error {
		hash, err := a.hasher.Hash(body.Password)
		if err != nil {
			return errors.Wrap(err, "hashing password")
		}
		if err := a.Store.ReplaceUserCredential(ctx, &models.UserCredential{UserId: user.Id, Password: hash}); err != nil {
			return errors.Wrap(err, "saving credential")
		}
		if err := a.Store.CreateUserRole(ctx, &models.UserRole{UserId: user.Id, RoleId: role}); err != nil {
			return errors.Wrap(err, "saving role")
		}
		// every account can use the patient dashboard
		return a.grantRole(ctx, user.Id, models.RolePatient)
	}()
	if err != nil {
		undo.rollback(ctx, a.logger(ctx))
		a.metrics.event(EVENT_COMPENSATED)
		return nil, err
	}
	return user, nil
}

// findInvitation resolves the SharingToken header of a registering provider. It writes
// the error response and returns nil when the token cannot be accepted by email.
func (a *Api) findInvitation(res http.ResponseWriter, req *http.Request, raw, email string) *invitation {
	ctx := req.Context()

	sharingToken, err := a.Store.FindSharingToken(ctx, raw)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_SHARING, err)
		return nil
	}
	if sharingToken == nil {
		a.sendError(ctx, res, http.StatusNotFound, STATUS_SHARING_TOKEN_UNKNOWN)
		return nil
	}

	fields, err := token.ParseInvitation(raw)
	if err != nil {
		a.sendError(ctx, res, http.StatusForbidden, STATUS_SHARING_TOKEN_INVALID, err)
		return nil
	}
	if models.NormalizeEmail(fields.Email) != email || fields.SharingId != sharingToken.SharingId {
		a.sendError(ctx, res, http.StatusForbidden, STATUS_SHARING_TOKEN_INVALID,
			zap.Int64("sharingId", sharingToken.SharingId))
		return nil
	}

	sharing, err := a.Store.FindSharingById(ctx, sharingToken.SharingId)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_SHARING, err)
		return nil
	}
	if sharing == nil {
		a.sendError(ctx, res, http.StatusNotFound, STATUS_SHARING_TOKEN_UNKNOWN, zap.Int64("sharingId", sharingToken.SharingId))
		return nil
	}
	if sharing.IsBound() {
		a.sendError(ctx, res, http.StatusConflict, STATUS_SHARING_BOUND, zap.Int64("sharingId", sharing.Id))
		return nil
	}
	return &invitation{token: sharingToken, sharing: sharing}
}

// acceptInvitation binds the sharing to the new provider and consumes its token
func (a *Api) acceptInvitation(ctx context.Context, undo *undoStack, inv *invitation, provider *models.User) error {
	sharing := inv.sharing

	channel, err := a.provisionChannel(ctx, undo, sharing.UserId, provider.Id)
	if err != nil {
		return err
	}
	if err := a.joinChannel(ctx, undo, channel, sharing.UserId, provider.Id); err != nil {
		return err
	}

	sharing.Bind(provider.Id, channel.Id)
	if err := a.Store.UpdateSharing(ctx, sharing); err != nil {
		return errors.Wrap(err, "binding sharing")
	}
	undo.push("sharing binding", func(ctx context.Context) error {
		sharing.Unbind()
		return a.Store.UpdateSharing(ctx, sharing)
	})

	if err := a.Store.RemoveSharingToken(ctx, inv.token.Id); err != nil {
		return errors.Wrap(err, "consuming sharing token")
	}
	return nil
}

// Mark the email of an account as verified
//
// The code must be the last one issued to the user.
//
// status: 200 {"success": true}
// status: 400 malformed body
// status: 403 code_mismatch
// status: 404 unknown user
func (a *Api) VerifyCode(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	defer req.Body.Close()
	body := &verifyCodeBody{}
	if !a.decodeBody(res, req, body, http.StatusBadRequest, STATUS_ERR_VALIDATING_BODY) {
		return
	}

	user, err := a.Store.FindUserById(ctx, body.UserId)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_USER, err)
		return
	}
	if user == nil {
		a.sendError(ctx, res, http.StatusNotFound, STATUS_USER_NOT_FOUND, zap.Int64("userId", body.UserId))
		return
	}

	latest, err := a.Store.FindLatestUserCode(ctx, user.Id)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_CODE, err)
		return
	}
	if latest == nil || latest.Code != body.Code {
		a.sendError(ctx, res, http.StatusForbidden, STATUS_CODE_MISMATCH, zap.Int64("userId", user.Id))
		return
	}

	user.MarkVerified(a.now().UTC())
	if err := a.Store.UpdateUser(ctx, user); err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_UPDATING_USER, err)
		return
	}
	a.metrics.event(EVENT_USER_VERIFIED)

	a.sendModelAsResWithStatus(ctx, res, map[string]bool{"success": true}, http.StatusOK)
}
