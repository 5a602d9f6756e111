package api

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/weapp/dialiv/models"
	"github.com/weapp/dialiv/utils/otp"
)

type userCodeBody struct {
	Email string `json:"email" validate:"required,email"`
}

// issueCode stores a fresh verification code and mails it. userId is zero for an
// account that does not exist yet. A mail failure does not fail the issuance.
func (a *Api) issueCode(req *http.Request, userId int64, email string) (*models.UserCode, error) {
	code := &models.UserCode{
		UserId:    userId,
		Email:     email,
		Code:      otp.Signup(),
		CreatedAt: a.now().UTC(),
	}
	if err := a.Store.CreateUserCode(req.Context(), code); err != nil {
		return nil, errors.Wrap(err, "saving user code")
	}
	a.metrics.event(EVENT_USER_CODE_ISSUED)

	a.createAndSendNotification(req, models.TemplateNameVerificationCode, map[string]interface{}{"Code": code.Code}, email)
	return code, nil
}

// Send a new verification code to an existing account
//
// status: 201 the code record, without the code
// status: 400 no email given
// status: 404 no account for the email
func (a *Api) CreateUserCode(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	defer req.Body.Close()
	body := &userCodeBody{}
	if !a.decodeBody(res, req, body, http.StatusBadRequest, STATUS_ERR_VALIDATING_BODY) {
		return
	}

	user, err := a.Store.FindUserByEmail(ctx, models.NormalizeEmail(body.Email))
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_USER, err)
		return
	}
	if user == nil {
		a.sendError(ctx, res, http.StatusNotFound, STATUS_USER_NOT_FOUND)
		return
	}

	code, err := a.issueCode(req, user.Id, user.Email)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_CREATING_CODE, err)
		return
	}
	a.sendModelAsResWithStatus(ctx, res, code, http.StatusCreated)
}
