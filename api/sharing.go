package api

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/weapp/dialiv/clients"
	"github.com/weapp/dialiv/models"
	"github.com/weapp/dialiv/utils/token"
)

type (
	sharingBody struct {
		Email string `json:"email" validate:"required,email,excludesall=&"`
		Name  string `json:"name" validate:"excludesall=&"`
	}

	sharingsResponse struct {
		Sent     []*models.Sharing `json:"sent"`
		Received []*models.Sharing `json:"received"`
	}
)

// @Summary Invite a provider to follow the patient
// @Description When the invitee already has an account the sharing is bound to it right away
// @Description and a chat channel is opened, otherwise a registration link is mailed.
// @Accept  json
// @Produce  json
// @Success 201 {object} models.Sharing
// @Failure 400 {object} status.Status "email is missing or malformed"
// @Failure 401 {object} status.Status "bearer token is missing or invalid"
// @Failure 404 {object} status.Status "the inviter no longer exists"
// @Failure 409 {object} status.Status "the inviter already shares with this email"
// @Failure 500 {object} status.Status "a write failed, every write done so far was undone"
// @Router /sharings [post]
func (a *Api) CreateSharing(res http.ResponseWriter, req *http.Request) {
	td := a.token(res, req)
	if td == nil {
		return
	}
	ctx := req.Context()

	defer req.Body.Close()
	body := &sharingBody{}
	if !a.decodeBody(res, req, body, http.StatusBadRequest, STATUS_ERR_VALIDATING_BODY) {
		return
	}
	email := models.NormalizeEmail(body.Email)

	inviter, err := a.Store.FindUserById(ctx, td.UserId)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_USER, err)
		return
	}
	if inviter == nil {
		a.sendError(ctx, res, http.StatusNotFound, STATUS_USER_NOT_FOUND, zap.Int64("userId", td.UserId))
		return
	}
	if inviter.Email == email {
		a.sendError(ctx, res, http.StatusBadRequest, STATUS_SHARING_SELF)
		return
	}

	existing, err := a.Store.FindSharings(ctx, clients.SharingFilter{UserId: inviter.Id, Email: email})
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_SHARING, err)
		return
	}
	if len(existing) > 0 {
		a.sendError(ctx, res, http.StatusConflict, STATUS_SHARING_EXISTS, zap.Int64("sharingId", existing[0].Id))
		return
	}

	invitee, err := a.Store.FindUserByEmail(ctx, email)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_USER, err)
		return
	}

	undo := &undoStack{}
	var sharing *models.Sharing
	var registerURL string
	if invitee != nil {
		sharing, err = a.shareWithProvider(ctx, undo, inviter, invitee, body.Name)
	} else {
		sharing, registerURL, err = a.shareWithInvitee(ctx, undo, inviter, email, body.Name)
	}
	if err != nil {
		undo.rollback(ctx, a.logger(ctx))
		a.metrics.event(EVENT_COMPENSATED)
		if errors.Is(err, clients.ErrDuplicate) {
			a.sendError(ctx, res, http.StatusConflict, STATUS_SHARING_EXISTS, err)
			return
		}
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_CREATING_SHARING, err)
		return
	}
	a.metrics.event(EVENT_SHARING_INVITED)

	emailContent := map[string]interface{}{
		"InviterName": inviterName(inviter),
	}
	templateName := models.TemplateNameInvitationNotice
	if registerURL != "" {
		templateName = models.TemplateNameInvitation
		emailContent["RegisterURL"] = registerURL
	}
	a.createAndSendNotification(req, templateName, emailContent, email)

	a.sendModelAsResWithStatus(ctx, res, sharing, http.StatusCreated)
}

// shareWithProvider binds a new sharing to an existing account and opens their chat channel
func (a *Api) shareWithProvider(ctx context.Context, undo *undoStack, inviter, provider *models.User, name string) (*models.Sharing, error) {
	channel, err := a.provisionChannel(ctx, undo, inviter.Id, provider.Id)
	if err != nil {
		return nil, err
	}

	sharing := &models.Sharing{UserId: inviter.Id, Email: provider.Email, Name: name}
	sharing.Bind(provider.Id, channel.Id)
	if err := a.Store.CreateSharing(ctx, sharing); err != nil {
		return nil, errors.Wrap(err, "saving sharing")
	}
	undo.push("sharing", func(ctx context.Context) error {
		return a.Store.RemoveSharing(ctx, sharing.Id)
	})

	if err := a.joinChannel(ctx, undo, channel, inviter.Id, provider.Id); err != nil {
		return nil, err
	}
	if err := a.grantRole(ctx, provider.Id, models.RoleProvider); err != nil {
		return nil, err
	}
	return sharing, nil
}

// shareWithInvitee stores a pending sharing along with its registration token and
// returns the registration link.
func (a *Api) shareWithInvitee(ctx context.Context, undo *undoStack, inviter *models.User, email, name string) (*models.Sharing, string, error) {
	sharing := &models.Sharing{UserId: inviter.Id, Email: email, Name: name}
	if err := a.Store.CreateSharing(ctx, sharing); err != nil {
		return nil, "", errors.Wrap(err, "saving sharing")
	}
	undo.push("sharing", func(ctx context.Context) error {
		return a.Store.RemoveSharing(ctx, sharing.Id)
	})

	tok, err := token.Invitation(email, name, sharing.Id)
	if err != nil {
		return nil, "", errors.Wrap(err, "encoding invitation token")
	}
	sharingToken := &models.SharingToken{SharingId: sharing.Id, Token: tok}
	if err := a.Store.CreateSharingToken(ctx, sharingToken); err != nil {
		return nil, "", errors.Wrap(err, "saving sharing token")
	}
	undo.push("sharing token", func(ctx context.Context) error {
		return a.Store.RemoveSharingToken(ctx, sharingToken.Id)
	})

	return sharing, token.Link(a.Config.DashboardUrl+"/provider/register", tok), nil
}

// GetSharings lists the sharings the caller sent and the ones they received as provider
func (a *Api) GetSharings(res http.ResponseWriter, req *http.Request) {
	td := a.token(res, req)
	if td == nil {
		return
	}
	ctx := req.Context()

	sent, err := a.Store.FindSharings(ctx, clients.SharingFilter{UserId: td.UserId})
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_SHARING, err)
		return
	}
	received, err := a.Store.FindSharings(ctx, clients.SharingFilter{ProviderId: td.UserId})
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_FINDING_SHARING, err)
		return
	}
	if sent == nil {
		sent = []*models.Sharing{}
	}
	if received == nil {
		received = []*models.Sharing{}
	}
	a.sendModelAsResWithStatus(ctx, res, sharingsResponse{Sent: sent, Received: received}, http.StatusOK)
}

func inviterName(u *models.User) string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Email
}
