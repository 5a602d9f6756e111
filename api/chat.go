package api

import "net/http"

type (
	chatTokenBody struct {
		Identity string `json:"identity" validate:"required"`
	}

	chatTokenResponse struct {
		Identity string `json:"identity"`
		Token    string `json:"token"`
	}
)

// CreateChatToken issues the access token a chat client connects with
func (a *Api) CreateChatToken(res http.ResponseWriter, req *http.Request) {
	if td := a.token(res, req); td == nil {
		return
	}
	ctx := req.Context()

	defer req.Body.Close()
	body := &chatTokenBody{}
	if !a.decodeBody(res, req, body, http.StatusBadRequest, STATUS_ERR_VALIDATING_BODY) {
		return
	}

	tok, err := a.chat.AccessToken(body.Identity)
	if err != nil {
		a.sendError(ctx, res, http.StatusInternalServerError, STATUS_ERR_CREATING_TOKEN, err)
		return
	}
	a.metrics.event(EVENT_CHAT_TOKEN_ISSUED)

	a.sendModelAsResWithStatus(ctx, res, chatTokenResponse{Identity: body.Identity, Token: tok}, http.StatusOK)
}
