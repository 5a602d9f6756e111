package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weapp/dialiv/models"
	"github.com/weapp/dialiv/testutil"
	"github.com/weapp/dialiv/utils/token"
)

func TestForgotResponds(t *testing.T) {
	logger := testutil.NewLogger(t)

	tests := []toTest{
		{
			method:       "POST",
			url:          "/password-reset-requests",
			body:         jo{"email": "pat@x.com"},
			headers:      map[string]string{"Referer": testing_patient_referer},
			respCode:     201,
			emailSubject: "Reset Password",
			response:     jo{"userId": float64(1)},
		},
		{
			// email lookups ignore case
			method:       "POST",
			url:          "/password-reset-requests",
			body:         jo{"email": "Pat@X.com"},
			headers:      map[string]string{"Referer": testing_provider_referer},
			respCode:     201,
			emailSubject: "Reset Password",
		},
		{
			//no data given
			method:   "POST",
			url:      "/password-reset-requests",
			headers:  map[string]string{"Referer": testing_patient_referer},
			respCode: 400,
		},
		{
			method:   "POST",
			url:      "/password-reset-requests",
			body:     jo{"email": "not an email"},
			headers:  map[string]string{"Referer": testing_patient_referer},
			respCode: 400,
		},
		{
			// no Referer
			method:   "POST",
			url:      "/password-reset-requests",
			body:     jo{"email": "pat@x.com"},
			respCode: 400,
			response: jo{"reason": STATUS_INVALID_REFERER},
		},
		{
			// the referer is not a dashboard
			method:   "POST",
			url:      "/password-reset-requests",
			body:     jo{"email": "pat@x.com"},
			headers:  map[string]string{"Referer": testing_dashboard + "/blog/post"},
			respCode: 400,
			response: jo{"reason": STATUS_INVALID_REFERER},
		},
		{
			method:   "POST",
			url:      "/password-reset-requests",
			body:     jo{"email": "nobody@x.com"},
			headers:  map[string]string{"Referer": testing_patient_referer},
			respCode: 404,
			response: jo{"code": float64(404), "reason": "Email nobody@x.com does not exist"},
		},
	}

	for idx, test := range tests {
		if test.skip {
			continue
		}

		//fresh each time
		env := newTestEnv(t, logger)
		env.seedUser(t, "pat@x.com", "Pat", "Smith", models.RolePatient)

		env.check(t, idx, test, env.do(t, test))

		requests, err := env.store.FindPasswordResetRequests(context.Background(), 1)
		require.NoError(t, err)
		if test.respCode == http.StatusCreated {
			if len(requests) != 1 || len(env.notifier.SentEmails()) != 1 {
				t.Fatalf("Test %d url: '%s'\nExpected one request and one email, got %d and %d",
					idx, test.url, len(requests), len(env.notifier.SentEmails()))
			}
		} else if len(requests) != 0 || len(env.notifier.SentEmails()) != 0 {
			t.Fatalf("Test %d url: '%s'\nNo request nor email expected, got %d and %d",
				idx, test.url, len(requests), len(env.notifier.SentEmails()))
		}
	}
}

func TestForgotLinkCarriesToken(t *testing.T) {
	env := newTestEnv(t, testutil.NewLogger(t))
	pat := env.seedUser(t, "pat@x.com", "Pat", "Smith", models.RolePatient)

	response := env.do(t, toTest{
		method:  "POST",
		url:     "/password-reset-requests",
		body:    jo{"email": "pat@x.com"},
		headers: map[string]string{"Referer": testing_dashboard + "/Patient/forgot-password"},
	})
	require.Equal(t, http.StatusCreated, response.Code, response.Body.String())

	requests, err := env.store.FindPasswordResetRequests(context.Background(), pat.Id)
	require.NoError(t, err)
	require.Len(t, requests, 1)

	email, err := token.ParsePasswordReset(requests[0].Token)
	require.NoError(t, err)
	assert.Equal(t, "pat@x.com", email)

	sent := env.notifier.LastEmail()
	require.NotNil(t, sent)
	assert.Equal(t, []string{"pat@x.com"}, sent.To)
	assert.Contains(t, sent.Msg, token.Link(testing_dashboard+"/patient/reset-password", requests[0].Token))
}

func TestForgotMailFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t, testutil.NewLogger(t))
	pat := env.seedUser(t, "pat@x.com", "Pat", "Smith", models.RolePatient)
	env.notifier.FailWith(http.StatusInternalServerError)

	response := env.do(t, toTest{
		method:  "POST",
		url:     "/password-reset-requests",
		body:    jo{"email": "pat@x.com"},
		headers: map[string]string{"Referer": testing_patient_referer},
	})
	assert.Equal(t, http.StatusCreated, response.Code)

	requests, err := env.store.FindPasswordResetRequests(context.Background(), pat.Id)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestResetPasswordResponds(t *testing.T) {
	logger := testutil.NewLogger(t)
	patToken, _ := token.PasswordReset("pat@x.com")
	docToken, _ := token.PasswordReset("doc@y.com")

	tests := []toTest{
		{
			// no reset token is needed
			method:   "POST",
			url:      "/users/reset-password",
			body:     jo{"email": "pat@x.com", "password": "n3w-passw0rd"},
			respCode: 200,
			response: jo{"code": float64(200), "reason": STATUS_PASSWORD_RESET},
		},
		{
			method:   "POST",
			url:      "/users/reset-password",
			body:     jo{"email": "pat@x.com", "password": "n3w-passw0rd", "token": patToken},
			respCode: 200,
		},
		{
			method:   "POST",
			url:      "/users/reset-password",
			body:     jo{"email": "pat@x.com", "password": "n3w-passw0rd", "token": docToken},
			respCode: 403,
			response: jo{"reason": STATUS_RESET_TOKEN_MISMATCH},
		},
		{
			method:   "POST",
			url:      "/users/reset-password",
			body:     jo{"email": "pat@x.com", "password": "n3w-passw0rd", "token": "%%%"},
			respCode: 403,
		},
		{
			method:   "POST",
			url:      "/users/reset-password",
			body:     jo{"email": "pat@x.com", "password": "short"},
			respCode: 422,
		},
		{
			method:   "POST",
			url:      "/users/reset-password",
			body:     jo{"email": "pat", "password": "n3w-passw0rd"},
			respCode: 422,
		},
		{
			method:   "POST",
			url:      "/users/reset-password",
			body:     jo{"email": "nobody@x.com", "password": "n3w-passw0rd"},
			respCode: 404,
		},
		{
			//no data given
			method:   "POST",
			url:      "/users/reset-password",
			respCode: 400,
		},
	}

	for idx, test := range tests {
		if test.skip {
			continue
		}

		//fresh each time
		env := newTestEnv(t, logger)
		pat := env.seedUser(t, "pat@x.com", "Pat", "Smith", models.RolePatient)
		require.NoError(t, env.store.CreatePasswordResetRequest(context.Background(),
			&models.PasswordResetRequest{UserId: pat.Id, Token: patToken}))

		env.check(t, idx, test, env.do(t, test))

		credential, err := env.store.FindUserCredential(context.Background(), pat.Id)
		require.NoError(t, err)
		changed := env.hasher.Verify(credential.Password, "n3w-passw0rd") == nil
		requests, err := env.store.FindPasswordResetRequests(context.Background(), pat.Id)
		require.NoError(t, err)

		if test.respCode == http.StatusOK {
			if !changed || len(requests) != 0 {
				t.Fatalf("Test %d url: '%s'\nPassword should be replaced and requests dropped", idx, test.url)
			}
		} else if changed || len(requests) != 1 {
			t.Fatalf("Test %d url: '%s'\nPassword and requests should be untouched", idx, test.url)
		}
	}
}
