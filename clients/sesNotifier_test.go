package clients

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weapp/dialiv/testutil"
)

type fakeSES struct {
	sesiface.SESAPI
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("message-id")}, nil
}

func TestPunycodeEmail(t *testing.T) {
	tests := []struct {
		InputEmail   string
		EncodedEmail string
	}{
		{"regular@email.com", "regular@email.com"},
		{"someone@mail.com", "someone@mail.com"},
		{"someone@måil.com", "someone@xn--mil-ula.com"},
		{`"funky@but@valid$email"@site.com`, `"funky@but@valid$email"@site.com`},
		{`silly\@email@g∞gl€.com`, `silly\@email@xn--ggl-m50au1g.com`},
	}

	for _, test := range tests {
		encoded, err := punycodeEmail(test.InputEmail)
		if err != nil {
			t.Errorf(`Error punycoding "%s": %v`, test.InputEmail, err)
			continue
		}
		if encoded != test.EncodedEmail {
			t.Errorf(`Expected "%s" to be encoded as "%s", got "%s"`, test.InputEmail, test.EncodedEmail, encoded)
		}
	}
}

func newTestSesNotifier(t *testing.T, api sesiface.SESAPI, cfg *SesNotifierConfig) *SesNotifier {
	return &SesNotifier{Config: cfg, SES: api, logger: testutil.NewLogger(t)}
}

func TestSesNotifierSend(t *testing.T) {
	api := &fakeSES{}
	notifier := newTestSesNotifier(t, api, &SesNotifierConfig{
		From:             "Weapp AB<michael@weapp.se>",
		ConfigurationSet: "dialiv",
		DefaultTags:      map[string]string{"service": "dialiv", "empty": ""},
	})

	code, details := notifier.Send([]string{"doc@måil.com"}, "Subject", "<p>Body</p>")
	require.Equal(t, http.StatusOK, code, details)

	input := api.input
	require.NotNil(t, input)
	assert.Equal(t, "doc@xn--mil-ula.com", aws.StringValue(input.Destination.ToAddresses[0]))
	assert.Equal(t, "Weapp AB<michael@weapp.se>", aws.StringValue(input.Source))
	assert.Equal(t, "dialiv", aws.StringValue(input.ConfigurationSetName))
	assert.Equal(t, "Subject", aws.StringValue(input.Message.Subject.Data))
	assert.Equal(t, "<p>Body</p>", aws.StringValue(input.Message.Body.Html.Data))
	assert.Equal(t, DefaultTextMessage, aws.StringValue(input.Message.Body.Text.Data))
	require.Len(t, input.Tags, 1)
	assert.Equal(t, "service", aws.StringValue(input.Tags[0].Name))
}

func TestSesNotifierSendWithoutConfigurationSet(t *testing.T) {
	api := &fakeSES{}
	notifier := newTestSesNotifier(t, api, &SesNotifierConfig{From: "from@weapp.se"})

	code, _ := notifier.Send([]string{"doc@y.com"}, "Subject", "Body")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, api.input.ConfigurationSetName)
}

func TestSesNotifierSendFailure(t *testing.T) {
	api := &fakeSES{err: errors.New("throttled")}
	notifier := newTestSesNotifier(t, api, &SesNotifierConfig{From: "from@weapp.se"})

	code, details := notifier.Send([]string{"doc@y.com"}, "Subject", "Body")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "throttled", details)
}
