package templates

import (
	"strings"
	"testing"

	"github.com/weapp/dialiv/models"
)

const dashboardURL = "https://app.dialiv.se"

func Test_New(t *testing.T) {
	templates, err := New()
	if err != nil {
		t.Fatalf("Templates could not be built: %s", err)
	}
	for _, name := range []models.TemplateName{
		models.TemplateNameInvitationNotice,
		models.TemplateNameInvitation,
		models.TemplateNamePasswordReset,
		models.TemplateNameVerificationCode,
	} {
		if _, ok := templates[name]; !ok {
			t.Fatalf("Template %s is missing", name)
		}
	}
}

func execute(t *testing.T, name models.TemplateName, content map[string]interface{}) (string, string) {
	templates, err := New()
	if err != nil {
		t.Fatalf("Templates could not be built: %s", err)
	}
	content["DashboardURL"] = dashboardURL
	subject, body, err := templates[name].Execute(content)
	if err != nil {
		t.Fatalf("Template %s could not be executed: %s", name, err)
	}
	return subject, body
}

func Test_InvitationNotice(t *testing.T) {
	subject, body := execute(t, models.TemplateNameInvitationNotice, map[string]interface{}{"InviterName": "Pat Smith"})
	if subject != "Invitation" {
		t.Fatalf(`Subject is "%s", but should be "Invitation"`, subject)
	}
	if !strings.Contains(body, "Pat Smith has invited you to collaborate.") {
		t.Fatalf("Body does not name the inviter: %s", body)
	}
	if strings.Contains(body, "register") {
		t.Fatalf("Notice should not carry a registration link: %s", body)
	}
}

func Test_Invitation(t *testing.T) {
	link := dashboardURL + "/provider/register?token=ZG9jQHkuY29tJkRvYyYy"
	_, body := execute(t, models.TemplateNameInvitation, map[string]interface{}{"InviterName": "Pat Smith", "RegisterURL": link})
	if !strings.Contains(body, "href='"+link+"'") {
		t.Fatalf("Body does not carry the registration link: %s", body)
	}
}

func Test_PasswordReset(t *testing.T) {
	link := dashboardURL + "/patient/reset-password?token=cGF0QHguY29t"
	subject, body := execute(t, models.TemplateNamePasswordReset, map[string]interface{}{"ResetURL": link})
	if subject != "Reset Password" {
		t.Fatalf(`Subject is "%s", but should be "Reset Password"`, subject)
	}
	if !strings.Contains(body, "href='"+link+"'") {
		t.Fatalf("Body does not carry the reset link: %s", body)
	}
}

func Test_VerificationCode(t *testing.T) {
	subject, body := execute(t, models.TemplateNameVerificationCode, map[string]interface{}{"Code": "4821"})
	if subject != "Verification" {
		t.Fatalf(`Subject is "%s", but should be "Verification"`, subject)
	}
	if !strings.Contains(body, "Your verification code is 4821") {
		t.Fatalf("Body does not carry the code: %s", body)
	}
}

func Test_InviterNameIsEscaped(t *testing.T) {
	_, body := execute(t, models.TemplateNameInvitationNotice, map[string]interface{}{"InviterName": "<script>"})
	if strings.Contains(body, "<script>") {
		t.Fatalf("Inviter name should be escaped: %s", body)
	}
}
