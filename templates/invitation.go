package templates

import "github.com/weapp/dialiv/models"

const _InvitationSubjectTemplate string = `Invitation`

// sent when the invitee already has an account
const _InvitationNoticeBodyTemplate string = `
        <p style='padding:25px 0 15px; margin:0;'>{{ .InviterName }} has invited you to collaborate.</p>
        <p style='padding:0 0 15px; margin:0;'>Sign in to your dashboard to start the conversation.</p>
`

const _InvitationBodyTemplate string = `
        <p style='padding:25px 0 15px; margin:0;'>{{ .InviterName }} has invited you to collaborate.</p>
        <br>
        <div align='center' style='padding:0;'>
          <a style='background-color:#627CFB; font-weight:400; font-size: 14px; color:#FFFFFF; padding:10px 20px; margin:0; border-radius:20px; text-decoration: none;' href='{{ .RegisterURL }}'>Click here to create an account</a>
        </div>
        <br>
`

func NewInvitationNoticeTemplate() (models.Template, error) {
	return models.NewPrecompiledTemplate(models.TemplateNameInvitationNotice, _InvitationSubjectTemplate, withLayout(_InvitationNoticeBodyTemplate))
}

func NewInvitationTemplate() (models.Template, error) {
	return models.NewPrecompiledTemplate(models.TemplateNameInvitation, _InvitationSubjectTemplate, withLayout(_InvitationBodyTemplate))
}
