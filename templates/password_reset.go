package templates

import "github.com/weapp/dialiv/models"

const _PasswordResetSubjectTemplate string = `Reset Password`
const _PasswordResetBodyTemplate string = `
        <p style='padding:25px 0 15px; margin:0;'>Hey there!</p>
        <p style='padding:0 0 15px; margin:0;'>Please click <a href='{{ .ResetURL }}'>here</a> to reset password.</p>
        <p style='padding:0 0 15px; margin:0;'>If you did not ask for a new password you can ignore this email.</p>
`

func NewPasswordResetTemplate() (models.Template, error) {
	return models.NewPrecompiledTemplate(models.TemplateNamePasswordReset, _PasswordResetSubjectTemplate, withLayout(_PasswordResetBodyTemplate))
}
