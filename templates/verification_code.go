package templates

import "github.com/weapp/dialiv/models"

const _VerificationCodeSubjectTemplate string = `Verification`
const _VerificationCodeBodyTemplate string = `
        <p style='padding:25px 0 15px; margin:0;'>Your verification code is {{ .Code }}</p>
`

func NewVerificationCodeTemplate() (models.Template, error) {
	return models.NewPrecompiledTemplate(models.TemplateNameVerificationCode, _VerificationCodeSubjectTemplate, withLayout(_VerificationCodeBodyTemplate))
}
