package templates

import (
	"fmt"

	"github.com/weapp/dialiv/models"
)

func New() (models.Templates, error) {
	templates := models.Templates{}

	if template, err := NewInvitationNoticeTemplate(); err != nil {
		return nil, fmt.Errorf("templates: failure to create invitation notice template: %s", err)
	} else {
		templates[template.Name()] = template
	}

	if template, err := NewInvitationTemplate(); err != nil {
		return nil, fmt.Errorf("templates: failure to create invitation template: %s", err)
	} else {
		templates[template.Name()] = template
	}

	if template, err := NewPasswordResetTemplate(); err != nil {
		return nil, fmt.Errorf("templates: failure to create password reset template: %s", err)
	} else {
		templates[template.Name()] = template
	}

	if template, err := NewVerificationCodeTemplate(); err != nil {
		return nil, fmt.Errorf("templates: failure to create verification code template: %s", err)
	} else {
		templates[template.Name()] = template
	}

	return templates, nil
}
