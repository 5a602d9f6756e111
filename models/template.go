package models

import (
	"bytes"
	"errors"
	"fmt"
	htmlTemplate "html/template"
	textTemplate "text/template"
)

type TemplateName string

const (
	TemplateNameUndefined        TemplateName = ""
	TemplateNameInvitationNotice TemplateName = "invitation_notice"
	TemplateNameInvitation       TemplateName = "invitation"
	TemplateNamePasswordReset    TemplateName = "password_reset"
	TemplateNameVerificationCode TemplateName = "verification_code"
)

type Template interface {
	Name() TemplateName
	Execute(content interface{}) (string, string, error)
}

type Templates map[TemplateName]Template

// PrecompiledTemplate keeps a plain text subject and an HTML body compiled
// once at start-up.
type PrecompiledTemplate struct {
	name               TemplateName
	precompiledSubject *textTemplate.Template
	precompiledBody    *htmlTemplate.Template
}

func NewPrecompiledTemplate(name TemplateName, subjectTemplate string, bodyTemplate string) (*PrecompiledTemplate, error) {
	if name == TemplateNameUndefined {
		return nil, errors.New("models: name is missing")
	}
	if subjectTemplate == "" {
		return nil, errors.New("models: subject template is missing")
	}
	if bodyTemplate == "" {
		return nil, errors.New("models: body template is missing")
	}

	precompiledSubject, err := textTemplate.New(string(name)).Parse(subjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("models: failure to precompile subject template: %s", err)
	}

	precompiledBody, err := htmlTemplate.New(string(name)).Parse(bodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("models: failure to precompile body template: %s", err)
	}

	return &PrecompiledTemplate{
		name:               name,
		precompiledSubject: precompiledSubject,
		precompiledBody:    precompiledBody,
	}, nil
}

func (p *PrecompiledTemplate) Name() TemplateName {
	return p.name
}

// Execute renders the subject and the body with the same content.
func (p *PrecompiledTemplate) Execute(content interface{}) (string, string, error) {
	var subjectBuffer bytes.Buffer
	var bodyBuffer bytes.Buffer

	if err := p.precompiledSubject.Execute(&subjectBuffer, content); err != nil {
		return "", "", fmt.Errorf("models: failure to execute subject template %q with content: %s", p.name, err)
	}

	if err := p.precompiledBody.Execute(&bodyBuffer, content); err != nil {
		return "", "", fmt.Errorf("models: failure to execute body template %q with content: %s", p.name, err)
	}

	return subjectBuffer.String(), bodyBuffer.String(), nil
}
