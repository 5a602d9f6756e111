package models

import (
	"testing"
)

var (
	name TemplateName = "test"

	subjectSuccessTemplate = `Username is '{{ .Username }}'`
	subjectFailureTemplate = `{{define "subjectFailure"}}`

	bodySuccessTemplate = `Key is '{{ .Key }}'`
	bodyFailureTemplate = `{{define "bodyFailure"}}`
)

func assertFailure(t *testing.T, template *PrecompiledTemplate, err error, expectedError string) {
	if err == nil || err.Error() != expectedError {
		t.Fatalf(`Error is "%s", but should be "%s"`, err, expectedError)
	}
	if template != nil {
		t.Fatal("Template should be nil")
	}
}

func Test_NewPrecompiledTemplate_NameMissing(t *testing.T) {
	expectedError := "models: name is missing"
	tmpl, err := NewPrecompiledTemplate("", subjectSuccessTemplate, bodySuccessTemplate)
	assertFailure(t, tmpl, err, expectedError)
}

func Test_NewPrecompiledTemplate_SubjectTemplateMissing(t *testing.T) {
	expectedError := "models: subject template is missing"
	tmpl, err := NewPrecompiledTemplate(name, "", bodySuccessTemplate)
	assertFailure(t, tmpl, err, expectedError)
}

func Test_NewPrecompiledTemplate_BodyTemplateMissing(t *testing.T) {
	expectedError := "models: body template is missing"
	tmpl, err := NewPrecompiledTemplate(name, subjectSuccessTemplate, "")
	assertFailure(t, tmpl, err, expectedError)
}

func Test_NewPrecompiledTemplate_SubjectTemplateNotPrecompiled(t *testing.T) {
	expectedError := "models: failure to precompile subject template: template: test:1: unexpected EOF"
	tmpl, err := NewPrecompiledTemplate(name, subjectFailureTemplate, bodySuccessTemplate)
	assertFailure(t, tmpl, err, expectedError)
}

func Test_NewPrecompiledTemplate_BodyTemplateNotPrecompiled(t *testing.T) {
	expectedError := "models: failure to precompile body template: template: test:1: unexpected EOF"
	tmpl, err := NewPrecompiledTemplate(name, subjectSuccessTemplate, bodyFailureTemplate)
	assertFailure(t, tmpl, err, expectedError)
}

func Test_NewPrecompiledTemplate_Name(t *testing.T) {
	tmpl, err := NewPrecompiledTemplate(name, subjectSuccessTemplate, bodySuccessTemplate)
	if err != nil {
		t.Fatalf(`Error is "%s", but should be nil`, err)
	}
	if tmpl.Name() != name {
		t.Fatalf(`Name is "%s", but should be "%s"`, tmpl.Name(), name)
	}
}

func Test_NewPrecompiledTemplate_ExecuteSuccess(t *testing.T) {
	content := map[string]interface{}{
		"Username": "Test User",
		"Key":      "123.blah.456.blah",
	}
	expectedSubject := `Username is 'Test User'`
	expectedBody := `Key is &#39;123.blah.456.blah&#39;`
	tmpl, _ := NewPrecompiledTemplate(name, subjectSuccessTemplate, `Key is {{ printf "'%s'" .Key }}`)
	subject, body, err := tmpl.Execute(content)
	if err != nil {
		t.Fatalf(`Error is "%s", but should be nil`, err)
	}
	if subject != expectedSubject {
		t.Fatalf(`Subject is "%s", but should be "%s"`, subject, expectedSubject)
	}
	if body != expectedBody {
		t.Fatalf(`Body is "%s", but should be "%s"`, body, expectedBody)
	}
}

func Test_NewPrecompiledTemplate_ExecuteEscapesBody(t *testing.T) {
	content := map[string]interface{}{
		"Username": "<b>",
		"Key":      "<script>",
	}
	tmpl, _ := NewPrecompiledTemplate(name, subjectSuccessTemplate, bodySuccessTemplate)
	subject, body, err := tmpl.Execute(content)
	if err != nil {
		t.Fatalf(`Error is "%s", but should be nil`, err)
	}
	if subject != `Username is '<b>'` {
		t.Fatalf(`Subject is "%s", subject should not be escaped`, subject)
	}
	if body != `Key is '&lt;script&gt;'` {
		t.Fatalf(`Body is "%s", body should be escaped`, body)
	}
}

func Test_NewPrecompiledTemplate_ExecuteFailure(t *testing.T) {
	tmpl, _ := NewPrecompiledTemplate(name, `{{ .Username.Missing }}`, bodySuccessTemplate)
	_, _, err := tmpl.Execute(map[string]interface{}{"Username": "Test User"})
	if err == nil {
		t.Fatal("Error should not be nil when the subject cannot be executed")
	}
}
