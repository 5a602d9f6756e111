// Package token builds the opaque strings carried in invitation and password
// reset links.
//
// A token is the standard base64 encoding of its fields joined by '&'. It is
// reversible by anyone holding it: it identifies a pending operation, it does
// not authenticate one. Consumers must cross-check the decoded fields against
// what the store holds.
package token

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

const Delimiter = "&"

var (
	ErrDelimiterInField = errors.New("token: field contains the delimiter")
	ErrMalformed        = errors.New("token: malformed")
	ErrFieldCount       = errors.New("token: unexpected number of fields")
)

// Encode joins the fields and encodes them.
func Encode(fields ...string) (string, error) {
	for _, field := range fields {
		if strings.Contains(field, Delimiter) {
			return "", ErrDelimiterInField
		}
	}
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(fields, Delimiter))), nil
}

// Decode reverses Encode.
func Decode(tok string) ([]string, error) {
	if tok == "" {
		return nil, ErrMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		return nil, ErrMalformed
	}
	return strings.Split(string(raw), Delimiter), nil
}

// DecodeN decodes a token that must carry exactly n fields.
func DecodeN(tok string, n int) ([]string, error) {
	fields, err := Decode(tok)
	if err != nil {
		return nil, err
	}
	if len(fields) != n {
		return nil, ErrFieldCount
	}
	return fields, nil
}

// PasswordReset is the token of a password reset link.
func PasswordReset(email string) (string, error) {
	return Encode(email)
}

func ParsePasswordReset(tok string) (string, error) {
	fields, err := DecodeN(tok, 1)
	if err != nil {
		return "", err
	}
	if fields[0] == "" {
		return "", ErrMalformed
	}
	return fields[0], nil
}

// InvitationFields are the fields carried by an invitation token.
type InvitationFields struct {
	Email     string
	Name      string
	SharingId int64
}

// Invitation is the token of a provider registration link.
func Invitation(email, name string, sharingId int64) (string, error) {
	return Encode(email, name, strconv.FormatInt(sharingId, 10))
}

func ParseInvitation(tok string) (InvitationFields, error) {
	fields, err := DecodeN(tok, 3)
	if err != nil {
		return InvitationFields{}, err
	}
	sharingId, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || fields[0] == "" {
		return InvitationFields{}, ErrMalformed
	}
	return InvitationFields{Email: fields[0], Name: fields[1], SharingId: sharingId}, nil
}

// Link appends the token to base as the value of the token query parameter.
func Link(base, tok string) string {
	return base + "?token=" + url.QueryEscape(tok)
}
