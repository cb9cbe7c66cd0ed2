// Package auth is the boundary to the identity provider: error messages,
// identity tokens and an in-process provider for development and tests.
package auth

import (
	"errors"
	"regexp"
	"strings"
)

// Code is a provider error code such as "auth/wrong-password".
type Code string

const (
	CodeInvalidEmail        Code = "auth/invalid-email"
	CodeWrongPassword       Code = "auth/wrong-password"
	CodeUserNotFound        Code = "auth/user-not-found"
	CodeInvalidCredential   Code = "auth/invalid-credential"
	CodeUserDisabled        Code = "auth/user-disabled"
	CodeTooManyRequests     Code = "auth/too-many-requests"
	CodeWeakPassword        Code = "auth/weak-password"
	CodeEmailInUse          Code = "auth/email-already-in-use"
	CodeRequiresRecentLogin Code = "auth/requires-recent-login"
	CodeExpiredActionCode   Code = "auth/expired-action-code"
	CodeNetworkFailed       Code = "auth/network-request-failed"
	CodeEmailNotVerified    Code = "auth/email-not-verified"
	CodeTokenExpired        Code = "auth/user-token-expired"
)

// Error is returned by providers. Message is the provider's raw text.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func newError(code Code) *Error {
	return &Error{Code: code, Message: "Provider: Error (" + string(code) + ")."}
}

// IsCode reports whether err is a provider error with the given code.
func IsCode(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

var messages = map[Code]string{
	CodeInvalidEmail:        "Please enter a valid email address.",
	CodeWrongPassword:       "Incorrect email or password.",
	CodeUserNotFound:        "Incorrect email or password.",
	CodeInvalidCredential:   "Incorrect email or password.",
	CodeUserDisabled:        "This account has been disabled.",
	CodeTooManyRequests:     "Too many attempts. Please try again later.",
	CodeWeakPassword:        "Password should be at least 6 characters.",
	CodeEmailInUse:          "An account with this email already exists.",
	CodeRequiresRecentLogin: "For security, please sign in again to continue.",
	CodeExpiredActionCode:   "This link has expired. Please request a new one.",
	CodeNetworkFailed:       "Network error. Check your connection and try again.",
	CodeEmailNotVerified:    "Please verify your email before signing in.",
	CodeTokenExpired:        "Your session has expired. Please sign in again.",
}

var (
	boilerplatePrefix = regexp.MustCompile(`^[A-Za-z]+:\s*(Error\s*)?`)
	boilerplateSuffix = regexp.MustCompile(`\s*\(auth/[^)]*\)\.?\s*$`)
)

// Message returns the user-facing text for err. Unknown codes fall back to
// the provider message with its prefix and code suffix removed.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		if m, ok := messages[ae.Code]; ok {
			return m
		}
		err = ae
	}
	msg := boilerplateSuffix.ReplaceAllString(err.Error(), "")
	msg = strings.TrimSpace(boilerplatePrefix.ReplaceAllString(msg, ""))
	if msg == "" {
		return "Something went wrong. Please try again."
	}
	return msg
}
