package usecase

import "github.com/nutriscan/backend/internal/domain"

// LoginOperation identifies which sign-in flow failed
type LoginOperation int

const (
	LoginInteractive LoginOperation = iota
	LoginCredentials
	LoginSignup
)

// LoginError is a sign-in failure with the message shown on the login screen.
// Silent failures (the user closed the sign-in window) have an empty Message.
type LoginError struct {
	Code    domain.AuthErrorCode
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Silent reports whether the failure should not be shown to the user
func (e *LoginError) Silent() bool {
	return e.Message == ""
}

func loginError(op LoginOperation, err error) *LoginError {
	code := domain.AuthCode(err)
	return &LoginError{Code: code, Message: loginMessage(op, code), Err: err}
}

func loginMessage(op LoginOperation, code domain.AuthErrorCode) string {
	switch op {
	case LoginInteractive:
		switch code {
		case domain.AuthUnauthorizedDomain:
			return "Domain not authorized for Google Login. Please use Guest Mode."
		case domain.AuthPopupClosed:
			return ""
		}
		return "Login failed. Please try again or continue as guest."

	case LoginCredentials:
		switch code {
		case domain.AuthInvalidCredential, domain.AuthUserNotFound, domain.AuthWrongPassword:
			return "Invalid email or password."
		}
		return "Login failed. Please check your credentials."

	case LoginSignup:
		switch code {
		case domain.AuthEmailInUse:
			return "Email is already in use."
		case domain.AuthWeakPassword:
			return "Password should be at least 6 characters."
		}
		return "Signup failed."
	}
	return "Login failed."
}
