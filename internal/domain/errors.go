package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAnalysis is returned when a model response does not match the FoodAnalysis shape
	ErrInvalidAnalysis = errors.New("invalid analysis structure")

	// ErrEmptyResponse is returned when the model answers with no content
	ErrEmptyResponse = errors.New("empty response from AI")

	// ErrEmptyInput is returned when there is nothing to analyze
	ErrEmptyInput = errors.New("nothing to analyze")

	// ErrNotAuthenticated is returned for operations that need a signed-in (or guest) user
	ErrNotAuthenticated = errors.New("no active user")

	// ErrItemNotFound is returned when an item id is not in the history
	ErrItemNotFound = errors.New("food item not found")

	// ErrNoPendingDelete is returned when a delete is confirmed without a request
	ErrNoPendingDelete = errors.New("no delete pending confirmation")

	// ErrNoImage is returned when an item has no analyzable image
	ErrNoImage = errors.New("item has no image to analyze")

	// ErrInvalidDataURL is returned when an inline image cannot be decoded
	ErrInvalidDataURL = errors.New("invalid data URL")

	// ErrImageFetch is returned when a remote image cannot be downloaded
	ErrImageFetch = errors.New("could not retrieve image")

	// ErrInvalidLanguage is returned for unsupported language codes
	ErrInvalidLanguage = errors.New("unsupported language")

	// ErrInvalidView is returned for unknown view names
	ErrInvalidView = errors.New("unknown view")

	// ErrInvalidTier is returned for unknown tiers
	ErrInvalidTier = errors.New("unknown tier")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrDocumentNotFound is returned by document stores for missing documents
	ErrDocumentNotFound = errors.New("document not found")

	// ErrBlobNotFound is returned by blob stores for missing objects
	ErrBlobNotFound = errors.New("blob not found")

	// ErrSessionNotFound is returned for unknown or expired session ids
	ErrSessionNotFound = errors.New("session not found")
)

// AnalysisErrorKind separates "try again later" from "this input cannot be analyzed"
type AnalysisErrorKind string

const (
	AnalysisBusy          AnalysisErrorKind = "busy"
	AnalysisUnprocessable AnalysisErrorKind = "unprocessable"
)

// AnalysisSource is the kind of input that was analyzed
type AnalysisSource string

const (
	SourceImage AnalysisSource = "image"
	SourceText  AnalysisSource = "text"
)

// AnalysisError is the only error the analysis client returns for image and text analysis
type AnalysisError struct {
	Kind   AnalysisErrorKind
	Source AnalysisSource
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s analysis failed (%s): %v", e.Source, e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Message returns the user-facing explanation
func (e *AnalysisError) Message() string {
	if e.Source == SourceText {
		if e.Kind == AnalysisBusy {
			return "Failed to analyze the text. The service is busy. Please wait a moment and try again."
		}
		return "Failed to analyze the text. Please provide more detailed product information."
	}
	if e.Kind == AnalysisBusy {
		return "Failed to analyze the food image. The service is currently busy due to high traffic. Please try again in a minute."
	}
	return "Failed to analyze the food image. The AI model could not process the request. Please try a clearer image."
}

// IsBusy reports whether err is an analysis failure caused by an overloaded service
func IsBusy(err error) bool {
	var analysisErr *AnalysisError
	return errors.As(err, &analysisErr) && analysisErr.Kind == AnalysisBusy
}

// AuthErrorCode identifies an identity provider failure
type AuthErrorCode string

const (
	AuthUnauthorizedDomain AuthErrorCode = "auth/unauthorized-domain"
	AuthPopupClosed        AuthErrorCode = "auth/popup-closed-by-user"
	AuthInvalidCredential  AuthErrorCode = "auth/invalid-credential"
	AuthUserNotFound       AuthErrorCode = "auth/user-not-found"
	AuthWrongPassword      AuthErrorCode = "auth/wrong-password"
	AuthEmailInUse         AuthErrorCode = "auth/email-already-in-use"
	AuthWeakPassword       AuthErrorCode = "auth/weak-password"
	AuthInvalidEmail       AuthErrorCode = "auth/invalid-email"
	AuthInternal           AuthErrorCode = "auth/internal-error"
)

// AuthError is returned by identity providers
type AuthError struct {
	Code AuthErrorCode
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// AuthCode extracts the provider code from err, or AuthInternal
func AuthCode(err error) AuthErrorCode {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return AuthInternal
}
