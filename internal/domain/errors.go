package domain

import "errors"

var (
	// ErrFormNotFound indicates the referenced form does not exist.
	ErrFormNotFound = errors.New("form not found")
	// ErrFormNotPublished is returned when a draft or closed form is used where a published one is required.
	ErrFormNotPublished = errors.New("form is not published")
	// ErrFormFrozen is returned when the questions of a published form are edited.
	ErrFormFrozen = errors.New("form questions are frozen once published")
	// ErrInvalidForm wraps authoring validation failures.
	ErrInvalidForm = errors.New("invalid form")
	// ErrResponseNotFound indicates the referenced response does not exist.
	ErrResponseNotFound = errors.New("response not found")
	// ErrEmailRequired is returned when the form requires a respondent email.
	ErrEmailRequired = errors.New("respondent email is required")
	// ErrPersistence marks a store failure; callers may retry.
	ErrPersistence = errors.New("store unavailable")
)
