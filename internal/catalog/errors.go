package catalog

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ErrorCategoryNotFound = "not_found"
	ErrorCategoryInvalid  = "invalid"
	ErrorCategoryUpstream = "upstream"
	ErrorCategoryInternal = "internal"
)

var (
	ErrChannelNotFound      = errors.New("channel not found")
	ErrVideoNotFound        = errors.New("video not found")
	ErrThumbnailUnavailable = errors.New("thumbnail not available")
	ErrNoValidChannels      = errors.New("no valid channels provided")
	ErrUnknownSize          = errors.New("unknown file size")
)

// ChannelNotFoundError matches ErrChannelNotFound under errors.Is.
type ChannelNotFoundError struct {
	Alias string
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("channel %q not found", e.Alias)
}

func (e *ChannelNotFoundError) Is(target error) bool {
	return target == ErrChannelNotFound
}

type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string {
	return e.Err.Error()
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

func normalizeErrorCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case ErrorCategoryNotFound:
		return ErrorCategoryNotFound
	case ErrorCategoryInvalid:
		return ErrorCategoryInvalid
	case ErrorCategoryUpstream:
		return ErrorCategoryUpstream
	default:
		return ErrorCategoryInternal
	}
}

// WrapCategorizedError tags err with category unless it already carries one.
func WrapCategorizedError(category string, err error) error {
	if err == nil {
		return nil
	}
	var existing *CategorizedError
	if errors.As(err, &existing) {
		return err
	}
	return &CategorizedError{
		Category: normalizeErrorCategory(category),
		Err:      err,
	}
}

func ErrorCategory(err error) string {
	var classified *CategorizedError
	if errors.As(err, &classified) {
		return normalizeErrorCategory(classified.Category)
	}
	return ErrorCategoryInternal
}

func notFound(err error) error { return WrapCategorizedError(ErrorCategoryNotFound, err) }

func upstreamFailure(op string, err error) error {
	return WrapCategorizedError(ErrorCategoryUpstream, fmt.Errorf("%s: %w", op, err))
}
