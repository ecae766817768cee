package jukebox

import (
	"errors"
	"fmt"
)

// Kind 错误分类，每次调用失败都整体中止
type Kind string

const (
	KindAlreadyExists      Kind = "already_exists"
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindInvalidArgument    Kind = "invalid_argument"
	KindPreconditionFailed Kind = "precondition_failed"
	KindPaymentFailed      Kind = "payment_failed"
	KindInternal           Kind = "internal"
)

// Error 带分类和稳定错误码的业务错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrAlreadyInitialized = newError(KindAlreadyExists, "already_initialized", "platform already initialized")
	ErrUserExists         = newError(KindAlreadyExists, "user_exists", "user already registered")
	ErrProfileBound       = newError(KindAlreadyExists, "profile_bound", "profile token already bound")
	ErrArtistExists       = newError(KindAlreadyExists, "artist_exists", "artist already registered")
	ErrAlreadyMember      = newError(KindAlreadyExists, "already_member", "already a member of this table")

	ErrNotInitialized  = newError(KindNotFound, "not_initialized", "platform not initialized")
	ErrTrackNotFound   = newError(KindNotFound, "track_not_found", "track not found")
	ErrTableNotFound   = newError(KindNotFound, "table_not_found", "table not found")
	ErrArtistNotFound  = newError(KindNotFound, "artist_not_found", "artist not found")
	ErrRequestNotFound = newError(KindNotFound, "request_not_found", "request not found")

	ErrNotAdmin        = newError(KindUnauthorized, "not_admin", "caller is not the platform admin")
	ErrNotArtist       = newError(KindUnauthorized, "not_artist", "caller is not a registered artist")
	ErrNotTrackOwner   = newError(KindUnauthorized, "not_track_owner", "caller does not own this track")
	ErrNotTableOwner   = newError(KindUnauthorized, "not_table_owner", "caller does not own this table")
	ErrNotTableAdmin   = newError(KindUnauthorized, "not_table_admin", "caller is neither owner nor admin of this table")
	ErrProfileNotOwned = newError(KindUnauthorized, "profile_not_owned", "user does not own profile token")
	ErrMissingCaller   = newError(KindUnauthorized, "missing_caller", "caller identity required")

	ErrInvalidSplit     = newError(KindInvalidArgument, "invalid_split", "royalty split must sum to 100")
	ErrFeeTooHigh       = newError(KindInvalidArgument, "fee_too_high", "platform fee above 2000 basis points")
	ErrNegativePrice    = newError(KindInvalidArgument, "negative_price", "base price must not be negative")
	ErrInvalidThreshold = newError(KindInvalidArgument, "invalid_threshold", "skip threshold must be positive")
	ErrInvalidArgument  = newError(KindInvalidArgument, "invalid_argument", "invalid argument")

	ErrUserNotRegistered   = newError(KindPreconditionFailed, "user_not_registered", "user not registered")
	ErrNotAMember          = newError(KindPreconditionFailed, "not_a_member", "not a member of this table")
	ErrNoLicensesRemaining = newError(KindPreconditionFailed, "no_licenses_remaining", "no licenses remaining")
	ErrNoCurrentTrack      = newError(KindPreconditionFailed, "no_current_track", "no track is playing")
	ErrTableClosed         = newError(KindPreconditionFailed, "table_closed", "table is not active")

	ErrPaymentFailed = newError(KindPaymentFailed, "payment_failed", "payment transfer failed")
)

// KindOf 返回错误分类，非业务错误视为 internal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf 返回稳定错误码
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return string(KindInternal)
}

// paymentError 包装转账失败，同时可用 errors.Is 匹配 ErrPaymentFailed 和底层原因
type paymentError struct {
	cause error
}

func (e *paymentError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPaymentFailed.Message, e.cause)
}

func (e *paymentError) Unwrap() []error {
	return []error{ErrPaymentFailed, e.cause}
}

func wrapPayment(err error) error {
	return &paymentError{cause: err}
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
