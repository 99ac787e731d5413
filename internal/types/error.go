package types

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InternalServiceError     ErrorCode = "INTERNAL_SERVICE_ERROR"
	NotFound                 ErrorCode = "NOT_FOUND"
	BadRequest               ErrorCode = "BAD_REQUEST"
	InvalidAsset             ErrorCode = "INVALID_ASSET"
	InvalidAmount            ErrorCode = "INVALID_AMOUNT"
	InsufficientBalance      ErrorCode = "INSUFFICIENT_BALANCE"
	LockupActive             ErrorCode = "LOCKUP_ACTIVE"
	InvalidParameter         ErrorCode = "INVALID_PARAMETER"
	ExposureFeedUnavailable  ErrorCode = "EXPOSURE_FEED_UNAVAILABLE"
	ProfitFeedUnavailable    ErrorCode = "PROFIT_FEED_UNAVAILABLE"
	PricingFeedUnavailable   ErrorCode = "PRICING_FEED_UNAVAILABLE"
	PositionFeedUnavailable  ErrorCode = "POSITION_FEED_UNAVAILABLE"
	ConcurrentUpdateConflict ErrorCode = "CONCURRENT_UPDATE_CONFLICT"
)

func (c ErrorCode) String() string {
	return string(c)
}

// Error is the error returned by every engine operation. StatusCode is the
// http status the api layer responds with.
type Error struct {
	Err        error
	StatusCode int
	ErrorCode  ErrorCode
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(statusCode int, errorCode ErrorCode, err error) *Error {
	return &Error{
		Err:        err,
		StatusCode: statusCode,
		ErrorCode:  errorCode,
	}
}

func NewErrorWithMsg(statusCode int, errorCode ErrorCode, msg string) *Error {
	return NewError(statusCode, errorCode, errors.New(msg))
}

func NewInternalServiceError(err error) *Error {
	return NewError(http.StatusInternalServerError, InternalServiceError, err)
}

func NewInvalidAssetError(asset AssetKind) *Error {
	return NewError(http.StatusBadRequest, InvalidAsset, fmt.Errorf("unsupported asset kind %q", asset))
}

func NewInvalidAmountError(msg string) *Error {
	return NewErrorWithMsg(http.StatusBadRequest, InvalidAmount, msg)
}

func NewInvalidParameterError(msg string) *Error {
	return NewErrorWithMsg(http.StatusBadRequest, InvalidParameter, msg)
}

func NewInsufficientBalanceError(requested, available uint64) *Error {
	return NewError(
		http.StatusBadRequest,
		InsufficientBalance,
		fmt.Errorf("requested %d but only %d is staked", requested, available),
	)
}

func NewLockupActiveError(remainingSeconds int64) *Error {
	return NewError(
		http.StatusForbidden,
		LockupActive,
		fmt.Errorf("minimum staking duration not met, %ds remaining", remainingSeconds),
	)
}

func NewNotFoundError(msg string) *Error {
	return NewErrorWithMsg(http.StatusNotFound, NotFound, msg)
}

func NewConflictError(err error) *Error {
	return NewError(http.StatusConflict, ConcurrentUpdateConflict, err)
}

func NewFeedUnavailableError(code ErrorCode, err error) *Error {
	return NewError(http.StatusServiceUnavailable, code, err)
}

// CodeOf returns the error code carried by err, or InternalServiceError when
// err does not wrap an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.ErrorCode
	}
	return InternalServiceError
}

func IsErrorCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
