package core

import (
	"errors"
	"fmt"
)

// 错误定义
var (
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrRequestTimeout    = errors.New("request timeout")
	ErrQuotaExceeded     = errors.New("provider quota exceeded")
	ErrTransportDelivery = errors.New("transport delivery failed")
	ErrUnknown           = errors.New("unknown error")
)

// ValidationCode 输入校验失败原因
type ValidationCode string

const (
	EmptyMessage     ValidationCode = "EmptyMessage"
	MessageTooLong   ValidationCode = "MessageTooLong"
	MaliciousContent ValidationCode = "MaliciousContent"
)

// ValidationError is returned by Validator.Validate. Message is safe to show
// to the end user.
type ValidationError struct {
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
