package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorCode 业务错误码, 随错误一路向上传递, 由接口层映射为 HTTP 状态
type ErrorCode string

const (
	ErrCodeFetchError          ErrorCode = "FETCH_ERROR"          // 底层存储读取失败
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"            // 实体不存在
	ErrCodeInvalidOperation    ErrorCode = "INVALID_OPERATION"    // 状态机不允许该操作
	ErrCodeAmountMismatch      ErrorCode = "AMOUNT_MISMATCH"      // 核验时金额不一致
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE" // 托管账户余额不足
)

// DomainError 携带错误码的领域错误
type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewFetchError 包装底层存储的读取失败
func NewFetchError(err error) *DomainError {
	return &DomainError{Code: ErrCodeFetchError, Message: "storage read failed", Err: err}
}

// NewNotFound 实体不存在
func NewNotFound(format string, args ...any) *DomainError {
	return &DomainError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidOperation 当前状态不允许请求的操作
func NewInvalidOperation(format string, args ...any) *DomainError {
	return &DomainError{Code: ErrCodeInvalidOperation, Message: fmt.Sprintf(format, args...)}
}

// NewAmountMismatch 核验失败, 消息中带上期望值与实收值便于人工对账
func NewAmountMismatch(expected, received decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeAmountMismatch,
		Message: fmt.Sprintf("expected amount %s but received %s", expected, received),
	}
}

// NewInsufficientBalance 出款金额超过托管账户当前余额
func NewInsufficientBalance(requested, available decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeInsufficientBalance,
		Message: fmt.Sprintf("requested %s exceeds available balance %s", requested, available),
	}
}

// CodeOf 提取错误码, 非领域错误返回空串
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode 判断错误是否携带指定错误码
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
