package token

import "errors"

// 账本操作的稳定错误类别，调用方通过 errors.Is 判别
var (
	ErrZeroQuantity        = errors.New("zero quantity")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccessDenied        = errors.New("access denied")
	ErrForbiddenOperation  = errors.New("forbidden operation")
)

// CodeOf 返回错误对应的对外错误码（API 层使用）
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrZeroQuantity):
		return "ZeroQuantity"
	case errors.Is(err, ErrInsufficientBalance):
		return "InsufficientBalance"
	case errors.Is(err, ErrAccessDenied):
		return "AccessDenied"
	case errors.Is(err, ErrForbiddenOperation):
		return "ForbiddenOperation"
	default:
		return "Internal"
	}
}
