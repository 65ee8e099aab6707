package errs

import "strconv"

const (
	ServerInternalError = 500

	ArgsError           = 1001
	RecordNotFoundError = 1404
	TokenExpiredError   = 1501
	TokenInvalidError   = 1502
	NotAuthorizedError  = 1503
)

var (
	ErrArgs           = NewCodeError(ArgsError, "invalid or missing arguments")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "record not found")
	ErrTokenExpired   = NewCodeError(TokenExpiredError, "token expired")
	ErrTokenInvalid   = NewCodeError(TokenInvalidError, "token invalid")
	ErrNotAuthorized  = NewCodeError(NotAuthorizedError, "not authorized")
	ErrInternal       = NewCodeError(ServerInternalError, "internal server error")
)

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e CodeError) WithDetail(detail string) CodeError {
	var d string
	if e.Detail == "" {
		d = detail
	} else {
		d = e.Detail + ", " + detail
	}
	return CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

func (e CodeError) Error() string {
	return strconv.Itoa(e.Code) + " " + e.Msg
}

func (e CodeError) Is(target error) bool {
	t, ok := target.(CodeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
