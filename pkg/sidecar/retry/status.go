package retry

import (
	"fmt"
	"net/http"
)

// StatusError 非预期的 HTTP 状态码
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// CheckStatus 校验响应状态码，429 与 5xx 可重试，其余不可重试
func CheckStatus(code, want int, body string) error {
	if code == want {
		return nil
	}
	err := &StatusError{Code: code, Body: body}
	if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return err
	}
	return Permanent(err)
}
