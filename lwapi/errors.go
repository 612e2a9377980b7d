package lwapi

import (
	"errors"
	"fmt"
	"strings"
)

// NetworkError wraps connection and timeout failures from the HTTP layer.
// These are always transient from the caller's point of view.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("lwapi: %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports a non-2xx HTTP status or a response body the client
// could not decode. Retryable at the loop level; the remote service is flaky.
type ProtocolError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("lwapi: %s: http %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("lwapi: %s: malformed response: %s", e.Op, e.Body)
}

// BusinessError is an application-level failure reported inside an otherwise
// successful HTTP response (envelope code != 200).
type BusinessError struct {
	Op      string
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("lwapi: %s: api [%d]: %s", e.Op, e.Code, e.Message)
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsBusinessError(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

// Business codes the remote service uses for a dead session.
var sessionInvalidCodes = map[int]bool{
	-7:  true, // not logged in
	301: true, // session expired
	401: true,
}

var sessionInvalidKeywords = []string{
	"expired",
	"kicked",
	"logged out",
	"not login",
	"not logged in",
	"invalid session",
	"已过期",
	"已退出",
	"被踢",
	"未登录",
	"掉线",
}

// IsSessionInvalid reports whether err is a business failure that means the
// session token is dead and the account needs a full re-login. Network and
// protocol errors never qualify.
func IsSessionInvalid(err error) bool {
	var be *BusinessError
	if !errors.As(err, &be) {
		return false
	}
	if sessionInvalidCodes[be.Code] {
		return true
	}
	msg := strings.ToLower(be.Message)
	for _, kw := range sessionInvalidKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
