package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/ratelimit"
)

// ErrUnsupported reports that a provider cannot serve a request. The engine
// skips such providers instead of failing.
var ErrUnsupported = errors.New("not supported by provider")

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       media.ErrorCode
	Message    string
	Retry      bool
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider == "" {
		return msg
	}
	return e.Provider + ": " + msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Negative marks not-found errors for negative caching.
func (e *ProviderError) Negative() bool { return e.Code == media.CodeNotFound }

// NetworkError wraps a transport failure.
func NetworkError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Code: media.CodeNetwork, Message: "network failure: " + errText(err), Retry: true, Err: err}
}

// RateLimited reports an exhausted budget or an upstream 429.
func RateLimited(provider string, retryAfter time.Duration, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       media.CodeRateLimited,
		Message:    fmt.Sprintf("rate limited, retry in %s", retryAfter.Round(time.Second)),
		Retry:      true,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

// NotFound reports that the upstream has nothing for an id or title.
func NotFound(provider, what string) *ProviderError {
	return &ProviderError{Provider: provider, Code: media.CodeNotFound, Message: what + " not found"}
}

// ServerError reports an upstream 5xx or an unparseable response.
func ServerError(provider string, status int, err error) *ProviderError {
	msg := "server error"
	if status > 0 {
		msg = fmt.Sprintf("server error (HTTP %d)", status)
	}
	if err != nil {
		msg += ": " + err.Error()
	}
	return &ProviderError{Provider: provider, Code: media.CodeServer, Message: msg, Retry: true, Err: err}
}

// Incomplete reports a partial success.
func Incomplete(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Code: media.CodeIncomplete, Message: "incomplete: " + errText(err), Retry: true, Err: err}
}

func errText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}

// CodeOf classifies any error into a wire error code.
func CodeOf(err error) media.ErrorCode {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	var we *ratelimit.WaitError
	switch {
	case errors.As(err, &we):
		return media.CodeRateLimited
	case errors.Is(err, cache.ErrKnownMissing):
		return media.CodeNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return media.CodeNetwork
	}
	return media.CodeUnknown
}

// RetryAfterOf returns the retry hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter
	}
	var we *ratelimit.WaitError
	if errors.As(err, &we) {
		return we.Wait
	}
	return 0
}

// FailureOf converts err into the boundary error record.
func FailureOf(err error) *media.Failure {
	if err == nil {
		return nil
	}
	f := &media.Failure{Code: CodeOf(err), Message: err.Error()}
	if d := RetryAfterOf(err); d > 0 {
		f.RetryAfter = int((d + time.Second - 1) / time.Second)
	}
	return f
}
