package worker

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/dmarchuk/newsloom/internal/model"
)

// ClassifyStatus maps an HTTP status to a fetch error, or nil for 2xx.
// Auth failures and missing resources are permanent; rate limiting and
// server errors are transient and retried with backoff.
func ClassifyStatus(rawURL string, code int) *model.FetchError {
	if code >= 200 && code < 300 {
		return nil
	}

	class := model.ErrorClassPermanent
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		class = model.ErrorClassTransient
	case code >= 500:
		class = model.ErrorClassTransient
	}

	return &model.FetchError{
		Class:      class,
		URL:        rawURL,
		StatusCode: code,
		Message:    http.StatusText(code),
	}
}

// ClassifyErr maps a transport-level error to a fetch error. Malformed
// URLs are permanent; timeouts, resets and every other network failure
// are transient.
func ClassifyErr(rawURL string, err error) *model.FetchError {
	if fe, ok := model.AsFetchError(err); ok {
		return fe
	}

	class := model.ErrorClassTransient
	message := "request failed"

	var urlErr *url.Error
	switch {
	case errors.As(err, &urlErr) && isParseFailure(urlErr):
		class = model.ErrorClassPermanent
		message = "malformed URL"
	case errors.Is(err, context.DeadlineExceeded):
		message = "timeout"
	case isTimeout(err):
		message = "timeout"
	default:
		message = err.Error()
	}

	return &model.FetchError{
		Class:   class,
		URL:     rawURL,
		Message: message,
		Err:     err,
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isParseFailure(urlErr *url.Error) bool {
	// url.Error wraps parse failures with Op "parse"; transport failures
	// carry "Get"/"Head" etc.
	return urlErr.Op == "parse"
}
