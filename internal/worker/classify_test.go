package worker

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/dmarchuk/newsloom/internal/model"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want model.ErrorClass
	}{
		{401, model.ErrorClassPermanent},
		{403, model.ErrorClassPermanent},
		{404, model.ErrorClassPermanent},
		{410, model.ErrorClassPermanent},
		{408, model.ErrorClassTransient},
		{429, model.ErrorClassTransient},
		{500, model.ErrorClassTransient},
		{503, model.ErrorClassTransient},
	}

	for _, tt := range tests {
		fe := ClassifyStatus("https://a.example/x", tt.code)
		if fe == nil {
			t.Fatalf("status %d: expected an error", tt.code)
		}
		if fe.Class != tt.want {
			t.Errorf("status %d classified %s, want %s", tt.code, fe.Class, tt.want)
		}
	}

	if fe := ClassifyStatus("https://a.example/x", 200); fe != nil {
		t.Errorf("2xx classified as error: %+v", fe)
	}
}

func TestClassifyErr(t *testing.T) {
	if fe := ClassifyErr("u", context.DeadlineExceeded); fe.Class != model.ErrorClassTransient {
		t.Errorf("deadline exceeded classified %s, want transient", fe.Class)
	}

	parseErr := &url.Error{Op: "parse", URL: "::bad", Err: errors.New("missing protocol scheme")}
	if fe := ClassifyErr("::bad", parseErr); fe.Class != model.ErrorClassPermanent {
		t.Errorf("parse failure classified %s, want permanent", fe.Class)
	}

	getErr := &url.Error{Op: "Get", URL: "https://a.example", Err: errors.New("connection reset")}
	if fe := ClassifyErr("https://a.example", getErr); fe.Class != model.ErrorClassTransient {
		t.Errorf("connection reset classified %s, want transient", fe.Class)
	}

	// Pre-classified errors pass through unchanged.
	orig := &model.FetchError{Class: model.ErrorClassPermanent, URL: "u", StatusCode: 404, Message: "Not Found"}
	if fe := ClassifyErr("u", orig); fe != orig {
		t.Error("expected pre-classified error to pass through")
	}
}
