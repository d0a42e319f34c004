package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProxyFuncSelectsByScheme(t *testing.T) {
	proxyFunc := NewProxyFunc("http://proxy-http:3128", "http://proxy-https:3129", "")

	req := httptest.NewRequest(http.MethodGet, "https://example.com/page", nil)
	u, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if u == nil || u.Host != "proxy-https:3129" {
		t.Errorf("expected https proxy, got %v", u)
	}

	req = httptest.NewRequest(http.MethodGet, "http://example.com/page", nil)
	u, err = proxyFunc(req)
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if u == nil || u.Host != "proxy-http:3128" {
		t.Errorf("expected http proxy, got %v", u)
	}
}

func TestProxyFuncNoProxyBypass(t *testing.T) {
	proxyFunc := NewProxyFunc("http://proxy:3128", "", "internal.example.com, .corp.example.org")

	cases := []struct {
		url    string
		bypass bool
	}{
		{"http://internal.example.com/feed", true},
		{"http://api.corp.example.org/feed", true},
		{"http://corp.example.org/feed", true},
		{"http://example.com/feed", false},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.url, nil)
		u, err := proxyFunc(req)
		if err != nil {
			t.Fatalf("proxy func for %s: %v", tc.url, err)
		}
		if tc.bypass && u != nil {
			t.Errorf("%s: expected direct connection, got proxy %v", tc.url, u)
		}
		if !tc.bypass && u == nil {
			t.Errorf("%s: expected proxy, got direct connection", tc.url)
		}
	}
}
