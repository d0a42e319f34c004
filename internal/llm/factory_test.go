package llm

import (
	"testing"
)

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(Config{Provider: ""})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if provider != nil {
		t.Error("empty provider name should disable the provider")
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "homegrown"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewProviderOpenAIRequiresKey(t *testing.T) {
	_, err := NewProvider(Config{Provider: "openai"})
	if err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestNewProviderOpenAI(t *testing.T) {
	provider, err := NewProvider(Config{Provider: "openai", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if provider == nil || provider.Name() != "openai" {
		t.Error("expected openai provider")
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"candidates":[]}`, `{"candidates":[]}`},
		{"```json\n{\"candidates\":[]}\n```", `{"candidates":[]}`},
		{"```\n{}\n```", `{}`},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitHeading(t *testing.T) {
	heading, body := splitHeading("# The Heading\nBody text here.", "fallback")
	if heading != "The Heading" || body != "Body text here." {
		t.Errorf("got %q / %q", heading, body)
	}

	heading, body = splitHeading("just one line", "fallback")
	if heading != "fallback" || body != "just one line" {
		t.Errorf("fallback case got %q / %q", heading, body)
	}
}
