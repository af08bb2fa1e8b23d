package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email a@b.com and phone +62 812 3456 7890"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "remind me to email a@b.com and call +62 812 3456 7890 with key sk-abcdefghijklmnopqrstuvwx"
	got := Text(in)
	for _, want := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_KEY]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output %q", want, got)
		}
	}
}

func TestRedactKeepsTodoIDs(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "delete todo 42"
	if got := Text(in); got != in {
		t.Fatalf("expected %q untouched, got %q", in, got)
	}
}

func TestSecret(t *testing.T) {
	if got := Secret("sk-1234567890"); got != "****7890" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := Secret("abc"); got != "****" {
		t.Fatalf("unexpected short mask %q", got)
	}
	if Secret(" ") != "" {
		t.Fatalf("expected empty mask for blank")
	}
}
