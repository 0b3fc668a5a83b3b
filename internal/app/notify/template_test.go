package notify

import (
	"strings"
	"testing"
)

func TestBuildExtensionEmail(t *testing.T) {
	body := BuildExtensionEmail("Acme Foundation", "School Lunches",
		"https://sponsorships.example/extension-response", "tok-123", 5)

	for _, want := range []string{
		"Dear Acme Foundation,",
		"School Lunches",
		"<strong>5 days</strong>",
		"https://sponsorships.example/extension-response?action=accept&token=tok-123",
		"https://sponsorships.example/extension-response?action=deny&token=tok-123",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := string(buildMessage("noreply@example.com", "sponsor@example.com", "Program extension request", "<p>hi</p>"))

	for _, want := range []string{
		"From: noreply@example.com\r\n",
		"To: sponsor@example.com\r\n",
		"Subject: Program extension request\r\n",
		"Content-Type: text/html; charset=utf-8\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing header %q", want)
		}
	}
	if !strings.HasSuffix(msg, "\r\n\r\n<p>hi</p>") {
		t.Fatalf("body not separated from headers: %q", msg)
	}
}
