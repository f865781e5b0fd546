package notify

import (
	"context"
	"testing"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "paragraphs", in: "<p>Hello <strong>there</strong></p><p>Bye</p>", want: "Hello there\nBye"},
		{name: "list", in: "<ul><li><b>Name:</b> Ann</li><li>Email: a@x.io</li></ul>", want: "- Name: Ann\n- Email: a@x.io"},
		{name: "drops style", in: "<style>p{color:red}</style><p>x</p>", want: "x"},
		{name: "entities", in: "<p>Tom &amp; Jerry</p>", want: "Tom & Jerry"},
		{name: "plain", in: "just   text", want: "just text"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PlainText(tc.in); got != tc.want {
				t.Fatalf("PlainText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNewSMTPNotifierValidation(t *testing.T) {
	if _, err := NewSMTPNotifier(SMTPConfig{}); err == nil {
		t.Fatalf("expected missing host to fail")
	}
	if _, err := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com"}); err == nil {
		t.Fatalf("expected missing from to fail")
	}
	n, err := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "bot@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if n.from != "bot@example.com" {
		t.Fatalf("from = %q, want username fallback", n.from)
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	if err := (LogNotifier{}).Send(context.Background(), "a@example.com", "s", "<p>b</p>"); err != nil {
		t.Fatalf("log notifier: %v", err)
	}
}
