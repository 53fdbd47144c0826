package message

import (
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/google/go-cmp/cmp"
)

const simpleMail = "From: \"Alice A\" <alice@example.com>\r\n" +
	"To: bob@example.com, \"Carol C\" <carol@example.com>\r\n" +
	"Cc: dan@example.com\r\n" +
	"Subject: Quarterly report\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"\r\n" +
	"hello\r\nworld\r\n"

const multipartMail = "From: alice@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Attached\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Please find the report attached.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<p>Please find the report attached.</p>\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
	"\r\n" +
	"%PDF-1.4 fake\r\n" +
	"--XYZ--\r\n"

func TestProjectSimpleMail(t *testing.T) {
	p, err := Parse([]byte(simpleMail))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := Project(p)

	if m.From != "Alice A <alice@example.com>" {
		t.Errorf("From = %q", m.From)
	}
	if m.To != "bob@example.com, Carol C <carol@example.com>" {
		t.Errorf("To = %q", m.To)
	}
	if m.Cc != "dan@example.com" {
		t.Errorf("Cc = %q", m.Cc)
	}
	if m.Bcc != "" {
		t.Errorf("Bcc = %q, want empty", m.Bcc)
	}
	if m.Subject != "Quarterly report" {
		t.Errorf("Subject = %q", m.Subject)
	}
	if m.TimestampSecs != 1136239445 {
		t.Errorf("TimestampSecs = %d, want 1136239445", m.TimestampSecs)
	}
	if m.Content != "hello\r\nworld\r\n" {
		t.Errorf("Content = %q", m.Content)
	}
	if !m.IsText || m.IsHTML || m.HasAttachments {
		t.Errorf("flags = text:%v html:%v attach:%v", m.IsText, m.IsHTML, m.HasAttachments)
	}
}

func TestProjectMultipartMail(t *testing.T) {
	p, err := Parse([]byte(multipartMail))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := Project(p)

	if m.Content != "Please find the report attached." {
		t.Errorf("Content = %q", m.Content)
	}
	if !m.IsText || !m.IsHTML || !m.HasAttachments {
		t.Errorf("flags = text:%v html:%v attach:%v, want all true", m.IsText, m.IsHTML, m.HasAttachments)
	}
	if html := ProjectContent(p, true); html != "<p>Please find the report attached.</p>" {
		t.Errorf("html content = %q", html)
	}
	if text := ProjectContent(p, false); text != "Please find the report attached." {
		t.Errorf("text content = %q", text)
	}
	if len(p.Attachments) != 1 || p.Attachments[0] != "report.pdf" {
		t.Errorf("Attachments = %v", p.Attachments)
	}
}

func TestProjectDefaults(t *testing.T) {
	raw := "From: alice@example.com\r\n\r\nbody\r\n"
	p, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := Project(p)

	if m.Subject != "" {
		t.Errorf("Subject = %q, want empty", m.Subject)
	}
	if m.TimestampSecs != 0 {
		t.Errorf("TimestampSecs = %d, want 0", m.TimestampSecs)
	}
	if m.To != "" || m.Cc != "" || m.Bcc != "" {
		t.Errorf("absent address headers projected as %q/%q/%q, want empty", m.To, m.Cc, m.Bcc)
	}
}

// Projection must be byte-identical across invocations: it runs once at
// ingest time and again whenever the search index is rebuilt.
func TestProjectDeterministic(t *testing.T) {
	for _, raw := range []string{simpleMail, multipartMail} {
		first, err := Parse([]byte(raw))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		second, err := Parse([]byte(raw))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if diff := cmp.Diff(Project(first), Project(second)); diff != "" {
			t.Errorf("projection not deterministic (-first +second):\n%s", diff)
		}
	}
}

func TestFormatAddresses(t *testing.T) {
	tests := []struct {
		name  string
		addrs []*mail.Address
		want  string
	}{
		{"empty", nil, ""},
		{"bare address", []*mail.Address{{Address: "a@example.com"}}, "a@example.com"},
		{"named address", []*mail.Address{{Name: "A B", Address: "a@example.com"}}, "A B <a@example.com>"},
		{
			"mixed list",
			[]*mail.Address{
				{Name: "A B", Address: "a@example.com"},
				{Address: "b@example.com"},
			},
			"A B <a@example.com>, b@example.com",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatAddresses(tt.addrs); got != tt.want {
				t.Errorf("formatAddresses = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseInvalidMessage(t *testing.T) {
	if _, err := Parse([]byte("not an email at all")); err == nil {
		t.Error("Parse accepted input with no header section")
	}
}

func TestParseRejectsTruncatedMultipart(t *testing.T) {
	raw := strings.Replace(multipartMail, "--XYZ--\r\n", "", 1)
	p, err := Parse([]byte(raw))
	if err != nil {
		return // rejected outright is fine
	}
	// Lenient parsers may still yield the parts read so far.
	if len(p.TextParts) == 0 {
		t.Error("truncated multipart lost its text part")
	}
}
