package poller

import (
	"strings"
	"testing"

	"github.com/emersion/go-message"
)

func TestExtractImageAttachments_ImageAndText(t *testing.T) {
	t.Parallel()

	raw := `Content-Type: multipart/mixed; boundary="xyz"

--xyz
Content-Type: text/plain

Attendance form attached.

--xyz
Content-Type: image/jpeg
Content-Disposition: attachment; filename="form.jpg"
Content-Transfer-Encoding: base64

/9j/4AAQSkZJRg==

--xyz--`

	entity, err := message.Read(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}

	attachments := extractImageAttachments(entity)

	if len(attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(attachments))
	}

	if attachments[0].Filename != "form.jpg" {
		t.Errorf("unexpected filename: %q", attachments[0].Filename)
	}

	if attachments[0].ContentType != "image/jpeg" {
		t.Errorf("unexpected content type: %q", attachments[0].ContentType)
	}

	if len(attachments[0].Data) == 0 {
		t.Errorf("attachment data is empty")
	}
}

func TestExtractImageAttachments_NonImageIgnored(t *testing.T) {
	t.Parallel()

	raw := `Content-Type: multipart/mixed; boundary="xyz"

--xyz
Content-Type: application/pdf
Content-Disposition: attachment; filename="invoice.pdf"

%PDF-1.4

--xyz--`

	entity, err := message.Read(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}

	if attachments := extractImageAttachments(entity); len(attachments) != 0 {
		t.Errorf("expected no attachments, got %d", len(attachments))
	}
}

func TestExtractImageAttachments_InlineImageWithFilename(t *testing.T) {
	t.Parallel()

	raw := `Content-Type: multipart/mixed; boundary="xyz"

--xyz
Content-Type: image/png; name="photo.PNG"
Content-Disposition: inline; filename="photo.PNG"

fakepngdata

--xyz--`

	entity, err := message.Read(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}

	attachments := extractImageAttachments(entity)
	if len(attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(attachments))
	}

	if attachments[0].Filename != "photo.PNG" {
		t.Errorf("unexpected filename: %q", attachments[0].Filename)
	}
}

func TestIsImageFilename(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"form.jpg":   true,
		"FORM.JPEG":  true,
		"scan.webp":  true,
		"doc.pdf":    false,
		"noext":      false,
		"photo.tiff": true,
	}

	for name, want := range cases {
		if got := isImageFilename(name); got != want {
			t.Errorf("isImageFilename(%q) = %v, want %v", name, got, want)
		}
	}
}
