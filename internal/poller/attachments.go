package poller

import (
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message"
)

// Attachment is one image file extracted from a mail message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// imageExtensions is the attachment allow-list; anything else in a mail
// is ignored.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

func isImageFilename(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// extractImageAttachments walks a MIME message entity and collects every
// part carrying an image filename, whether declared as attachment or
// inline (phone mail clients embed photos inline).
func extractImageAttachments(entity *message.Entity) []Attachment {
	var attachments []Attachment

	mediaType, _, _ := entity.Header.ContentType()
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil
	}

	mr := entity.MultipartReader()
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The part stream is unreliable past a read error; keep what
			// was already collected.
			slog.Warn("Failed to read MIME part", "error", err)
			break
		}

		partMediaType, _, _ := part.Header.ContentType()

		// Nested multiparts (mixed inside alternative) carry their own
		// parts.
		if strings.HasPrefix(partMediaType, "multipart/") {
			attachments = append(attachments, extractImageAttachments(part)...)
			continue
		}

		filename := partFilename(part)
		if filename == "" || !isImageFilename(filename) {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			slog.Warn("Failed to read attachment body", "filename", filename, "error", err)
			continue
		}

		attachments = append(attachments, Attachment{
			Filename:    filename,
			ContentType: partMediaType,
			Data:        body,
		})
	}

	return attachments
}

// partFilename pulls the filename from Content-Disposition, falling back
// to the Content-Type name parameter.
func partFilename(part *message.Entity) string {
	if cd := part.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name, ok := params["filename"]; ok {
				return name
			}
		}
	}

	_, params, err := part.Header.ContentType()
	if err == nil {
		if name, ok := params["name"]; ok {
			return name
		}
	}
	return ""
}
