package attachment

import (
	"strings"

	"stratagem-ai/internal/model"
)

// IsDocument reports whether an attachment should go through document analysis.
func IsDocument(att model.Attachment) bool {
	mimeType := strings.ToLower(att.Type)
	return strings.Contains(mimeType, "pdf") ||
		strings.Contains(mimeType, "text") ||
		strings.Contains(mimeType, "word") ||
		strings.HasSuffix(att.Name, ".txt")
}

// FindDocument returns the first document attachment.
func FindDocument(atts []model.Attachment) (model.Attachment, bool) {
	for _, att := range atts {
		if IsDocument(att) {
			return att, true
		}
	}
	return model.Attachment{}, false
}
