package staging

import (
	"strings"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC  = "application/msword"
	MimeRTF  = "application/rtf"
	MimeODT  = "application/vnd.oasis.opendocument.text"
)

// allowed maps accepted document types to the extension used for the staged file.
var allowed = map[string]string{
	MimePDF:  ".pdf",
	MimeDOCX: ".docx",
	MimeDOC:  ".doc",
	MimeRTF:  ".rtf",
	MimeODT:  ".odt",
}

var aliases = map[string]string{
	"text/rtf":            MimeRTF,
	"application/x-pdf":   MimePDF,
	"application/acrobat": MimePDF,
}

// NormalizeContentType lowercases, drops parameters and resolves aliases.
func NormalizeContentType(raw string) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(raw, ";")[0]))
	if alias, ok := aliases[clean]; ok {
		return alias
	}
	return clean
}

// IsAllowed reports whether the content type may be staged.
func IsAllowed(contentType string) bool {
	_, ok := allowed[NormalizeContentType(contentType)]
	return ok
}

func isGeneric(contentType string) bool {
	switch contentType {
	case "", "application/octet-stream", "application/zip", "application/x-ole-storage", "binary/octet-stream":
		return true
	}
	return false
}
