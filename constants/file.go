package constants

import "strings"

// Source formats recorded on extract_job rows.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TXT   = "TXT"
)

// FileTypes holds the allowed values for the format field in ExtractJob.
var FileTypes = []string{PDF, IMAGE, TXT}

// AllowedExtensions holds the default allowed file extensions for receipts ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a job format, or ""
// when the extension is unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "heic":
		return IMAGE
	case "txt":
		return TXT
	default:
		return ""
	}
}

// IsHEICExt reports whether the extension needs HEIC conversion before OCR.
func IsHEICExt(ext string) bool {
	return NormalizeExt(ext) == "heic"
}
