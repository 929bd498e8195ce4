package attachments

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/clapserv/backend/internal/metrics"
	"github.com/clapserv/backend/internal/models"
)

// Per-kind size ceilings in bytes.
const (
	MaxImageSize    = 10 << 20  // 10 MB
	MaxVideoSize    = 100 << 20 // 100 MB
	MaxDocumentSize = 25 << 20  // 25 MB
)

// blockedExtensions are rejected outright, whatever the declared MIME
// type or size claims. Defense against disguised executables.
var blockedExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true, ".scr": true,
	".pif": true, ".msi": true, ".dll": true, ".sh": true, ".bash": true,
	".ps1": true, ".vbs": true, ".js": true, ".jar": true, ".apk": true,
	".app": true, ".deb": true, ".rpm": true, ".dmg": true,
}

// ValidationError describes why an attachment was rejected.
type ValidationError struct {
	Reason string // "extension", "size", "signature"
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("attachment rejected (%s): %s", e.Reason, e.Detail)
}

// Attachment is a candidate upload.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Validated is the outcome of a successful validation.
type Validated struct {
	SafeName string
	Kind     models.AttachmentKind
	MIMEType string
	Size     int64
}

// Validate checks an attachment against the blocked-extension list, the
// per-kind size ceiling, and (for images and videos) a magic-byte
// signature check against the declared MIME type.
func Validate(att Attachment) (*Validated, error) {
	mtr := metrics.Get()

	ext := strings.ToLower(filepath.Ext(att.Filename))
	if blockedExtensions[ext] {
		mtr.AttachmentRejectionsTotal.WithLabelValues("extension").Inc()
		return nil, &ValidationError{Reason: "extension", Detail: "file type " + ext + " is not allowed"}
	}

	kind := KindForMIME(att.MIMEType)
	limit := sizeLimit(kind)
	if int64(len(att.Data)) > limit {
		mtr.AttachmentRejectionsTotal.WithLabelValues("size").Inc()
		return nil, &ValidationError{
			Reason: "size",
			Detail: fmt.Sprintf("%s attachments are limited to %d MB", kind, limit>>20),
		}
	}

	// Documents are not sniffed; images and videos must carry a
	// signature consistent with the declared MIME type
	if kind == models.AttachmentImage || kind == models.AttachmentVideo {
		if !signatureMatches(att.MIMEType, att.Data) {
			mtr.AttachmentRejectionsTotal.WithLabelValues("signature").Inc()
			return nil, &ValidationError{
				Reason: "signature",
				Detail: "file content does not match its declared type",
			}
		}
	}

	return &Validated{
		SafeName: SanitizeFilename(att.Filename),
		Kind:     kind,
		MIMEType: att.MIMEType,
		Size:     int64(len(att.Data)),
	}, nil
}

// KindForMIME buckets a MIME type into image/video/document.
func KindForMIME(mimeType string) models.AttachmentKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.AttachmentImage
	case strings.HasPrefix(mimeType, "video/"):
		return models.AttachmentVideo
	default:
		return models.AttachmentDocument
	}
}

func sizeLimit(kind models.AttachmentKind) int64 {
	switch kind {
	case models.AttachmentImage:
		return MaxImageSize
	case models.AttachmentVideo:
		return MaxVideoSize
	default:
		return MaxDocumentSize
	}
}

// signatureMatches checks the leading bytes against the declared MIME type.
func signatureMatches(mimeType string, data []byte) bool {
	if len(data) < 12 {
		return false
	}

	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF})
	case "image/png":
		return bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	case "image/gif":
		return bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))
	case "image/webp":
		return bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
	case "image/heic", "image/heif":
		return isISOMediaBrand(data, "heic", "heix", "hevc", "mif1", "msf1")
	case "video/mp4":
		return isISOMediaBrand(data, "isom", "iso2", "mp41", "mp42", "avc1", "dash")
	case "video/quicktime":
		return isISOMediaBrand(data, "qt  ")
	case "video/webm":
		return bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3})
	default:
		// Unknown image/video subtype: reject rather than guess
		return false
	}
}

// isISOMediaBrand checks the "ftyp" box with one of the given brands.
func isISOMediaBrand(data []byte, brands ...string) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	brand := string(data[8:12])
	for _, b := range brands {
		if brand == b {
			return true
		}
	}
	return false
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename strips path components and special characters so the
// name is safe to embed in a storage key.
func SanitizeFilename(name string) string {
	// Drop any path components (both separators; clients vary)
	name = name[strings.LastIndexByte(name, '/')+1:]
	name = name[strings.LastIndexByte(name, '\\')+1:]

	name = strings.ReplaceAll(name, "..", "")
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")

	if len(name) > 128 {
		ext := filepath.Ext(name)
		// An absurdly long extension would push the slice bound negative
		if len(ext) > 16 {
			ext = ext[:16]
		}
		name = name[:128-len(ext)] + ext
	}
	if name == "" {
		name = "file"
	}
	return name
}
