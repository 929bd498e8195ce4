package attachments

import (
	"bytes"
	"testing"

	"github.com/clapserv/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegBytes() []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x00}, 64)...)
}

func pngBytes() []byte {
	return append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x00}, 64)...)
}

func mp4Bytes() []byte {
	header := []byte{0x00, 0x00, 0x00, 0x20}
	header = append(header, []byte("ftypisom")...)
	return append(header, bytes.Repeat([]byte{0x00}, 64)...)
}

func TestBlockedExtensionRejectedRegardlessOfMIME(t *testing.T) {
	cases := []string{"malware.exe", "script.sh", "installer.msi", "payload.bat", "MACRO.VBS"}
	for _, name := range cases {
		_, err := Validate(Attachment{
			Filename: name,
			MIMEType: "image/jpeg", // disguised as an image
			Data:     jpegBytes(),  // with a real JPEG signature
		})
		require.Error(t, err, name)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "extension", verr.Reason)
	}
}

func TestImageSignatureMismatchRejected(t *testing.T) {
	// Declared PNG, actual JPEG bytes
	_, err := Validate(Attachment{
		Filename: "photo.png",
		MIMEType: "image/png",
		Data:     jpegBytes(),
	})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "signature", verr.Reason)
}

func TestValidImagePasses(t *testing.T) {
	got, err := Validate(Attachment{
		Filename: "photo.jpg",
		MIMEType: "image/jpeg",
		Data:     jpegBytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttachmentImage, got.Kind)
	assert.Equal(t, "photo.jpg", got.SafeName)
	assert.Equal(t, int64(len(jpegBytes())), got.Size)
}

func TestValidPNGPasses(t *testing.T) {
	got, err := Validate(Attachment{
		Filename: "diagram.png",
		MIMEType: "image/png",
		Data:     pngBytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttachmentImage, got.Kind)
}

func TestValidMP4Passes(t *testing.T) {
	got, err := Validate(Attachment{
		Filename: "walkthrough.mp4",
		MIMEType: "video/mp4",
		Data:     mp4Bytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttachmentVideo, got.Kind)
}

func TestDocumentsAreNotSniffed(t *testing.T) {
	// Arbitrary bytes with a document MIME type pass without signature check
	got, err := Validate(Attachment{
		Filename: "quote.pdf",
		MIMEType: "application/pdf",
		Data:     bytes.Repeat([]byte{0x42}, 64),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttachmentDocument, got.Kind)
}

func TestImageOverSizeLimitRejected(t *testing.T) {
	data := append(jpegBytes(), make([]byte, MaxImageSize)...)
	_, err := Validate(Attachment{
		Filename: "huge.jpg",
		MIMEType: "image/jpeg",
		Data:     data,
	})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "size", verr.Reason)
}

func TestUnknownImageSubtypeRejected(t *testing.T) {
	_, err := Validate(Attachment{
		Filename: "weird.xyz",
		MIMEType: "image/x-unknown",
		Data:     jpegBytes(),
	})
	assert.Error(t, err)
}

func TestTruncatedFileRejected(t *testing.T) {
	_, err := Validate(Attachment{
		Filename: "tiny.jpg",
		MIMEType: "image/jpeg",
		Data:     []byte{0xFF, 0xD8},
	})
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":                  "photo.jpg",
		"../../etc/passwd":           "passwd",
		"..\\..\\windows\\cmd.txt":   "cmd.txt",
		"my photo (1).jpg":           "my_photo__1_.jpg",
		"résumé.pdf":                 "r_sum_.pdf",
		"":                           "file",
		"...":                        "file",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestSanitizeFilenameLength(t *testing.T) {
	long := bytes.Repeat([]byte{'a'}, 300)
	got := SanitizeFilename(string(long) + ".jpg")
	assert.LessOrEqual(t, len(got), 128)
	assert.True(t, len(got) > 0)

	// An extension longer than the whole length cap must not panic
	got = SanitizeFilename("x." + string(bytes.Repeat([]byte{'a'}, 200)))
	assert.LessOrEqual(t, len(got), 128)
	assert.True(t, len(got) > 0)
}

func TestKindForMIME(t *testing.T) {
	assert.Equal(t, models.AttachmentImage, KindForMIME("image/jpeg"))
	assert.Equal(t, models.AttachmentVideo, KindForMIME("video/mp4"))
	assert.Equal(t, models.AttachmentDocument, KindForMIME("application/pdf"))
	assert.Equal(t, models.AttachmentDocument, KindForMIME("text/plain"))
	assert.Equal(t, models.AttachmentDocument, KindForMIME(""))
}
