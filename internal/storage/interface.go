package storage

import "context"

// AttachmentUploader defines the interface for uploading chat attachments
// This interface allows for easy mocking in tests
type AttachmentUploader interface {
	UploadAttachment(ctx context.Context, data []byte, contentType, conversationID, uploaderID, safeName string) (*UploadResult, error)
}

// Ensure S3Uploader implements AttachmentUploader
var _ AttachmentUploader = (*S3Uploader)(nil)
