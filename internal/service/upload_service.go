package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

var ErrStorageNotConfigured = errors.New("storage not configured")

var attachmentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// UploadService stores chat attachments in the bucket and returns a public
// tokenized URL usable as a message attachment_url.
type UploadService interface {
	UploadAttachment(ctx context.Context, filename string, r io.Reader) (string, error)
}

type uploadService struct {
	client *storage.Client
	bucket string
}

func NewUploadService(client *storage.Client, bucket string) UploadService {
	return &uploadService{client: client, bucket: bucket}
}

func (s *uploadService) UploadAttachment(ctx context.Context, filename string, r io.Reader) (string, error) {
	if s.client == nil || s.bucket == "" {
		return "", ErrStorageNotConfigured
	}
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := attachmentTypes[ext]
	if !ok {
		return "", invalidf("allowed extensions: jpg, jpeg, png, webp")
	}

	objectPath := fmt.Sprintf("chat/%s%s", uuid.NewString(), ext)
	token := uuid.NewString()

	obj := s.client.Bucket(s.bucket).Object(objectPath)
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	escapedPath := url.PathEscape(objectPath)
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		s.bucket, escapedPath, token), nil
}
