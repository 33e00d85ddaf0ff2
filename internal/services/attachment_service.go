package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/facility_triage/internal/domainerr"
	"github.com/facility_triage/internal/models"
	"github.com/google/uuid"
)

// MaxAttachmentSize bounds a single upload.
const MaxAttachmentSize = 10 << 20

var allowedAttachmentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

var (
	ErrEmptyAttachment    = domainerr.New(domainerr.ErrValidation, "empty_attachment", "attachment is empty")
	ErrAttachmentTooLarge = domainerr.Newf(domainerr.ErrValidation, "attachment_too_large", "attachment must be at most %d MiB", MaxAttachmentSize>>20)
	ErrAttachmentType     = domainerr.New(domainerr.ErrValidation, "attachment_type", "attachment must be a JPEG, PNG, WebP image or a PDF")
	ErrAnonymousUpload    = domainerr.New(domainerr.ErrForbidden, "anonymous_upload", "uploads need an identified caller")
)

// BlobStore keeps attachment bytes and hands back a reference to them.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// Attachment is a stored upload. URL is what a complaint's attachmentUrl
// should carry.
type Attachment struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// AttachmentService stores complaint attachments before the complaint is filed.
type AttachmentService interface {
	Upload(ctx context.Context, actor models.Actor, filename, contentType string, size int64, r io.Reader) (*Attachment, error)
}

type attachmentService struct {
	store BlobStore
	now   func() time.Time
}

// NewAttachmentService creates an AttachmentService backed by store.
func NewAttachmentService(store BlobStore) AttachmentService {
	return &attachmentService{store: store, now: time.Now}
}

func (s *attachmentService) Upload(ctx context.Context, actor models.Actor, filename, contentType string, size int64, r io.Reader) (*Attachment, error) {
	if actor.ID == "" {
		return nil, ErrAnonymousUpload
	}
	switch {
	case size <= 0:
		return nil, ErrEmptyAttachment
	case size > MaxAttachmentSize:
		return nil, ErrAttachmentTooLarge
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := allowedAttachmentTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAttachmentType, contentType)
	}

	key := fmt.Sprintf("complaints/%s/%s%s", s.now().UTC().Format("2006/01/02"), uuid.NewString(), ext)
	url, err := s.store.Put(ctx, key, io.LimitReader(r, size), size, contentType)
	if err != nil {
		return nil, storeErr("upload attachment", err)
	}
	log.Printf("INFO: attachment %s (%q) uploaded by %s (%d bytes)", key, filename, actor.ID, size)
	return &Attachment{URL: url, Key: key, ContentType: contentType, Size: size}, nil
}
