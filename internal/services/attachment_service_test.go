package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/facility_triage/internal/domainerr"
	"github.com/facility_triage/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBlobStore struct {
	objects map[string]string
	err     error
}

func (m *memoryBlobStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects = map[string]string{}
	}
	m.objects[key] = string(b)
	return "http://blobs.local/" + key, nil
}

func newAttachmentService(store BlobStore) *attachmentService {
	svc := NewAttachmentService(store).(*attachmentService)
	svc.now = func() time.Time { return time.Date(2025, 9, 10, 9, 30, 0, 0, time.UTC) }
	return svc
}

func TestUploadStoresUnderDatedKey(t *testing.T) {
	store := &memoryBlobStore{}
	svc := newAttachmentService(store)
	actor := models.Actor{ID: "ana@campus.edu", Role: models.RoleStudent}

	att, err := svc.Upload(context.Background(), actor, "Leak.PNG", "image/png", 5, strings.NewReader("pixelsTRAILING"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(att.Key, "complaints/2025/09/10/"), att.Key)
	assert.True(t, strings.HasSuffix(att.Key, ".png"), att.Key)
	assert.Equal(t, "http://blobs.local/"+att.Key, att.URL)
	assert.Equal(t, "pixel", store.objects[att.Key])
}

func TestUploadRejections(t *testing.T) {
	actor := models.Actor{ID: "ana@campus.edu", Role: models.RoleStudent}
	tests := []struct {
		name        string
		actor       models.Actor
		contentType string
		size        int64
		want        error
	}{
		{"anonymous", models.Actor{}, "image/png", 10, ErrAnonymousUpload},
		{"empty", actor, "image/png", 0, ErrEmptyAttachment},
		{"too large", actor, "image/png", MaxAttachmentSize + 1, ErrAttachmentTooLarge},
		{"wrong type", actor, "application/x-msdownload", 10, ErrAttachmentType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryBlobStore{}
			_, err := newAttachmentService(store).Upload(context.Background(), tt.actor, "f", tt.contentType, tt.size, strings.NewReader("x"))
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, store.objects)
		})
	}
}

func TestUploadAcceptsContentTypeParameters(t *testing.T) {
	svc := newAttachmentService(&memoryBlobStore{})
	att, err := svc.Upload(context.Background(), models.Actor{ID: "lee@campus.edu", Role: models.RoleStaff},
		"", "Application/PDF; charset=binary", 3, strings.NewReader("pdf"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.True(t, strings.HasSuffix(att.Key, ".pdf"))
}

func TestUploadStoreFailureIsPersistence(t *testing.T) {
	svc := newAttachmentService(&memoryBlobStore{err: errors.New("connection refused")})
	_, err := svc.Upload(context.Background(), models.Actor{ID: "ana@campus.edu", Role: models.RoleStudent},
		"a.jpg", "image/jpeg", 3, strings.NewReader("jpg"))
	assert.ErrorIs(t, err, domainerr.ErrPersistenceFailure)
}
