package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"PitchAdvisor/internal/models"
	"PitchAdvisor/pkg/logger"
)

// Sentinel errors for the object store boundary. Callers retry on
// ErrStorageUnavailable with backoff; ErrNotFound is final.
var (
	ErrNotFound           = errors.New("storage: object not found")
	ErrStorageUnavailable = errors.New("storage: backend unavailable")
)

// Gateway is the object-store contract consumed by the parsers and the
// ingestion coordinator. Keys are opaque; callers build them with the
// key helpers below.
type Gateway interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	RemoveDeckArtifacts(ctx context.Context, deckID string) (int, error)
}

// Service implements Gateway on top of a MinIO bucket.
type Service struct {
	client *minio.Client
	bucket string
	logger *logger.Logger
}

// NewService creates a storage Service bound to one bucket.
func NewService(client *minio.Client, bucket string, log *logger.Logger) *Service {
	return &Service{client: client, bucket: bucket, logger: log}
}

// SlideImageKey builds the canonical key for the n-th embedded image of a slide.
func SlideImageKey(deckID string, slideNumber, imageIndex int) string {
	return fmt.Sprintf("decks/%s/slides/%d/images/%d.png", deckID, slideNumber, imageIndex)
}

// SlideRenderKey builds the canonical key for the full-page render of a slide.
func SlideRenderKey(deckID string, slideNumber int) string {
	return fmt.Sprintf("decks/%s/slides/%d/slide.png", deckID, slideNumber)
}

// deckArtifactPrefix is the prefix under which every artifact of a deck lives.
// The orphan sweep removes everything below it.
func deckArtifactPrefix(deckID string) string {
	return fmt.Sprintf("decks/%s/slides/", deckID)
}

// Upload stores data under key and returns the key.
func (s *Service) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "storage_error"}).
			WithPayload(map[string]interface{}{"key": key}).Error("Failed to upload object")
		return "", fmt.Errorf("%w: put %s: %v", ErrStorageUnavailable, key, err)
	}
	return key, nil
}

// Download fetches the full object under key.
func (s *Service) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStorageUnavailable, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinioErr(key, err)
	}
	return data, nil
}

// Delete removes a single object. Deleting a missing key is not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinioErr(key, err)
	}
	return nil
}

// SignedURL issues a presigned GET URL for downstream consumers.
func (s *Service) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %v", ErrStorageUnavailable, key, err)
	}
	return u.String(), nil
}

// RemoveDeckArtifacts deletes every stored artifact of a deck and returns the
// number of removed objects. It is the orphan-cleanup sweep: a cancelled parse
// leaves partial uploads behind, and the next ingestion of the same deck calls
// this before writing fresh artifacts.
func (s *Service) RemoveDeckArtifacts(ctx context.Context, deckID string) (int, error) {
	removed := 0
	prefix := deckArtifactPrefix(deckID)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return removed, fmt.Errorf("%w: list %s: %v", ErrStorageUnavailable, prefix, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			s.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "storage_error"}).
				WithPayload(map[string]interface{}{"key": obj.Key}).Warn("Failed to remove orphaned artifact")
			continue
		}
		removed++
	}
	return removed, nil
}

// classifyMinioErr maps a minio error onto the gateway taxonomy.
func classifyMinioErr(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, key, err)
}
