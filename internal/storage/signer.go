// Package storage issues direct-to-bucket upload URLs for video media.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
)

var (
	errMissingBucket     = errors.New("storage: bucket is required")
	errMissingAccessID   = errors.New("storage: google access id is required")
	errMissingPrivateKey = errors.New("storage: private key is required")
	errInvalidTTL        = errors.New("storage: upload ttl must be positive")
	errMissingObject     = errors.New("storage: object name is required")
)

// UploadTicket is a signed URL that starts a resumable upload of one object.
type UploadTicket struct {
	URL         string
	ObjectName  string
	ContentType string
	ExpiresAt   time.Time
}

// SignerConfig describes a ResumableSigner. When PrivateKey is empty the key is
// read from the application default service account credentials.
type SignerConfig struct {
	Bucket     string
	AccessID   string
	PrivateKey []byte
	TTL        time.Duration
	Clock      func() time.Time
	Logger     *zap.Logger
}

// ResumableSigner produces V4 signed URLs that initialise resumable uploads.
type ResumableSigner struct {
	bucket     string
	accessID   string
	privateKey []byte
	ttl        time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func NewResumableSigner(ctx context.Context, cfg SignerConfig) (*ResumableSigner, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errMissingBucket
	}
	if cfg.TTL <= 0 {
		return nil, errInvalidTTL
	}

	signer := &ResumableSigner{
		bucket:     bucket,
		accessID:   strings.TrimSpace(cfg.AccessID),
		privateKey: append([]byte(nil), cfg.PrivateKey...),
		ttl:        cfg.TTL,
		now:        cfg.Clock,
		logger:     cfg.Logger,
	}
	if signer.now == nil {
		signer.now = time.Now
	}
	if signer.logger == nil {
		signer.logger = zap.NewNop()
	}

	if len(signer.privateKey) == 0 {
		privateKey, detectedAccessID, err := loadServiceAccountKey(ctx)
		if err != nil {
			return nil, fmt.Errorf("init upload signer: %w", err)
		}
		signer.privateKey = privateKey
		switch {
		case signer.accessID == "":
			signer.accessID = detectedAccessID
		case detectedAccessID != "" && detectedAccessID != signer.accessID:
			signer.logger.Warn("upload signer access id mismatch",
				zap.String("configured", signer.accessID),
				zap.String("credentials", detectedAccessID))
		}
	}

	if signer.accessID == "" {
		return nil, errMissingAccessID
	}
	if len(signer.privateKey) == 0 {
		return nil, errMissingPrivateKey
	}
	return signer, nil
}

// SignedUploadURL signs a POST that starts a resumable upload of objectName. The
// object must not exist yet, so a ticket can never overwrite earlier media.
func (s *ResumableSigner) SignedUploadURL(ctx context.Context, objectName, contentType string) (UploadTicket, error) {
	object := strings.TrimSpace(objectName)
	if object == "" {
		return UploadTicket{}, errMissingObject
	}

	expires := s.now().Add(s.ttl)
	headers := []string{"x-goog-resumable:start", "x-goog-if-generation-match:0"}
	if contentType != "" {
		headers = append(headers, "x-upload-content-type:"+contentType)
	}

	signedURL, err := gcs.SignedURL(s.bucket, object, &gcs.SignedURLOptions{
		Scheme:         gcs.SigningSchemeV4,
		Method:         http.MethodPost,
		Expires:        expires,
		Headers:        headers,
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
	})
	if err != nil {
		s.logger.Error("upload url signing failed",
			zap.String("bucket", s.bucket),
			zap.String("object", object),
			zap.Error(err))
		return UploadTicket{}, fmt.Errorf("signed url: %w", err)
	}
	return UploadTicket{
		URL:         signedURL,
		ObjectName:  object,
		ContentType: contentType,
		ExpiresAt:   expires,
	}, nil
}

type serviceAccountKey struct {
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

func loadServiceAccountKey(ctx context.Context) ([]byte, string, error) {
	credentials, err := google.FindDefaultCredentials(ctx, gcs.ScopeReadWrite)
	if err != nil {
		return nil, "", fmt.Errorf("find default credentials: %w", err)
	}
	if len(credentials.JSON) == 0 {
		return nil, "", errors.New("service account json not found in default credentials")
	}

	var key serviceAccountKey
	if err := json.Unmarshal(credentials.JSON, &key); err != nil {
		return nil, "", fmt.Errorf("parse service account json: %w", err)
	}
	if key.PrivateKey == "" {
		return nil, "", errors.New("service account private key is empty")
	}
	return []byte(key.PrivateKey), key.ClientEmail, nil
}
