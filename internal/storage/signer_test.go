package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

const testAccessID = "reel-signer@unit-test.iam.gserviceaccount.com"

func TestSignedUploadURLCarriesResumableHeaders(t *testing.T) {
	fixed := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	ttl := 10 * time.Minute
	signer, err := NewResumableSigner(context.Background(), SignerConfig{
		Bucket:     "reel-media",
		AccessID:   testAccessID,
		PrivateKey: generateTestKey(t),
		TTL:        ttl,
		Clock:      func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("NewResumableSigner: %v", err)
	}

	ticket, err := signer.SignedUploadURL(context.Background(), "videos/user-1/video-1", "video/mp4")
	if err != nil {
		t.Fatalf("SignedUploadURL: %v", err)
	}
	if !ticket.ExpiresAt.Equal(fixed.Add(ttl)) {
		t.Fatalf("expected expiry %v, got %v", fixed.Add(ttl), ticket.ExpiresAt)
	}
	if ticket.ObjectName != "videos/user-1/video-1" {
		t.Fatalf("unexpected object name %q", ticket.ObjectName)
	}

	parsed, err := url.Parse(ticket.URL)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	if !strings.Contains(parsed.Path, "videos/user-1/video-1") {
		t.Fatalf("expected object path in signed url, got %s", parsed.Path)
	}
	query := parsed.Query()
	if query.Get("X-Goog-Expires") == "" {
		t.Fatalf("missing expiry in signed url")
	}
	headers := strings.ToLower(query.Get("X-Goog-SignedHeaders"))
	for _, header := range []string{"x-goog-resumable", "x-goog-if-generation-match", "x-upload-content-type"} {
		if !strings.Contains(headers, header) {
			t.Fatalf("signed headers missing %s: %s", header, headers)
		}
	}
}

func TestNewResumableSignerValidatesConfig(t *testing.T) {
	key := generateTestKey(t)
	testCases := []struct {
		name   string
		config SignerConfig
		want   error
	}{
		{name: "missing bucket", config: SignerConfig{AccessID: testAccessID, PrivateKey: key, TTL: time.Minute}, want: errMissingBucket},
		{name: "zero ttl", config: SignerConfig{Bucket: "b", AccessID: testAccessID, PrivateKey: key}, want: errInvalidTTL},
		{name: "missing access id", config: SignerConfig{Bucket: "b", PrivateKey: key, TTL: time.Minute}, want: errMissingAccessID},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := NewResumableSigner(context.Background(), testCase.config)
			if !errors.Is(err, testCase.want) {
				t.Fatalf("expected %v, got %v", testCase.want, err)
			}
		})
	}
}

func TestSignedUploadURLRequiresObjectName(t *testing.T) {
	signer, err := NewResumableSigner(context.Background(), SignerConfig{
		Bucket:     "reel-media",
		AccessID:   testAccessID,
		PrivateKey: generateTestKey(t),
		TTL:        time.Minute,
	})
	if err != nil {
		t.Fatalf("NewResumableSigner: %v", err)
	}
	if _, err := signer.SignedUploadURL(context.Background(), "  ", "video/mp4"); !errors.Is(err, errMissingObject) {
		t.Fatalf("expected missing object error, got %v", err)
	}
}

func generateTestKey(t *testing.T) []byte {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})
}
