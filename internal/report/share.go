package report

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

var (
	ErrLinkExpired      = errors.New("share link expired")
	ErrInvalidSignature = errors.New("invalid share link signature")
)

// DefaultShareTTL is how long a share link stays valid.
const DefaultShareTTL = 24 * time.Hour

// ShareService signs expiring download links for review reports.
type ShareService struct {
	secret  string
	baseURL string
	ttl     time.Duration
}

func NewShareService(secret, baseURL string, ttl time.Duration) *ShareService {
	if ttl <= 0 {
		ttl = DefaultShareTTL
	}
	return &ShareService{secret: secret, baseURL: baseURL, ttl: ttl}
}

// SharePath is the route a link for reviewID points at.
func SharePath(reviewID string) string {
	return fmt.Sprintf("/api/share/%s", reviewID)
}

// Generate returns a signed URL for reviewID and its expiry.
func (s *ShareService) Generate(reviewID string, now time.Time) (string, time.Time) {
	expiresAt := now.Add(s.ttl)
	path := SharePath(reviewID)
	sig := computeSignature(path, expiresAt.Unix(), s.secret)
	return fmt.Sprintf("%s%s?exp=%d&sig=%s", s.baseURL, path, expiresAt.Unix(), sig), expiresAt
}

// Validate checks a link's signature and expiry.
func (s *ShareService) Validate(reviewID string, expires int64, signature string, now time.Time) error {
	expected := computeSignature(SharePath(reviewID), expires, s.secret)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	if now.Unix() > expires {
		return ErrLinkExpired
	}
	return nil
}

func computeSignature(path string, expiresAt int64, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(fmt.Sprintf("%s:%d", path, expiresAt)))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(h.Sum(nil))
}
