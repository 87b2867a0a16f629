// Package storage keeps uploaded documents on local disk and hands out
// time-limited, HMAC-signed download links scoped to a single object.
package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"printlink-be/internal/apperr"
)

var (
	ErrObjectExists  = errors.New("object already exists")
	ErrInvalidPath   = apperr.Validation("invalid storage path")
	ErrLinkExpired   = errors.New("link expired")
	ErrBadSignature  = errors.New("link signature mismatch")
	ErrMissingSecret = apperr.New(apperr.CodeMisconfigured, "STORAGE_SIGNING_KEY is not set")
)

type Store interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) error
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

type DiskStore struct {
	root    string
	key     []byte
	baseURL string
	now     func() time.Time
}

func NewDiskStore(root string, signingKey []byte, baseURL string) (*DiskStore, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSecret
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &DiskStore{
		root:    root,
		key:     signingKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// cleanPath rejects absolute paths and any attempt to leave the root.
func cleanPath(objectPath string) (string, error) {
	if objectPath == "" || strings.HasPrefix(objectPath, "/") || strings.Contains(objectPath, "\\") {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(objectPath, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return "", ErrInvalidPath
		}
	}
	return path.Clean(objectPath), nil
}

func (s *DiskStore) fullPath(objectPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(objectPath))
}

// Put writes a new object; existing objects are never overwritten.
func (s *DiskStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	p, err := cleanPath(objectPath)
	if err != nil {
		return err
	}

	full := s.fullPath(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrDownstreamUnavailable, err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, os.ErrExist) {
		return ErrObjectExists
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrDownstreamUnavailable, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(full)
		return fmt.Errorf("%w: %v", apperr.ErrDownstreamUnavailable, err)
	}

	if err := os.WriteFile(full+metaSuffix, []byte(contentType), 0o640); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrDownstreamUnavailable, err)
	}
	return nil
}

const metaSuffix = ".content-type"

func (s *DiskStore) sign(objectPath string, expires int64) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(objectPath))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedURL mints a link to exactly one object that stops working after ttl.
func (s *DiskStore) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(s.fullPath(p)); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrDownstreamUnavailable, err)
	}

	expires := s.now().Add(ttl).Unix()

	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.sign(p, expires))

	return fmt.Sprintf("%s/files/%s?%s", s.baseURL, strings.Join(segs, "/"), q.Encode()), nil
}

// Verify checks a presented link against the object path it names.
func (s *DiskStore) Verify(objectPath, expiresParam, sig string) error {
	p, err := cleanPath(objectPath)
	if err != nil {
		return err
	}

	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		return ErrBadSignature
	}

	if !hmac.Equal([]byte(s.sign(p, expires)), []byte(sig)) {
		return ErrBadSignature
	}
	if s.now().Unix() >= expires {
		return ErrLinkExpired
	}
	return nil
}

// Unavailable fails every call with Err. It stands in for the disk store when
// the signing key is missing so the rest of the API keeps serving.
type Unavailable struct {
	Err error
}

func (u Unavailable) Put(context.Context, string, []byte, string) error {
	return u.Err
}

func (u Unavailable) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", u.Err
}
