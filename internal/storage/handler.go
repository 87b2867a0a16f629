package storage

import (
	"errors"
	"net/http"
	"os"
	"path"

	"printlink-be/internal/logger"

	"go.uber.org/zap"
)

// Handler serves GET /files/{path...} for links minted by SignedURL.
func (s *DiskStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		objectPath := r.PathValue("path")
		q := r.URL.Query()

		if err := s.Verify(objectPath, q.Get("expires"), q.Get("sig")); err != nil {
			logger.FromCtx(r.Context()).Warn("rejected file link",
				zap.String("path", objectPath),
				zap.Error(err),
			)
			http.Error(w, "link invalid or expired", http.StatusForbidden)
			return
		}

		full := s.fullPath(path.Clean(objectPath))
		f, err := os.Open(full)
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}

		if ct, err := os.ReadFile(full + metaSuffix); err == nil && len(ct) > 0 {
			w.Header().Set("Content-Type", string(ct))
		}
		w.Header().Set("Cache-Control", "private, no-store")
		http.ServeContent(w, r, stat.Name(), stat.ModTime(), f)
	})
}
