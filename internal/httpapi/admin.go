package httpapi

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/radiolib/libraryd/internal/telemetry"
)

// handleAdminCatalogReload uploads a replacement catalog SQLite file,
// validates it, and performs the atomic swap itself: write to a temp
// file, sanity-check the 'library' table, rename into place, then reopen
// the live store so the next request sees the new file.
func (s *Server) handleAdminCatalogReload(w http.ResponseWriter, r *http.Request) {
	if s.adminToken == "" {
		writeError(w, http.StatusForbidden, "admin endpoint disabled (no admin token configured)")
		return
	}
	if !validAdminAuth(r.Header.Get("Authorization"), s.adminToken) {
		writeError(w, http.StatusForbidden, "invalid token")
		return
	}

	tmpPath := s.catalogPath + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to write file: %v", err))
		return
	}
	if _, err := io.Copy(tmpFile, r.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to write file: %v", err))
		return
	}
	tmpFile.Close()

	rowCount, err := validateCatalogFile(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid sqlite database: %v", err))
		return
	}

	if err := os.Rename(tmpPath, s.catalogPath); err != nil {
		os.Remove(tmpPath)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to replace catalog: %v", err))
		return
	}

	if err := s.store.Reopen(); err != nil {
		telemetry.Logger.Error("catalog reopen failed after upload", "err", err)
		writeError(w, http.StatusInternalServerError, "catalog replaced but reopen failed")
		return
	}

	telemetry.ForRequest(r.Context()).Info("catalog reloaded", "row_count", rowCount)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "row_count": rowCount})
}

func validAdminAuth(header, token string) bool {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return false
	}
	return header[len(prefix):] == token
}

func validateCatalogFile(path string) (int64, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int64
	if err := db.QueryRow("SELECT count(*) FROM library").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
