package httpapi

import (
	"bytes"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func buildCatalogFile(t *testing.T, rows int) []byte {
	t.Helper()
	path := t.TempDir() + "/upload.db"
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE library (id INTEGER PRIMARY KEY, artist TEXT, title TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for i := 0; i < rows; i++ {
		if _, err := db.Exec(`INSERT INTO library (artist, title) VALUES (?, ?)`, "Artist", "Title"); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	db.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return data
}

func TestHandleAdminCatalogReloadRejectsWithoutToken(t *testing.T) {
	handler, _, _ := newTestServer(t, emptyUpstream)
	server := httptest.NewServer(handler)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/v1/admin/catalog", bytes.NewReader([]byte("junk")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403 without an Authorization header", resp.StatusCode)
	}
}

func TestHandleAdminCatalogReloadRejectsInvalidFile(t *testing.T) {
	handler, _, _ := newTestServer(t, emptyUpstream)
	server := httptest.NewServer(handler)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/v1/admin/catalog", bytes.NewReader([]byte("not a sqlite file")))
	req.Header.Set("Authorization", "Bearer admin-secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a non-sqlite upload", resp.StatusCode)
	}
}

func TestHandleAdminCatalogReloadSwapsCatalog(t *testing.T) {
	handler, store, catalogPath := newTestServer(t, emptyUpstream)
	server := httptest.NewServer(handler)
	defer server.Close()

	data := buildCatalogFile(t, 3)
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/v1/admin/catalog", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer admin-secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", resp.StatusCode, body)
	}

	if !store.IsAvailable(req.Context()) {
		t.Error("expected store to remain available after reload")
	}
	if _, err := os.Stat(catalogPath); err != nil {
		t.Errorf("expected catalog file to exist at %s: %v", catalogPath, err)
	}
}
