package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gologme/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/JB-SelfCompany/mailvault/internal/archive"
	"github.com/JB-SelfCompany/mailvault/internal/config"
	"github.com/JB-SelfCompany/mailvault/internal/search"
	"github.com/JB-SelfCompany/mailvault/internal/storage/blobstore"
	"github.com/JB-SelfCompany/mailvault/internal/storage/sqlite3"
)

const testMail = "From: alice@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: pepperoni pizza\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"\r\n" +
	"see you friday\r\n"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerCfg(t, &config.Config{ListenAddr: ":0"})
}

func newTestServerCfg(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	cfg.DataDir = dir

	storage, err := sqlite3.NewSQLite3Storage(filepath.Join(dir, "mailvault.db"))
	if err != nil {
		t.Fatalf("NewSQLite3Storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	blobs, err := blobstore.New(filepath.Join(dir, "blobs.db"))
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	t.Cleanup(func() { blobs.Close() })

	engine, err := search.Open(filepath.Join(dir, "search"))
	if err != nil {
		t.Fatalf("search.Open: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if _, err := storage.Users.UserCreate("alice", string(hash)); err != nil {
		t.Fatalf("UserCreate: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	a := archive.New(logger, storage, blobs, engine)
	srv := httptest.NewServer(NewServer(logger, cfg, a, storage).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.SetBasicAuth("alice", "secret")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return resp
}

func uploadMail(t *testing.T, srv *httptest.Server, mails map[string]string) addResponse {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range mails {
		fw, err := mw.CreateFormFile("messages", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	mw.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/messages/add", mw.FormDataContentType(), &buf)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add status = %d", resp.StatusCode)
	}
	var result addResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode add response: %v", err)
	}
	return result
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/stats")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestUploadAndRead(t *testing.T) {
	srv := newTestServer(t)

	result := uploadMail(t, srv, map[string]string{"mail.eml": testMail})
	if len(result.Items) != 1 || result.Items[0].Status != "archived" {
		t.Fatalf("upload result = %+v", result)
	}

	hash := blobstore.Hash([]byte(testMail))
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/messages/"+hash+"/raw", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("raw status = %d", resp.StatusCode)
	}
	var content contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	if content.Content != testMail {
		t.Fatalf("raw content = %q", content.Content)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/messages/"+hash+"/info", "", nil)
	defer resp.Body.Close()
	var info archive.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Subject != "pepperoni pizza" || info.From != "alice@example.com" {
		t.Fatalf("info = %+v", info)
	}
}

func TestUploadBatchContinuesPastBadItem(t *testing.T) {
	srv := newTestServer(t)

	result := uploadMail(t, srv, map[string]string{
		"good.eml": testMail,
		"bad.eml":  "not an email",
	})
	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(result.Items))
	}
	statuses := map[string]string{}
	for _, item := range result.Items {
		statuses[item.Filename] = item.Status
	}
	if statuses["good.eml"] != "archived" {
		t.Errorf("good.eml status = %q", statuses["good.eml"])
	}
	if statuses["bad.eml"] != "failed" {
		t.Errorf("bad.eml status = %q", statuses["bad.eml"])
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t)
	uploadMail(t, srv, map[string]string{"mail.eml": testMail})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/search?q=pepperoni&page=1&per_page=10", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}
	var result search.ResultPage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if result.Total != 1 || result.TotalPages != 1 {
		t.Fatalf("search result = %+v", result)
	}
	if result.Hits[0].Subject != "pepperoni pizza" {
		t.Fatalf("hit subject = %q", result.Hits[0].Subject)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	uploadMail(t, srv, map[string]string{"mail.eml": testMail})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/stats", "", nil)
	defer resp.Body.Close()
	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.MessageCount != 1 || stats.BlobCount != 1 || stats.SearchDocCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Version == "" {
		t.Error("stats version empty")
	}
}

func TestReadMessageRejectsOversize(t *testing.T) {
	data, err := readMessage(strings.NewReader("12345"), 5)
	if err != nil {
		t.Fatalf("readMessage at limit: %v", err)
	}
	if string(data) != "12345" {
		t.Fatalf("readMessage = %q, want %q", data, "12345")
	}

	if _, err := readMessage(strings.NewReader("123456"), 5); err == nil {
		t.Fatal("readMessage accepted a message over the limit")
	}
}

func TestRegisterCreatesUser(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"username":"newuser","password":"pw"}`)
	resp, err := http.Post(srv.URL+"/api/register", "application/json", body)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	var created registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if created.Username != "newuser" || created.ID == 0 {
		t.Fatalf("register response = %+v", created)
	}

	// The new credentials must work for authenticated endpoints.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/stats", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.SetBasicAuth("newuser", "pw")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("stats with new credentials = %d, want 200", authed.StatusCode)
	}
}

func TestRegisterDisabled(t *testing.T) {
	srv := newTestServerCfg(t, &config.Config{ListenAddr: ":0", DisableRegistration: true})

	body := strings.NewReader(`{"username":"newuser","password":"pw"}`)
	resp, err := http.Post(srv.URL+"/api/register", "application/json", body)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("register status = %d, want 403", resp.StatusCode)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv := newTestServer(t)

	// "alice" already exists in the fixture.
	body := strings.NewReader(`{"username":"alice","password":"pw"}`)
	resp, err := http.Post(srv.URL+"/api/register", "application/json", body)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("register status = %d, want 409", resp.StatusCode)
	}
}

func TestMessageNotFound(t *testing.T) {
	srv := newTestServer(t)

	hash := blobstore.Hash([]byte("never archived"))
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/messages/"+hash+"/raw", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
