package web

import (
	"bytes"
	"context"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"pastebox/internal/model"
	"pastebox/internal/perm"
	"pastebox/internal/render"
	"pastebox/internal/store"
)

type testEnv struct {
	st *store.Store
	h  http.Handler
}

func newTestEnv(t *testing.T, defaults string, cfg ServerConfig) testEnv {
	t.Helper()
	st, err := store.Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg.Addr = "127.0.0.1:0"
	cfg.Policy = perm.NewPolicy(defaults, []perm.Grant{
		{Secret: "uploader", Grants: "create,list"},
		{Secret: "root", Grants: "admin,delete,list"},
	})
	srv, err := NewServer(cfg, st)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return testEnv{st: st, h: srv.Handler()}
}

func (e testEnv) do(t *testing.T, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e testEnv) get(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (e testEnv) post(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodPost, path, nil), cookies...)
}

func (e testEnv) login(t *testing.T, secret string) *http.Cookie {
	t.Helper()
	form := url.Values{"secret": {secret}}
	req := httptest.NewRequest(http.MethodPost, "/+login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := e.do(t, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login %q: expected 303, got %d: %s", secret, rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatalf("login %q: no session cookie", secret)
	return nil
}

func (e testEnv) create(t *testing.T, n store.NewItem, content string) model.ItemMeta {
	t.Helper()
	meta, err := e.st.Create(context.Background(), n, strings.NewReader(content), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return meta
}

func TestDisplay_TextIsHighlighted(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{})
	meta := env.create(t, store.NewItem{Filename: "hello.py", Type: "text/x-python"}, "def hello():\n    return 42\n")

	rec := env.get(t, "/"+meta.Name)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "hello.py") || !strings.Contains(body, "chroma") {
		t.Fatalf("expected highlighted page for hello.py, got:\n%s", body)
	}
	if !strings.Contains(html.UnescapeString(body), "/"+meta.Name+"/+download") {
		t.Fatalf("expected download link on display page")
	}
}

func TestDisplay_IncompleteIsConflict(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{})
	name, err := env.st.Reserve(context.Background(), store.NewItem{Filename: "big.iso"})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	rec := env.get(t, "/"+name)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "big.iso") || !strings.Contains(body, render.IncompleteMessage) {
		t.Fatalf("expected filename heading and incomplete message, got:\n%s", body)
	}

	if rec := env.get(t, "/"+name+"/+download"); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for incomplete download, got %d", rec.Code)
	}
}

func TestDisplay_LockedNeedsAdmin(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{})
	meta := env.create(t, store.NewItem{Filename: "secret.txt", Type: "text/plain", Locked: true}, "classified")

	if rec := env.get(t, "/"+meta.Name); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for anonymous view of locked item, got %d", rec.Code)
	}
	if rec := env.get(t, "/"+meta.Name+"/+inline"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for anonymous inline of locked item, got %d", rec.Code)
	}

	admin := env.login(t, "root")
	rec := env.get(t, "/"+meta.Name, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected admin to view locked item, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "classified") {
		t.Fatalf("expected content in admin view")
	}
}

func TestDisplay_NotFound(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{})
	for _, path := range []string{"/nosuchitem", "/bad%24name", "/nosuchitem/+download"} {
		if rec := env.get(t, path); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestDisplay_WithoutReadPermission(t *testing.T) {
	env := newTestEnv(t, "", ServerConfig{})
	meta := env.create(t, store.NewItem{Filename: "a.txt"}, "a")
	if rec := env.get(t, "/"+meta.Name); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without read permission, got %d", rec.Code)
	}
}

func TestDownload_HeadersAndRanges(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{})
	meta := env.create(t, store.NewItem{Filename: "notes.txt", Type: "text/plain"}, "0123456789")

	rec := env.get(t, "/"+meta.Name+"/+download")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "0123456789" {
		t.Fatalf("unexpected body %q", got)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, "notes.txt") {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
	if rec.Header().Get("Content-Type") != "text/plain" {
		t.Fatalf("unexpected Content-Type %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("expected a CSP on raw content")
	}

	req := httptest.NewRequest(http.MethodGet, "/"+meta.Name+"/+inline", nil)
	req.Header.Set("Range", "bytes=2-4")
	rec = env.do(t, req)
	if rec.Code != http.StatusPartialContent || rec.Body.String() != "234" {
		t.Fatalf("expected 206 with 234, got %d %q", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "inline") {
		t.Fatalf("expected inline disposition, got %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestList_RequiresPermission(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{})
	env.create(t, store.NewItem{Filename: "b.txt"}, "b")
	env.create(t, store.NewItem{Filename: "a.txt"}, "a")

	if rec := env.get(t, "/+list"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without list permission, got %d", rec.Code)
	}

	rec := env.get(t, "/+list", env.login(t, "uploader"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	a, b := strings.Index(body, "a.txt"), strings.Index(body, "b.txt")
	if a < 0 || b < 0 || a > b {
		t.Fatalf("expected a.txt before b.txt in listing:\n%s", body)
	}
}

func TestDisplay_ListItem(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{})
	x := env.create(t, store.NewItem{Filename: "x.txt"}, "x")
	meta, err := env.st.CreateList(context.Background(), "bundle", []string{x.Name, "missing"}, false)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	rec := env.get(t, "/"+meta.Name)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `href="/`+x.Name+`"`) || !strings.Contains(body, "x.txt") {
		t.Fatalf("expected list row linking x.txt, got:\n%s", body)
	}
}

func TestUpload_RawBody(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/+upload?filename=hello.py&maxlife=1h", strings.NewReader("print(1)\n"))
	if rec := env.do(t, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without create permission, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/+upload?filename=hello.py&maxlife=1h", strings.NewReader("print(1)\n"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(t, req, env.login(t, "uploader"))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	name := strings.TrimPrefix(rec.Header().Get("Location"), "/")
	meta, err := env.st.Meta(context.Background(), name)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Filename != "hello.py" || !meta.Complete || meta.Size != 9 {
		t.Fatalf("unexpected meta %#v", meta)
	}
	if !strings.HasPrefix(meta.Type, "text/x-python") {
		t.Fatalf("expected type guessed from filename, got %q", meta.Type)
	}
	if meta.ExpiresAt < 0 {
		t.Fatalf("expected maxlife to set an expiry")
	}
}

func TestUpload_Multipart(t *testing.T) {
	env := newTestEnv(t, "read,create", ServerConfig{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("maxlife", "forever")
	fw, err := mw.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = io.WriteString(fw, "\x89PNG fake")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/+upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(t, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.get(t, rec.Header().Get("Location"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<img") {
		t.Fatalf("expected image fragment, got:\n%s", rec.Body.String())
	}
}

func TestUpload_TooLarge(t *testing.T) {
	env := newTestEnv(t, "read,create", ServerConfig{MaxBodySize: 8})
	req := httptest.NewRequest(http.MethodPost, "/+upload?filename=a.txt", strings.NewReader("0123456789"))
	if rec := env.do(t, req); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestUpload_LockedNeedsAdmin(t *testing.T) {
	env := newTestEnv(t, "read,create", ServerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/+upload?filename=a.txt&locked=1", strings.NewReader("a"))
	if rec := env.do(t, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestLockUnlockDelete(t *testing.T) {
	env := newTestEnv(t, "read,delete", ServerConfig{})
	meta := env.create(t, store.NewItem{Filename: "a.txt"}, "a")

	if rec := env.post(t, "/"+meta.Name+"/+lock"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 locking without admin, got %d", rec.Code)
	}

	admin := env.login(t, "root")
	if rec := env.post(t, "/"+meta.Name+"/+lock", admin); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 on lock, got %d", rec.Code)
	}
	if got, _ := env.st.Meta(context.Background(), meta.Name); !got.Locked {
		t.Fatalf("expected item to be locked")
	}

	if rec := env.post(t, "/"+meta.Name+"/+delete"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting a locked item without admin, got %d", rec.Code)
	}

	if rec := env.post(t, "/"+meta.Name+"/+unlock", admin); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 on unlock, got %d", rec.Code)
	}
	if rec := env.post(t, "/"+meta.Name+"/+delete"); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 on delete, got %d", rec.Code)
	}
	if rec := env.get(t, "/"+meta.Name); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
	if rec := env.post(t, "/"+meta.Name+"/+lock", admin); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 locking a deleted item, got %d", rec.Code)
	}
}

func TestLogin_RejectsUnknownSecret(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{})
	form := url.Values{"secret": {"guess"}}
	req := httptest.NewRequest(http.MethodPost, "/+login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rec := env.do(t, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestForgedSessionIsIgnored(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{})
	forged, err := signToken([]byte("not-the-key"), signedPayload{Typ: "session", Sub: "admin,list", Exp: 1 << 40})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec := env.get(t, "/+list", &http.Cookie{Name: sessionCookieName, Value: forged})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected forged session to grant nothing, got %d", rec.Code)
	}
}

func TestCrossOriginPostRejected(t *testing.T) {
	env := newTestEnv(t, "read,create", ServerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/+upload?filename=a.txt", strings.NewReader("a"))
	req.Header.Set("Origin", "http://evil.example")
	if rec := env.do(t, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHomeAndAssets(t *testing.T) {
	env := newTestEnv(t, "read", ServerConfig{SiteName: "Team paste", Motd: "Be *nice*.\n\n<script>alert(1)</script>"})

	rec := env.get(t, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Team paste") || !strings.Contains(body, "<em>nice</em>") {
		t.Fatalf("expected site name and rendered motd, got:\n%s", body)
	}
	if strings.Contains(body, "<script>") {
		t.Fatalf("motd must not pass raw HTML through")
	}

	if rec := env.get(t, "/health"); rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
	rec = env.get(t, "/static/highlight.css")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), ".chroma") {
		t.Fatalf("expected chroma stylesheet, got %d", rec.Code)
	}
	if rec := env.get(t, "/static/app.css"); rec.Code != http.StatusOK {
		t.Fatalf("expected app.css, got %d", rec.Code)
	}
}
