package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pastebox/internal/log"
	"pastebox/internal/model"
	"pastebox/internal/perm"
	"pastebox/internal/render"
	"pastebox/internal/store"

	"github.com/CAFxX/httpcompression"
	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html static/*.css
var assetsFS embed.FS

// rawContentCSP keeps uploaded HTML/SVG served from our origin from running scripts.
const rawContentCSP = "default-src 'none'; img-src 'self'; media-src 'self'; style-src 'unsafe-inline'; sandbox"

type ServerConfig struct {
	Addr string
	// BaseURL prefixes generated links; empty means root-relative.
	BaseURL  string
	SiteName string
	// Motd is markdown shown on the home page.
	Motd        string
	MaxBodySize int64
	Policy      perm.Policy

	Style      string
	ImageWidth int
}

type Server struct {
	cfg    ServerConfig
	store  *store.Store
	render *render.Dispatcher
	urls   render.PathURLs
	tmpl   *template.Template
	secret []byte

	motd         template.HTML
	highlightCSS []byte
	compress     func(http.Handler) http.Handler
}

type baseVM struct {
	SiteName  string
	LoggedIn  bool
	CanCreate bool
	CanList   bool
}

func (b baseVM) base() baseVM { return b }

type headVM struct {
	baseVM
	Title string
}

// pageHead adapts any page VM for the shared "head" template.
func pageHead(data interface{ base() baseVM }, title string) headVM {
	return headVM{baseVM: data.base(), Title: title}
}

type indexVM struct {
	baseVM
	Motd        template.HTML
	MaxBodySize string
}

type listVM struct {
	baseVM
	Count int
	Table template.HTML
}

type displayVM struct {
	baseVM
	Item        model.ItemMeta
	Size        string
	Uploaded    string
	UploadedISO string
	Expires     string
	Strategy    string
	Content     template.HTML
	DisplayURL  string
	DownloadURL string
	InlineURL   string
	CanAdmin    bool
	CanDelete   bool
}

type errorVM struct {
	baseVM
	Status  int
	Heading string
	Message string
}

func NewServer(cfg ServerConfig, st *store.Store) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.SiteName = strings.TrimSpace(cfg.SiteName)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if st == nil {
		return nil, errors.New("web: store is nil")
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "pastebox"
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = store.DefaultMaxBytes
	}

	urls := render.PathURLs{Base: cfg.BaseURL}
	d, err := render.New(render.Config{
		URLs:       urls,
		Resolver:   st,
		Style:      cfg.Style,
		ImageWidth: cfg.ImageWidth,
	})
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"trim": strings.TrimSpace,
		"page": pageHead,
	}).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	secret, err := loadOrInitSecretKey(st.Dir)
	if err != nil {
		return nil, fmt.Errorf("web: secret key: %w", err)
	}

	var css bytes.Buffer
	if err := d.WriteHighlightCSS(&css); err != nil {
		return nil, fmt.Errorf("web: highlight css: %w", err)
	}

	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, fmt.Errorf("web: compression: %w", err)
	}

	return &Server{
		cfg:          cfg,
		store:        st,
		render:       d,
		urls:         urls,
		tmpl:         tmpl,
		secret:       secret,
		motd:         renderMotd(cfg.Motd),
		highlightCSS: css.Bytes(),
		compress:     compress,
	}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

// Handler returns the routes. Pages are compressed; raw item content is not,
// so range requests keep working.
func (s *Server) Handler() http.Handler {
	page := func(h http.HandlerFunc) http.Handler { return s.compress(h) }
	post := func(h http.HandlerFunc) http.Handler { return withSameOrigin(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /static/app.css", page(s.handleAppCSS))
	mux.Handle("GET /static/highlight.css", page(s.handleHighlightCSS))
	mux.Handle("GET /{$}", page(s.handleHome))
	mux.Handle("GET /+list", page(s.handleList))
	mux.Handle("POST /+upload", post(s.handleUpload))
	mux.Handle("POST /+login", post(s.handleLoginPost))
	mux.Handle("POST /+logout", post(s.handleLogoutPost))
	mux.Handle("GET /{name}", page(s.handleDisplay))
	mux.HandleFunc("GET /{name}/+download", s.handleDownload)
	mux.HandleFunc("GET /{name}/+inline", s.handleInline)
	mux.Handle("POST /{name}/+lock", post(s.handleLock))
	mux.Handle("POST /{name}/+unlock", post(s.handleUnlock))
	mux.Handle("POST /{name}/+delete", post(s.handleDelete))
	return withRecovery(withRequestLog(mux))
}

// Serve handles connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

// capsForRequest returns the default permissions plus whatever the session
// cookie grants.
func (s *Server) capsForRequest(r *http.Request) (perm.Set, bool) {
	caps := s.cfg.Policy.Default
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return caps, false
	}
	sp, err := verifyToken(s.secret, c.Value)
	if err != nil || sp.Typ != "session" {
		return caps, false
	}
	return caps.Union(perm.Parse(sp.Sub)), true
}

func (s *Server) baseVMFor(caps perm.Set, loggedIn bool) baseVM {
	return baseVM{
		SiteName:  s.cfg.SiteName,
		LoggedIn:  loggedIn,
		CanCreate: caps.Has(perm.Create),
		CanList:   caps.Has(perm.List),
	}
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) writeHTMLTemplate(w http.ResponseWriter, status int, name string, data any) {
	html, err := s.renderTemplate(name, data)
	if err != nil {
		log.ErrorLog.Printf("template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, html)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, heading, message string) {
	caps, loggedIn := s.capsForRequest(r)
	s.writeHTMLTemplate(w, status, "error.html", errorVM{
		baseVM:  s.baseVMFor(caps, loggedIn),
		Status:  status,
		Heading: heading,
		Message: message,
	})
}

func (s *Server) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	log.ErrorLog.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	s.writeError(w, r, http.StatusInternalServerError, "Internal server error", "Something went wrong. Try again later.")
}

func (s *Server) writeForbidden(w http.ResponseWriter, r *http.Request, message string) {
	s.writeError(w, r, http.StatusForbidden, "Forbidden", message)
}

func (s *Server) writeNotFound(w http.ResponseWriter, r *http.Request, name string) {
	s.writeError(w, r, http.StatusNotFound, "Not found", fmt.Sprintf("There is no item named %q.", name))
}

// writeRejection renders a gate rejection from the dispatcher.
func (s *Server) writeRejection(w http.ResponseWriter, r *http.Request, res render.Result) {
	switch res.Kind {
	case render.Incomplete:
		heading := res.Heading
		if heading == "" {
			heading = res.Name
		}
		s.writeError(w, r, res.HTTPStatus(), heading, render.IncompleteMessage)
	default:
		s.writeError(w, r, res.HTTPStatus(), "Locked", "This item is locked. Only an admin can view it.")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleAppCSS(w http.ResponseWriter, r *http.Request) {
	b, err := assetsFS.ReadFile("static/app.css")
	if err != nil || len(b) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.highlightCSS)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	caps, loggedIn := s.capsForRequest(r)
	s.writeHTMLTemplate(w, http.StatusOK, "index.html", indexVM{
		baseVM:      s.baseVMFor(caps, loggedIn),
		Motd:        s.motd,
		MaxBodySize: humanize.IBytes(uint64(s.cfg.MaxBodySize)),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	caps, loggedIn := s.capsForRequest(r)
	if !caps.Has(perm.List) {
		s.writeForbidden(w, r, "You are not allowed to list items.")
		return
	}
	files, err := s.store.List(r.Context())
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	table, err := render.FileTable(files, s.urls)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	s.writeHTMLTemplate(w, http.StatusOK, "list.html", listVM{
		baseVM: s.baseVMFor(caps, loggedIn),
		Count:  len(files),
		Table:  table,
	})
}

// openItem opens the item named in the path, writing the error page itself
// when that fails.
func (s *Server) openItem(w http.ResponseWriter, r *http.Request) (*store.Item, bool) {
	name := r.PathValue("name")
	it, err := s.store.OpenItem(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeNotFound(w, r, name)
			return nil, false
		}
		s.writeInternalError(w, r, err)
		return nil, false
	}
	return it, true
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	caps, loggedIn := s.capsForRequest(r)
	if !caps.Has(perm.Read) {
		s.writeForbidden(w, r, "You are not allowed to read items.")
		return
	}
	it, ok := s.openItem(w, r)
	if !ok {
		return
	}
	defer it.Close()

	res := s.render.Render(r.Context(), it, caps)
	if res.Kind != render.Rendered {
		s.writeRejection(w, r, res)
		return
	}

	meta := it.Meta()
	uploaded := time.Unix(meta.UploadedAt, 0)
	vm := displayVM{
		baseVM:      s.baseVMFor(caps, loggedIn),
		Item:        meta,
		Size:        humanize.IBytes(uint64(meta.Size)),
		Uploaded:    humanize.Time(uploaded),
		UploadedISO: uploaded.UTC().Format(time.RFC3339),
		Strategy:    res.Strategy.String(),
		Content:     res.Fragment,
		DisplayURL:  s.urls.URL(meta.Name, render.EndpointDisplay),
		DownloadURL: s.urls.URL(meta.Name, render.EndpointDownload),
		InlineURL:   s.urls.URL(meta.Name, render.EndpointInline),
		CanAdmin:    caps.Has(perm.Admin),
		CanDelete:   caps.Has(perm.Delete) && (!meta.Locked || caps.Has(perm.Admin)),
	}
	if meta.ExpiresAt >= 0 {
		vm.Expires = humanize.Time(time.Unix(meta.ExpiresAt, 0))
	}
	s.writeHTMLTemplate(w, http.StatusOK, "display.html", vm)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveRaw(w, r, "attachment")
}

func (s *Server) handleInline(w http.ResponseWriter, r *http.Request) {
	s.serveRaw(w, r, "inline")
}

// serveRaw streams item content under the same gates as the display page.
func (s *Server) serveRaw(w http.ResponseWriter, r *http.Request, disposition string) {
	caps, _ := s.capsForRequest(r)
	if !caps.Has(perm.Read) {
		s.writeForbidden(w, r, "You are not allowed to read items.")
		return
	}
	it, ok := s.openItem(w, r)
	if !ok {
		return
	}
	defer it.Close()

	if res, ok := render.Admit(it.Meta(), caps); !ok {
		s.writeRejection(w, r, res)
		return
	}
	content, err := it.Content(r.Context())
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}

	meta := it.Meta()
	cd := mime.FormatMediaType(disposition, map[string]string{"filename": meta.DisplayName()})
	if cd == "" {
		cd = disposition
	}
	h := w.Header()
	h.Set("Content-Type", meta.Type)
	h.Set("Content-Disposition", cd)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", rawContentCSP)
	http.ServeContent(w, r, "", time.Unix(meta.UploadedAt, 0), content)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	caps, _ := s.capsForRequest(r)
	if !caps.Has(perm.Create) {
		s.writeForbidden(w, r, "You are not allowed to upload items.")
		return
	}
	// Headroom for multipart framing; the store enforces the real limit.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize+1<<20)

	var (
		n    store.NewItem
		body io.Reader
		err  error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		n, body, err = readMultipartUpload(r)
	} else {
		n, err = uploadFromQuery(r.URL.Query(), mediaType)
		body = r.Body
	}
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "Bad upload", err.Error())
		return
	}
	if n.Locked && !caps.Has(perm.Admin) {
		s.writeForbidden(w, r, "Only an admin can upload locked items.")
		return
	}

	meta, err := s.store.Create(r.Context(), n, body, s.cfg.MaxBodySize)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.Is(err, store.ErrTooLarge) || errors.As(err, &tooBig) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "Too large",
				fmt.Sprintf("Uploads are limited to %s.", humanize.IBytes(uint64(s.cfg.MaxBodySize))))
			return
		}
		s.writeInternalError(w, r, err)
		return
	}
	log.InfoLog.Printf("stored %s (%s, %s, %d bytes)", meta.Name, meta.DisplayName(), meta.Type, meta.Size)
	http.Redirect(w, r, s.urls.URL(meta.Name, render.EndpointDisplay), http.StatusSeeOther)
}

// uploadType drops content types that say nothing about the payload so the
// type is guessed from the filename instead.
func uploadType(ct string) string {
	ct = strings.TrimSpace(ct)
	switch strings.ToLower(ct) {
	case "", model.DefaultType, "application/x-www-form-urlencoded", "multipart/form-data":
		return ""
	}
	return ct
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func uploadFromQuery(q url.Values, contentType string) (store.NewItem, error) {
	life, err := store.ParseMaxLife(q.Get("maxlife"))
	if err != nil {
		return store.NewItem{}, err
	}
	t := strings.TrimSpace(q.Get("type"))
	if t == "" {
		t = uploadType(contentType)
	}
	return store.NewItem{
		Filename: strings.TrimSpace(q.Get("filename")),
		Type:     t,
		Locked:   parseBool(q.Get("locked")),
		MaxLife:  life,
	}, nil
}

// readMultipartUpload reads form fields up to the "file" part and returns that
// part as the body. Fields after the file are ignored.
func readMultipartUpload(r *http.Request) (store.NewItem, io.Reader, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return store.NewItem{}, nil, err
	}
	q := url.Values{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return store.NewItem{}, nil, errors.New("missing file")
		}
		if err != nil {
			return store.NewItem{}, nil, err
		}
		if part.FormName() != "file" {
			v, err := io.ReadAll(io.LimitReader(part, 4096))
			if err != nil {
				return store.NewItem{}, nil, err
			}
			q.Set(part.FormName(), string(v))
			continue
		}
		if q.Get("filename") == "" {
			q.Set("filename", part.FileName())
		}
		n, err := uploadFromQuery(q, part.Header.Get("Content-Type"))
		if err != nil {
			return store.NewItem{}, nil, err
		}
		return n, part, nil
	}
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.setLocked(w, r, true)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	s.setLocked(w, r, false)
}

func (s *Server) setLocked(w http.ResponseWriter, r *http.Request, locked bool) {
	caps, _ := s.capsForRequest(r)
	if !caps.Has(perm.Admin) {
		s.writeForbidden(w, r, "Only an admin can lock or unlock items.")
		return
	}
	name := r.PathValue("name")
	if err := s.store.SetLocked(r.Context(), name, locked); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeNotFound(w, r, name)
			return
		}
		s.writeInternalError(w, r, err)
		return
	}
	http.Redirect(w, r, s.urls.URL(name, render.EndpointDisplay), http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	caps, _ := s.capsForRequest(r)
	if !caps.Has(perm.Delete) {
		s.writeForbidden(w, r, "You are not allowed to delete items.")
		return
	}
	name := r.PathValue("name")
	meta, err := s.store.Meta(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeNotFound(w, r, name)
			return
		}
		s.writeInternalError(w, r, err)
		return
	}
	if meta.Locked && !caps.Has(perm.Admin) {
		s.writeForbidden(w, r, "This item is locked. Only an admin can delete it.")
		return
	}
	if err := s.store.Delete(r.Context(), name); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeInternalError(w, r, err)
		return
	}
	log.InfoLog.Printf("deleted %s", name)
	http.Redirect(w, r, s.cfg.BaseURL+"/", http.StatusSeeOther)
}

func (s *Server) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "Bad request", "Could not read the login form.")
		return
	}
	secret := strings.TrimSpace(r.PostForm.Get("secret"))
	if !s.cfg.Policy.Known(secret) {
		log.WarningLog.Printf("login: rejected secret from %s", r.RemoteAddr)
		s.writeError(w, r, http.StatusForbidden, "Login failed", "That secret is not valid.")
		return
	}
	tok, err := newSessionToken(s.secret, s.cfg.Policy.ForSecret(secret).String(), sessionTTL)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	setSessionCookie(w, r, tok, sessionTTL)
	http.Redirect(w, r, s.cfg.BaseURL+"/", http.StatusSeeOther)
}

func (s *Server) handleLogoutPost(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	http.Redirect(w, r, s.cfg.BaseURL+"/", http.StatusSeeOther)
}
