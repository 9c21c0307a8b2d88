// Package web serves the browser front end: suite listings, module
// documentation, fire-and-forget suite runs and their logs.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/ormasoftchile/tent/pkg/catalog"
	"github.com/ormasoftchile/tent/pkg/ctxlog"
	"github.com/ormasoftchile/tent/pkg/docs"
	"github.com/ormasoftchile/tent/pkg/runlog"
	"github.com/ormasoftchile/tent/pkg/runner"
	"github.com/ormasoftchile/tent/pkg/suite"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/style.css
var stylesheet []byte

var pageNames = []string{"main", "suites", "suite", "run", "log", "modules", "shutdown"}

var validName = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]*$`)

// Server is the web front end. Runs started from the browser execute in the
// background and append to the suite's log when done.
type Server struct {
	Registry  *catalog.Registry
	Runner    *runner.Runner
	SuitesDir string

	log      *slog.Logger
	pages    map[string]*template.Template
	runs     sync.WaitGroup
	mu       sync.Mutex
	stopping bool
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a server. The runner's console output is ignored.
func New(reg *catalog.Registry, run *runner.Runner, suitesDir string, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).ParseFS(templateFS,
			"templates/layout.html", "templates/suitelist.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s page: %w", name, err)
		}
		pages[name] = t
	}

	headless := *run
	headless.Console = nil
	return &Server{
		Registry:  reg,
		Runner:    &headless,
		SuitesDir: suitesDir,
		log:       log,
		pages:     pages,
		stop:      make(chan struct{}),
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/main", http.StatusMovedPermanently)
	})
	mux.HandleFunc("GET /main", s.handleMain)
	mux.HandleFunc("GET /suites", s.handleSuites)
	mux.HandleFunc("GET /suite/{name}", s.handleSuite)
	mux.HandleFunc("GET /run/{name}", s.handleRun)
	mux.HandleFunc("GET /log/{name}", s.handleLog)
	mux.HandleFunc("GET /modules", s.handleModules)
	mux.HandleFunc("GET /shutdown", s.handleShutdown)
	mux.HandleFunc("GET /style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Write(stylesheet)
	})
	return mux
}

// Start listens on addr and serves until ctx is cancelled or /shutdown is
// requested. ready, when non-nil, receives the base URL once listening.
// Start returns after in-flight runs have finished.
func (s *Server) Start(ctx context.Context, addr string, ready func(url string)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	url := "http://" + ln.Addr().String()
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok && tcp.IP.IsUnspecified() {
		url = fmt.Sprintf("http://localhost:%d", tcp.Port)
	}
	s.log.Info("Serving web interface.", "url", url)
	if ready != nil {
		ready(url)
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.stop:
			s.log.Info("Shutdown requested, shutting down.")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	s.drain()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Wait blocks until every background run has finished.
func (s *Server) Wait() {
	s.runs.Wait()
}

// drain refuses further runs, then waits for the ones in flight.
func (s *Server) drain() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	s.runs.Wait()
}

// beginRun registers a background run unless the server is draining.
func (s *Server) beginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.runs.Add(1)
	return true
}

type pageData struct {
	Home    bool
	Name    string
	Message string
	Suites  []string
	Titles  []string
	Errors  []string
	Stamp   string
	Log     string
	Modules template.HTML
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data pageData) {
	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.Error("Render failed.", "page", page, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) suites(w http.ResponseWriter) ([]string, bool) {
	names, err := suite.Discover(s.SuitesDir)
	if err != nil {
		s.log.Error("Listing suites failed.", "dir", s.SuitesDir, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return names, true
}

func (s *Server) handleMain(w http.ResponseWriter, r *http.Request) {
	if names, ok := s.suites(w); ok {
		s.render(w, http.StatusOK, "main", pageData{Suites: names})
	}
}

func (s *Server) handleSuites(w http.ResponseWriter, r *http.Request) {
	if names, ok := s.suites(w); ok {
		s.render(w, http.StatusOK, "suites", pageData{Home: true, Suites: names})
	}
}

// suitePath returns the suite file for a request, or "" when the name is
// not a suite in the suites directory.
func (s *Server) suitePath(name string) string {
	if !validName.MatchString(name) {
		return ""
	}
	path := suite.PathFor(s.SuitesDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}

// loadSuite loads the named suite, filling data with the failure when it
// cannot be loaded.
func (s *Server) loadSuite(name string, data *pageData) (*suite.Suite, string, int) {
	path := s.suitePath(name)
	if path == "" {
		data.Message = "Invalid suite name."
		return nil, "", http.StatusNotFound
	}
	st, err := suite.LoadFile(path, s.Registry)
	if err != nil {
		data.Message = "The suite could not be loaded."
		var le *suite.LoadError
		if errors.As(err, &le) {
			for _, ve := range le.Errors {
				data.Errors = append(data.Errors, ve.Error())
			}
		} else {
			data.Errors = []string{err.Error()}
		}
		return nil, path, http.StatusUnprocessableEntity
	}
	return st, path, http.StatusOK
}

func (s *Server) handleSuite(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data := pageData{Home: true, Name: name}
	st, _, status := s.loadSuite(name, &data)
	if st != nil {
		data.Titles = st.Titles()
	}
	s.render(w, status, "suite", data)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data := pageData{Home: true, Name: name}
	st, path, status := s.loadSuite(name, &data)
	if st == nil {
		s.render(w, status, "run", data)
		return
	}

	ctx := ctxlog.WithLogger(context.Background(), s.log)
	sink := runlog.NewFileSink(runlog.PathFor(path))
	if !s.beginRun() {
		data.Message = "The server is shutting down; the suite was not run."
		s.render(w, http.StatusServiceUnavailable, "run", data)
		return
	}
	go func() {
		defer s.runs.Done()
		if _, err := s.Runner.RunSuite(ctx, name, st.Cases(), sink); err != nil {
			s.log.Error("Background run failed.", "suite", name, "error", err)
		}
	}()
	s.render(w, http.StatusAccepted, "run", data)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data := pageData{Home: true, Name: name}
	if !validName.MatchString(name) {
		data.Message = "No logs found or invalid suite name."
		s.render(w, http.StatusNotFound, "log", data)
		return
	}
	rec, err := runlog.LatestFile(runlog.PathFor(suite.PathFor(s.SuitesDir, name)))
	if err != nil {
		data.Message = "No logs found or invalid suite name."
		if !errors.Is(err, runlog.ErrNoRecords) {
			s.log.Error("Reading log failed.", "suite", name, "error", err)
		}
		s.render(w, http.StatusNotFound, "log", data)
		return
	}
	data.Stamp = rec.Stamp
	data.Log = rec.Text()
	s.render(w, http.StatusOK, "log", data)
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	html, err := docs.HTML(s.Registry.Catalog())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, http.StatusOK, "modules", pageData{Home: true, Modules: template.HTML(html)})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "shutdown", pageData{})
	s.stopOnce.Do(func() { close(s.stop) })
}
