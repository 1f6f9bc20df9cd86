package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"dolly_image_generator/generator"
	"dolly_image_generator/publisher"
)

const (
	maxFormBytes   = 1 << 20
	genericFailure = "Error generating image."
)

type Server struct {
	genAgent *generator.Agent
	pub      *publisher.Publisher
	timeout  time.Duration
	verbose  bool
	logger   *log.Logger
	staticFS http.Handler
}

// Options tune a Server. The zero value means no request timeout, quiet logs
// and log.Default().
type Options struct {
	Timeout time.Duration
	Verbose bool
	Logger  *log.Logger
}

func New(genAgent *generator.Agent, pub *publisher.Publisher, opts Options) (*Server, error) {
	if genAgent == nil {
		return nil, errors.New("generator agent required")
	}
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		genAgent: genAgent,
		pub:      pub,
		timeout:  opts.Timeout,
		verbose:  opts.Verbose,
		logger:   logger,
		staticFS: http.FileServer(http.Dir(pub.Dir())),
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate", s.handleGenerate)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/", s.staticHandler())
	return logMiddleware(s.logger, recoverMiddleware(s.logger, mux))
}

func (s *Server) staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path == "/" {
			http.ServeFile(w, r, filepath.Join(s.pub.Dir(), "index.html"))
			return
		}
		s.staticFS.ServeHTTP(w, r)
	})
}

func (s *Server) infof(format string, args ...interface{}) {
	if !s.verbose {
		return
	}
	s.logger.Printf("[INFO] "+format, args...)
}

// --- Handlers ---

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	prompt := r.PostFormValue("prompt")

	sess := generator.NewSession(newSessionID(), prompt)
	s.infof("session=%s received prompt=%q", sess.ID, prompt)

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.genAgent.Generate(ctx, sess, prompt)
	if err != nil {
		s.fail(w, sess, err)
		return
	}
	s.infof("session=%s model returned %d parts", sess.ID, len(res.Parts))

	outcome, err := s.pub.Resolve(res)
	if err != nil {
		s.fail(w, sess, err)
		return
	}
	s.advance(sess, generator.StateResolved)

	body, err := outcome.HTML()
	if err != nil {
		s.fail(w, sess, err)
		return
	}
	s.infof("session=%s outcome=%s", sess.ID, outcome.Kind)
	s.respond(w, sess, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

// --- Helpers ---

func (s *Server) respond(w http.ResponseWriter, sess *generator.Session, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
	s.advance(sess, generator.StateResponded)
	s.infof("session=%s responded in %s", sess.ID, sess.Elapsed())
}

// fail logs the detail and sends the client only a generic message.
func (s *Server) fail(w http.ResponseWriter, sess *generator.Session, err error) {
	if ferr := sess.Fail(err); ferr != nil {
		s.logger.Printf("[WARN] %v", ferr)
	}
	s.logger.Printf("[ERROR] session=%s kind=%s: %v", sess.ID, errorKind(err), err)

	if errors.Is(err, generator.ErrInvalidPrompt) {
		http.Error(w, err.Error(), http.StatusBadRequest)
	} else {
		http.Error(w, genericFailure, http.StatusInternalServerError)
	}
	s.advance(sess, generator.StateResponded)
}

func (s *Server) advance(sess *generator.Session, next generator.State) {
	if err := sess.Advance(next); err != nil {
		s.logger.Printf("[WARN] %v", err)
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, generator.ErrInvalidPrompt):
		return "invalid_prompt"
	case errors.Is(err, generator.ErrAssetLoad):
		return "asset_load"
	case errors.Is(err, generator.ErrService):
		return "service"
	case errors.Is(err, publisher.ErrPublish):
		return "publish"
	default:
		return "internal"
	}
}

func newSessionID() string {
	return strings.ReplaceAll(time.Now().Format("20060102T150405.000000000"), ".", "")
}
