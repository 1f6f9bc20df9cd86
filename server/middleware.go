package server

import (
	"log"
	"net/http"
	"time"
)

// statusRecorder remembers whether and with which status a response was started.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wrote {
		return
	}
	r.status = code
	r.wrote = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wrote {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func recorderFor(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w}
}

func logMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recorderFor(w)
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		status := rec.status
		if !rec.wrote {
			status = http.StatusOK
		}
		logger.Printf("%s %s %d %s", r.Method, path, status, time.Since(start))
	})
}

// recoverMiddleware turns a handler panic into a 500, unless a response was
// already started; a request never gets two responses.
func recoverMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorderFor(w)
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			logger.Printf("[ERROR] panic serving %s %s: %v", r.Method, r.URL.Path, v)
			if !rec.wrote {
				http.Error(rec, genericFailure, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(rec, r)
	})
}
