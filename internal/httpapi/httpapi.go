// Package httpapi is Fisher's HTTP front-end: it exposes /hook/<name> and
// /health, authenticates requests against the bound hook's providers, and
// forwards validated requests into the scheduler as Job messages. It never
// waits for a job to finish — validation failures aside, every accepted
// request gets an immediate reply.
package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ChuLiYu/fisher/internal/hooks"
	"github.com/ChuLiYu/fisher/internal/metrics"
	"github.com/ChuLiYu/fisher/internal/scheduler"
	"github.com/ChuLiYu/fisher/pkg/types"
)

var log = slog.Default()

var errBehindProxyNoHeader = errors.New("httpapi: missing or short X-Forwarded-For for configured proxy hop count")

// Config carries the front-end's runtime settings, mirroring the core's
// CLI surface contract (spec.md §6).
type Config struct {
	EnableHealth bool
	// ProxyHops is the number of trusted X-Forwarded-For hops to peel when
	// resolving the client IP. 0 means trust RemoteAddr only.
	ProxyHops int
}

// Server wires the hook repository and the scheduler's input channel to an
// http.Handler.
type Server struct {
	mux     *http.ServeMux
	hooks   *hooks.Repository
	input   chan<- scheduler.Input
	cfg     Config
	metrics *metrics.Collector
}

// NewServer builds a Server. metrics may be nil when metrics are disabled.
func NewServer(repo *hooks.Repository, input chan<- scheduler.Input, cfg Config, mc *metrics.Collector) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		hooks:   repo,
		input:   input,
		cfg:     cfg,
		metrics: mc,
	}
	s.mux.HandleFunc("/hook/", s.handleHook)
	s.mux.HandleFunc("/health", s.handleHealth)
	if mc != nil {
		s.mux.Handle("/metrics", metrics.Handler())
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/hook/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}

	hook, ok := s.hooks.Get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	ip, err := clientIP(r, s.cfg.ProxyHops)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}
	// Restore the drained body so collectParams can still parse a form.
	r.Body = io.NopCloser(bytes.NewReader(body))

	req := &types.Request{
		Kind:    types.RequestWeb,
		Source:  ip,
		Headers: r.Header,
		Params:  collectParams(r),
		Body:    body,
	}

	var chosen *types.HookProvider
	var outcome types.RequestOutcome
	for _, hp := range hook.Providers {
		outcome = hp.Provider.Validate(req)
		if outcome != types.Invalid {
			chosen = hp
			break
		}
	}
	if chosen == nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if outcome == types.Ping {
		writeJSON(w, http.StatusOK, map[string]bool{"processed": false})
		return
	}

	deliveryID := uuid.New().String()
	job := &types.Job{
		Hook:       hook,
		Provider:   chosen.Provider,
		Request:    req,
		ScriptID:   hook.Name,
		DeliveryID: deliveryID,
	}
	log.Info("dispatching hook", "hook", name, "delivery_id", deliveryID, "source", ip)
	s.input <- scheduler.JobInput{Job: job}
	if s.metrics != nil {
		s.metrics.RecordReceived()
	}

	writeJSON(w, http.StatusOK, map[string]bool{"processed": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.EnableHealth {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	reply := make(chan types.HealthSnapshot, 1)
	s.input <- scheduler.HealthStatusInput{Reply: reply}
	snapshot := <-reply

	writeJSON(w, http.StatusOK, map[string]types.HealthSnapshot{"result": snapshot})
}

func collectParams(r *http.Request) map[string]string {
	params := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			for k, v := range r.PostForm {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}
		}
	}
	return params
}

// clientIP resolves the request's source IP, honoring proxyHops trusted
// X-Forwarded-For entries. proxyHops == 0 trusts RemoteAddr only.
func clientIP(r *http.Request, proxyHops int) (string, error) {
	if proxyHops <= 0 {
		return stripPort(r.RemoteAddr), nil
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return "", errBehindProxyNoHeader
	}
	parts := strings.Split(xff, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < proxyHops {
		return "", errBehindProxyNoHeader
	}
	return parts[len(parts)-proxyHops], nil
}

func stripPort(addr string) string {
	if i := strings.LastIndex(addr, ":"); i != -1 {
		return addr[:i]
	}
	return addr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encoding JSON response", "error", err)
	}
}
