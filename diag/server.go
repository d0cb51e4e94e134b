package diag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/origami-state/osm/config"
	"github.com/origami-state/osm/diag/status"
	"github.com/origami-state/osm/diag/telemetry"
	"github.com/origami-state/osm/internal/utils"
	"github.com/origami-state/osm/log"
	"github.com/origami-state/osm/store"
)

type Server struct {
	httpServer   *http.Server
	log          log.Logger
	conf         *config.DiagConfig
	stores       map[string]*store.Store
	errorChannel chan error
}

func NewServer(conf *config.DiagConfig, telemetryReporter telemetry.Reporter, statusReporter status.Reporter, stores []*store.Store, log log.Logger, errorChan chan error) *Server {
	diagLog := log.WithPrefix("diag")
	mux := http.NewServeMux()

	srv := &Server{
		log:          diagLog,
		conf:         conf,
		stores:       make(map[string]*store.Store, len(stores)),
		errorChannel: errorChan,
	}
	for _, s := range stores {
		srv.stores[s.Name()] = s
	}

	if telemetryReporter != nil && conf.IsPrometheusExporterEnabled() {
		mux.Handle("/metrics", telemetryReporter.GetPrometheusHttpHandler())
		diagLog.Reportf("metrics enabled, accepting requests on path: /metrics")
	}

	if statusReporter != nil && conf.IsStatusEnabled() {
		handler := statusReporter.HttpHandler()
		if telemetryReporter != nil {
			handler = telemetryReporter.InstrumentHttp("/status", http.MethodGet, handler)
		}
		mux.Handle("GET /status", handler)
		diagLog.Reportf("status enabled, accepting requests on path: /status")
	}

	if len(srv.stores) > 0 {
		handler := http.HandlerFunc(srv.snapshotHandler)
		if telemetryReporter != nil {
			handler = telemetryReporter.InstrumentHttp("/stores/{name}", http.MethodGet, handler)
		}
		mux.Handle("GET /stores/{name}", handler)
		diagLog.Reportf("store snapshots available on path: /stores/{name}")
	}

	setupDebugEndpoints(mux)

	srv.httpServer = &http.Server{
		Addr:         ":" + strconv.Itoa(conf.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv
}

// snapshotHandler serves the current content of a store as JSON. The ETag
// is derived from the body, so clients can poll with If-None-Match.
func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	st, ok := s.stores[name]
	if !ok {
		http.Error(w, fmt.Sprintf("store '%s' not found", name), http.StatusNotFound)
		return
	}
	body, err := json.Marshal(st.Snapshot())
	if err != nil {
		s.log.Errorf("failed to serialize store '%s': %s", name, err)
		http.Error(w, "Error producing snapshot", http.StatusInternalServerError)
		return
	}
	etag := utils.GenerateEtag(body)
	w.Header().Set("Cache-Control", "max-age=0, must-revalidate")
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Listen() {
	s.log.Reportf("diag HTTP server listening on port: %d", s.conf.Port)

	go func() {
		httpErr := s.httpServer.ListenAndServe()

		if !errors.Is(httpErr, http.ErrServerClosed) {
			s.errorChannel <- fmt.Errorf("error starting diag HTTP server on port: %d  %s", s.conf.Port, httpErr)
		}
	}()
}

func (s *Server) Shutdown() {
	s.log.Reportf("initiating server shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.log.Errorf("shutdown error: %s", err)
	}

	s.log.Reportf("server shutdown complete")
}
