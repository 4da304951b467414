package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aalhour/kvconf"
	"github.com/aalhour/kvconf/config"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

type healthResponse struct {
	Status string `json:"status"`
	KVPath string `json:"kv_path"`
	Raft   string `json:"raft_path"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	cfg *config.Config
}

// newRouter serves a validated configuration.
func newRouter(cfg *config.Config) http.Handler {
	h := &handler{cfg: cfg}

	r := chi.NewRouter()
	r.Get("/healthz", h.handleHealth)
	r.Get("/config", h.handleConfig)
	r.Get("/options/{engine}", h.handleOptions)
	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeText(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		KVPath: h.cfg.KVDBPath(),
		Raft:   h.cfg.Raftstore.RaftDBPath,
	})
}

// handleConfig dumps the configuration; ?format=yaml selects YAML.
func (h *handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	f := config.FormatTOML
	if name := r.URL.Query().Get("format"); name != "" {
		var err error
		if f, err = config.ParseFormat(name); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	var buf bytes.Buffer
	if err := h.cfg.Dump(&buf, f); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeText(w, buf.Bytes())
}

func (h *handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	var (
		db  *kvconf.DBOptions
		cfs []kvconf.CFOptions
		err error
	)
	switch engine := chi.URLParam(r, "engine"); engine {
	case "kv":
		db, err = h.cfg.RocksDB.BuildOpt()
		cfs = h.cfg.RocksDB.BuildCFOpts()
	case "raft":
		db, err = h.cfg.RaftDB.BuildOpt()
		cfs = h.cfg.RaftDB.BuildCFOpts()
	default:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown engine %q", engine)})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	sum, err := kvconf.Fingerprint(db, cfs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	var buf bytes.Buffer
	if err := kvconf.RenderOptions(&buf, db, cfs); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("X-Options-Fingerprint", fmt.Sprintf("%016x", sum))
	writeText(w, buf.Bytes())
}
