package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"voice-memories-go/internal/actionable"
	"voice-memories-go/internal/aggregator"
	"voice-memories-go/internal/events"
	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/memory"
	"voice-memories-go/internal/repository"
	"voice-memories-go/internal/types"
)

type memoryLister interface {
	All(ctx context.Context) ([]*types.Artifact, error)
}

type server struct {
	memories  *memory.Service
	all       memoryLister
	events    events.Subscriber
	log       *logger.Logger
	maxUpload int64
	keepalive time.Duration
	// done ends open event streams so shutdown is not held up by them.
	done      <-chan struct{}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /upload", s.upload)
	mux.HandleFunc("POST /process/{id}", s.trigger)
	mux.HandleFunc("GET /memories", s.list)
	mux.HandleFunc("GET /memories/{id}", s.get)
	mux.HandleFunc("DELETE /memories/{id}", s.delete)
	mux.HandleFunc("GET /insights", s.insights)
	mux.HandleFunc("GET /events/memories", s.stream)
	return mux
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	s.log.WithRequest(r).Debug("health check")
	fmt.Fprint(w, "ok")
}

func (s *server) upload(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "upload")

	if r.ContentLength > s.maxUpload {
		reqLog.WithField("content_length", r.ContentLength).Warn("upload too large")
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			reqLog.Warn("upload too large")
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		reqLog.WithError(err).Warn("missing file field")
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		reqLog.WithError(err).Warn("failed to read upload")
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	res, err := s.memories.Upload(r.Context(), header.Filename, data)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	reqLog.WithField("memory_id", res.Memory.ID).WithField("enqueued", res.Enqueued).Info("upload accepted")
	writeJSON(w, http.StatusOK, res)
}

func (s *server) trigger(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reqLog := s.log.WithRequest(r).WithField("handler", "process").WithField("memory_id", id)

	m, err := s.memories.Trigger(r.Context(), id)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	reqLog.Info("processing triggered")
	writeJSON(w, http.StatusOK, map[string]any{
		"memory":  m,
		"message": "Processing enqueued",
	})
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "list")
	q := r.URL.Query()

	opts := repository.ListOptions{Search: q.Get("search")}
	var err error
	if opts.Page, err = intParam(q.Get("page"), 1); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	if opts.PageSize, err = intParam(q.Get("page_size"), 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page_size")
		return
	}
	if v := q.Get("status"); v != "" {
		if opts.Status, err = types.ParseStatus(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	res, err := s.memories.List(r.Context(), opts)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "get")
	m, err := s.memories.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *server) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reqLog := s.log.WithRequest(r).WithField("handler", "delete").WithField("memory_id", id)
	if err := s.memories.Delete(r.Context(), id); err != nil {
		s.fail(w, reqLog, err)
		return
	}
	reqLog.Info("memory deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) insights(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "insights")
	all, err := s.all.All(r.Context())
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	ins := aggregator.Aggregate(all)
	writeJSON(w, http.StatusOK, map[string]any{
		"insight": ins,
		"card":    actionable.Generate(ins),
	})
}

// stream relays status events as server-sent events until the client leaves.
func (s *server) stream(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "events")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, cancel, err := s.events.Subscribe(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("subscribe failed")
		writeError(w, http.StatusServiceUnavailable, "events unavailable")
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	reqLog.Debug("event stream opened")

	for {
		select {
		case <-r.Context().Done():
			reqLog.Debug("event stream closed")
			return
		case <-s.done:
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				reqLog.WithError(err).Warn("dropping unencodable event")
				continue
			}
			fmt.Fprintf(w, "event: memory-update\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// fail maps domain errors onto HTTP statuses.
func (s *server) fail(w http.ResponseWriter, reqLog *logrus.Entry, err error) {
	status := statusFor(err)
	entry := reqLog.WithError(err).WithField("status", status)
	if status >= 500 {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var (
		storeErr   *types.StoreError
		enqueueErr *types.EnqueueError
	)
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &storeErr), errors.As(err, &enqueueErr):
		return http.StatusBadGateway
	case errors.Is(err, memory.ErrNoAudio), errors.Is(err, memory.ErrEmptyUpload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
