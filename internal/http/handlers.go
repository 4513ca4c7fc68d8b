package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"categoria/internal/amqp"
	"categoria/internal/core"
	applog "categoria/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	// Check store dependency with a lightweight read
	if s.store != nil {
		if _, err := s.store.ListCategories(ctx, defaultUserID); err != nil {
			checks["store"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	checks["cache"] = map[string]any{
		"predict_entries": s.predictCache.Size(),
		"status":          "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.activeClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

type predictRequest struct {
	Title      string   `json:"title"`
	Categories []string `json:"categories,omitempty"`
}

// handlePredict suggests categories for a record title. Results are cached
// per user and title until the user's model changes or the TTL expires.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID := userIDFrom(r)
	title := sanitizeInput(req.Title)

	candidates := req.Categories
	if len(candidates) == 0 && s.store != nil {
		stored, err := s.store.ListCategories(r.Context(), userID)
		if err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "List categories error",
				applog.FieldError, err, applog.FieldUserID, userID)
			writeError(w, http.StatusInternalServerError, "failed to load categories")
			return
		}
		candidates = stored
	}

	generation := s.generation(userID)
	key := predictKey(userID, title, candidates)
	if entry, found := s.predictCache.Get(key); found && entry.generation == generation {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Prediction cache hit", applog.FieldUserID, userID)
		writeJSON(w, http.StatusOK, entry.result)
		return
	}

	result, err := s.engine.Predict(r.Context(), userID, title, candidates)
	if err != nil {
		s.httpLog.LogError(r.Context(), "Prediction error", err, applog.ComponentHTTP, applog.OpPredict,
			applog.LogFields{applog.FieldUserID: userID})
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}

	s.predictCache.Set(key, predictCacheEntry{generation: generation, result: result})
	writeJSON(w, http.StatusOK, result)
}

type categoryRequest struct {
	Name string `json:"name"`
}

// handleCategories lists or registers category labels.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)

	switch r.Method {
	case http.MethodGet:
		names, err := s.store.ListCategories(r.Context(), userID)
		if err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "List categories error",
				applog.FieldError, err, applog.FieldUserID, userID)
			writeError(w, http.StatusInternalServerError, "failed to list categories")
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": names})
	case http.MethodPost:
		var req categoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		name := sanitizeInput(req.Name)
		if name == "" {
			writeError(w, http.StatusUnprocessableEntity, "category name is required")
			return
		}
		if err := s.store.UpsertCategory(r.Context(), userID, name); err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Upsert category error",
				applog.FieldError, err, applog.FieldUserID, userID, applog.FieldCategory, name)
			writeError(w, http.StatusInternalServerError, "failed to save category")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"name": name})
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCategoryByName removes a category label.
func (s *Server) handleCategoryByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := sanitizeInput(strings.TrimPrefix(r.URL.Path, "/api/categories/"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "category name is required")
		return
	}

	userID := userIDFrom(r)
	if err := s.store.DeleteCategory(r.Context(), userID, name); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete category error",
			applog.FieldError, err, applog.FieldUserID, userID, applog.FieldCategory, name)
		writeError(w, http.StatusInternalServerError, "failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recordRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

// handleRecordByID accepts record upserts and deletions and forwards them to
// the reconcile worker through the broker. Without a broker the change is
// reconciled inline.
func (s *Server) handleRecordByID(w http.ResponseWriter, r *http.Request) {
	recordID := sanitizeInput(strings.TrimPrefix(r.URL.Path, "/api/records/"))
	if recordID == "" || strings.Contains(recordID, "/") {
		writeError(w, http.StatusBadRequest, "record id is required")
		return
	}

	userID := userIDFrom(r)

	var msg *amqp.RecordChangeMessage
	switch r.Method {
	case http.MethodPost, http.MethodPut:
		var req recordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		msg = amqp.NewRecordChangeMessage(userID, recordID, sanitizeInput(req.Title), sanitizeInput(req.Category))
	case http.MethodDelete:
		msg = amqp.NewRecordDeleteMessage(userID, recordID)
	default:
		w.Header().Set("Allow", "POST, PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.bumpGeneration(userID)

	if s.publisher != nil {
		if err := s.publisher.PublishRecordChange(r.Context(), msg); err == nil {
			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":    "queued",
				"record_id": recordID,
			})
			return
		} else {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Publish failed, reconciling inline",
				applog.FieldError, err,
				applog.FieldUserID, userID,
				applog.FieldRecordID, recordID)
		}
	}

	var next *core.Record
	if !msg.Deleted {
		next = &core.Record{Title: msg.Title, Category: msg.Category}
	}
	if err := s.reconciler.Reconcile(r.Context(), userID, recordID, next); err != nil {
		s.httpLog.LogError(r.Context(), "Reconcile error", err, applog.ComponentHTTP, applog.OpReconcile,
			applog.LogFields{applog.FieldUserID: userID, applog.FieldRecordID: recordID})
		writeError(w, http.StatusInternalServerError, "failed to apply record change")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "applied",
		"record_id": recordID,
	})
}

func (s *Server) generation(userID string) int64 {
	if v, ok := s.generations.Load(userID); ok {
		return atomic.LoadInt64(v.(*int64))
	}
	return 0
}

func (s *Server) bumpGeneration(userID string) {
	v, _ := s.generations.LoadOrStore(userID, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func predictKey(userID, title string, candidates []string) string {
	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)
	return userID + "\x00" + strings.ToLower(strings.TrimSpace(title)) + "\x00" + strings.Join(sorted, "\x00")
}
