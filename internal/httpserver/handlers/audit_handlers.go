package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"authgate/internal/apperr"
	"authgate/internal/audit"
)

func auditFilters(r *http.Request) audit.Filters {
	q := r.URL.Query()
	f := audit.Filters{
		UserID:   q.Get("userId"),
		Action:   q.Get("action"),
		Resource: q.Get("resource"),
		Status:   q.Get("status"),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = t
		}
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	return f
}

func ListAuditLogs(rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, total, err := rec.List(r.Context(), auditFilters(r))
		if err != nil {
			lg.Errorw("audit query failed", "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		respondData(w, http.StatusOK, map[string]any{"logs": logs, "total": total})
	}
}

func AuditStatistics(rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := rec.GetStatistics(r.Context(), auditFilters(r))
		if err != nil {
			lg.Errorw("audit statistics failed", "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		respondData(w, http.StatusOK, stats)
	}
}
