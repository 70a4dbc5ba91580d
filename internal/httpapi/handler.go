package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"checkin/internal/attendance"
	"checkin/internal/queue"
	"checkin/internal/session"
	"checkin/internal/sheet"
)

// Handler serves the check-in API.
type Handler struct {
	svc     *attendance.Service
	store   attendance.Store
	catalog *session.Catalog
	events  queue.Queue // nil disables event fan-out
	metrics *Metrics
}

// New creates a handler. events and metrics may be nil.
func New(svc *attendance.Service, store attendance.Store, catalog *session.Catalog, events queue.Queue, metrics *Metrics) *Handler {
	return &Handler{svc: svc, store: store, catalog: catalog, events: events, metrics: metrics}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		log.Printf("healthz: store ping failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": true})
}

// ---------- Submit ----------

type submitRequest struct {
	Matric     string `json:"matric"`
	Identifier string `json:"identifier"`
	Session    string `json:"session"`
}

// Submit records a check-in for the active session.
func (h *Handler) Submit(c *gin.Context) {
	started := time.Now()
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": attendance.MissingIdentifier, "message": "Invalid request body"})
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = req.Matric
	}

	receipt, err := h.svc.Submit(c.Request.Context(), identifier, req.Session)
	if err != nil {
		var rej *attendance.Rejection
		if !errors.As(err, &rej) {
			rej = &attendance.Rejection{Reason: attendance.WriteFailed, Message: "Unexpected error", Err: err}
		}
		h.metrics.observe(string(rej.Reason), started)
		h.reject(c, rej)
		return
	}
	h.metrics.observe("ok", started)
	h.publish(c.Request.Context(), receipt)

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"message":    receipt.Message(),
		"session":    receipt.Session,
		"identifier": receipt.Identifier,
		"timestamp":  receipt.Timestamp.Format(time.RFC3339Nano),
	})
}

func (h *Handler) reject(c *gin.Context, rej *attendance.Rejection) {
	status := statusFor(rej.Reason)
	if rej.Reason.Fault() {
		log.Printf("checkin: %v", rej)
	}
	body := gin.H{"ok": false, "reason": rej.Reason, "message": rej.Message}
	if rej.Session != "" && rej.Reason == attendance.SessionMismatch {
		body["active_session"] = rej.Session
	}
	c.JSON(status, body)
}

func statusFor(reason attendance.Reason) int {
	switch reason {
	case attendance.MissingIdentifier:
		return http.StatusBadRequest
	case attendance.NoActiveSession, attendance.SessionMismatch, attendance.NotRegistered:
		return http.StatusForbidden
	case attendance.AlreadyRecorded:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// publish fans the recorded check-in out to the worker. Failures never
// change the response: the record is already persisted.
func (h *Handler) publish(ctx context.Context, receipt attendance.Receipt) {
	if h.events == nil {
		return
	}
	msg, err := queue.NewCheckin(attendance.Record{
		ID:         receipt.ID,
		Identifier: receipt.Identifier,
		Session:    receipt.Session,
		Timestamp:  receipt.Timestamp,
	})
	if err == nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		err = h.events.Publish(ctx, msg)
		cancel()
	}
	if err != nil {
		log.Printf("queue publish failed for %s/%s: %v", receipt.Identifier, receipt.Session, err)
	}
	h.metrics.publish(err == nil)
}

// ---------- Read side ----------

// Sessions lists the catalog with the session active right now.
func (h *Handler) Sessions(c *gin.Context) {
	now := h.svc.Now()
	active, ok := h.svc.Active()
	resp := gin.H{"sessions": h.catalog.Sessions(), "active": nil}
	if ok {
		resp["active"] = active.Value
	}
	resp["server_time"] = now.Format(time.RFC3339)
	resp["local_date"], resp["local_time"] = h.svc.LocalClock()
	c.JSON(http.StatusOK, resp)
}

// Counts returns attendance per session for the dashboard. Every catalog
// session is present, zero when nobody has checked in.
func (h *Handler) Counts(c *gin.Context) {
	counts, err := h.store.CountsBySession(c.Request.Context())
	if err != nil {
		log.Printf("counts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attendance"})
		return
	}
	out := make(map[string]int, len(counts))
	for _, s := range h.catalog.Sessions() {
		out[s.Value] = 0
	}
	total := 0
	for s, n := range counts {
		out[s] = n
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"counts": out, "total": total})
}

// ListAttendance returns recorded check-ins as JSON or, with format=csv,
// as a spreadsheet export.
func (h *Handler) ListAttendance(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter := attendance.ListFilter{Limit: limit}
	if name := c.Query("session"); name != "" {
		filter.Session = name
		if s, ok := h.catalog.Lookup(name); ok {
			filter.Session = s.Value
		}
	}
	records, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		log.Printf("list attendance: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attendance"})
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}

	if c.Query("format") == "csv" {
		c.Header("Content-Disposition", `attachment; filename="attendance.csv"`)
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := sheet.Encode(c.Writer, records); err != nil {
			log.Printf("csv export: %v", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
