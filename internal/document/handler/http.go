// Package handler exposes merchant-scoped document metadata endpoints.
package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"merchant-docs/backend/internal/audit"
	"merchant-docs/backend/internal/authz"
	"merchant-docs/backend/internal/document/domain"
	"merchant-docs/backend/internal/document/presign"
	"merchant-docs/backend/internal/document/repository"
	"merchant-docs/backend/internal/server/httpjson"
)

// presignTTL is how long issued upload/download URLs stay valid.
const presignTTL = 15 * time.Minute

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler serves the document metadata endpoints.
type Handler struct {
	docs      repository.Repository
	presigner presign.Presigner
	auditor   audit.AuditLogger
}

// New creates the document handler. auditor may be nil.
func New(docs repository.Repository, presigner presign.Presigner, auditor audit.AuditLogger) *Handler {
	return &Handler{docs: docs, presigner: presigner, auditor: auditor}
}

// Register installs the document routes on mux behind requireAuth.
func (h *Handler) Register(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.Handle("POST /merchants/{merchantID}/documents", requireAuth(http.HandlerFunc(h.handleRequestUpload)))
	mux.Handle("GET /merchants/{merchantID}/documents", requireAuth(http.HandlerFunc(h.handleList)))
	mux.Handle("GET /merchants/{merchantID}/documents/{id}", requireAuth(http.HandlerFunc(h.handleGet)))
	mux.Handle("POST /merchants/{merchantID}/documents/{id}/confirm", requireAuth(http.HandlerFunc(h.handleConfirm)))
	mux.Handle("DELETE /merchants/{merchantID}/documents/{id}", requireAuth(http.HandlerFunc(h.handleDelete)))
}

type documentPayload struct {
	ID          string    `json:"id"`
	MerchantID  string    `json:"merchant_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	Status      string    `json:"status"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func toDocumentPayload(d *domain.Document) documentPayload {
	return documentPayload{
		ID:          d.ID,
		MerchantID:  d.MerchantID,
		Name:        d.Name,
		Category:    d.Category,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		Status:      string(d.Status),
		UploadedBy:  d.UploadedBy,
		CreatedAt:   d.CreatedAt,
	}
}

func (h *Handler) handleRequestUpload(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchantID")
	claims, ok := authz.GuardRequest(w, r, merchantID, authz.PermDocUpload)
	if !ok {
		return
	}
	var req struct {
		Name        string `json:"name"`
		Category    string `json:"category"`
		ContentType string `json:"content_type"`
		SizeBytes   int64  `json:"size_bytes"`
	}
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		httpjson.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          uuid.New().String(),
		MerchantID:  merchantID,
		Name:        req.Name,
		Category:    req.Category,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		Status:      domain.StatusPending,
		UploadedBy:  claims.UserID(),
		CreatedAt:   now,
	}
	doc.ObjectKey = merchantID + "/" + doc.ID

	uploadURL, err := h.presigner.PresignUpload(doc.ObjectKey, doc.ContentType, now.Add(presignTTL))
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.docs.Create(r.Context(), doc); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logEvent(r, merchantID, claims.UserID(), "document_upload_requested", "document:"+doc.ID)
	httpjson.Write(w, http.StatusCreated, map[string]any{
		"document":   toDocumentPayload(doc),
		"upload_url": uploadURL,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchantID")
	if _, ok := authz.GuardRequest(w, r, merchantID, authz.PermDocView); !ok {
		return
	}
	limit, offset := httpjson.Pagination(r, defaultPageSize, maxPageSize)
	docs, err := h.docs.ListByMerchant(r.Context(), merchantID, limit, offset)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]documentPayload, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentPayload(d))
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"documents": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchantID")
	if _, ok := authz.GuardRequest(w, r, merchantID, authz.PermDocView); !ok {
		return
	}
	doc, ok := h.scopedDocument(w, r, merchantID)
	if !ok {
		return
	}
	resp := map[string]any{"document": toDocumentPayload(doc)}
	if doc.Status == domain.StatusUploaded {
		downloadURL, err := h.presigner.PresignDownload(doc.ObjectKey, time.Now().UTC().Add(presignTTL))
		if err == nil {
			resp["download_url"] = downloadURL
		}
	}
	httpjson.Write(w, http.StatusOK, resp)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchantID")
	claims, ok := authz.GuardRequest(w, r, merchantID, authz.PermDocUpload)
	if !ok {
		return
	}
	doc, ok := h.scopedDocument(w, r, merchantID)
	if !ok {
		return
	}
	if err := h.docs.SetStatus(r.Context(), doc.ID, domain.StatusUploaded); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logEvent(r, merchantID, claims.UserID(), "document_upload_confirmed", "document:"+doc.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchantID")
	claims, ok := authz.GuardRequest(w, r, merchantID, authz.PermDocDelete)
	if !ok {
		return
	}
	doc, ok := h.scopedDocument(w, r, merchantID)
	if !ok {
		return
	}
	if err := h.docs.Delete(r.Context(), doc.ID); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logEvent(r, merchantID, claims.UserID(), "document_deleted", "document:"+doc.ID)
	w.WriteHeader(http.StatusNoContent)
}

// scopedDocument loads the document from the path and hides documents that
// belong to another merchant behind a 404.
func (h *Handler) scopedDocument(w http.ResponseWriter, r *http.Request, merchantID string) (*domain.Document, bool) {
	doc, err := h.docs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if doc == nil || doc.MerchantID != merchantID {
		httpjson.Error(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	return doc, true
}

func (h *Handler) logEvent(r *http.Request, merchantID, userID, action, resource string) {
	if h.auditor == nil {
		return
	}
	h.auditor.LogEvent(r.Context(), merchantID, userID, action, resource, "")
}

