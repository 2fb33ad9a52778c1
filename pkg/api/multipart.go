package api

import (
	"net/http"
	"strconv"

	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/service"
)

// multipartInitRequest is the optional JSON body for multipart initiation;
// query parameters take precedence.
type multipartInitRequest struct {
	Size     int64 `json:"size"`
	PartSize int64 `json:"part_size"`
}

func (h *ObjectHandler) initMultipart(w http.ResponseWriter, r *http.Request, bucket *models.Bucket, key string) {
	query := r.URL.Query()

	var req multipartInitRequest
	if query.Get("size") == "" || query.Get("partSize") == "" {
		if !decodeJSONBody(w, r, &req) {
			return
		}
	}
	if v := query.Get("size"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			BadRequest(w, "invalid size")
			return
		}
		req.Size = size
	}
	if v := query.Get("partSize"); v != "" {
		partSize, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			BadRequest(w, "invalid partSize")
			return
		}
		req.PartSize = partSize
	}

	upload, err := h.svc.InitMultipart(r.Context(), bucket, key, req.Size, req.PartSize)
	if err != nil {
		WriteMappedError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, SerializeMultipart(upload))
}

func (h *ObjectHandler) uploadPart(w http.ResponseWriter, r *http.Request, bucket *models.Bucket, key, uploadID string) {
	partStr := r.URL.Query().Get("partNumber")
	if partStr == "" {
		WriteMappedError(w, models.ErrMultipartInvalidPartNumber)
		return
	}
	partNumber, err := strconv.Atoi(partStr)
	if err != nil || partNumber < 0 {
		WriteMappedError(w, models.ErrMultipartInvalidPartNumber)
		return
	}

	upload, err := h.svc.GetMultipart(r.Context(), bucket.ID, key, uploadID, true)
	if err != nil {
		WriteMappedError(w, err)
		return
	}

	if r.ContentLength < 0 {
		BadRequest(w, "Content-Length is required")
		return
	}

	part, err := h.svc.UploadPart(r.Context(), upload, partNumber, r.Body, r.ContentLength)
	if err != nil {
		WriteMappedError(w, err)
		return
	}

	w.Header().Set("ETag", `"`+part.Checksum+`"`)
	WriteJSON(w, http.StatusOK, SerializePart(part))
}

func (h *ObjectHandler) listParts(w http.ResponseWriter, r *http.Request, bucket *models.Bucket, key, uploadID string) {
	upload, err := h.svc.GetMultipart(r.Context(), bucket.ID, key, uploadID, true)
	if err != nil {
		WriteMappedError(w, err)
		return
	}
	if !authorize(w, r, h.authz, service.ActionMultipartRead, upload, true) {
		return
	}

	parts, err := h.svc.ListParts(r.Context(), upload, 1000)
	if err != nil {
		WriteMappedError(w, err)
		return
	}

	out := make([]PartJSON, 0, len(parts))
	for _, part := range parts {
		out = append(out, SerializePart(part))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *ObjectHandler) completeMultipart(w http.ResponseWriter, r *http.Request, bucket *models.Bucket, key, uploadID string) {
	upload, err := h.svc.GetMultipart(r.Context(), bucket.ID, key, uploadID, true)
	if err != nil {
		WriteMappedError(w, err)
		return
	}

	completed, err := h.svc.CompleteMultipart(r.Context(), upload)
	if err != nil {
		WriteMappedError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, SerializeMultipart(completed))
}

func (h *ObjectHandler) abortMultipart(w http.ResponseWriter, r *http.Request, bucket *models.Bucket, key, uploadID string) {
	upload, err := h.svc.GetMultipart(r.Context(), bucket.ID, key, uploadID, false)
	if err != nil {
		WriteMappedError(w, err)
		return
	}
	if !authorize(w, r, h.authz, service.ActionMultipartDelete, upload, false) {
		return
	}

	if err := h.svc.AbortMultipart(r.Context(), upload); err != nil {
		WriteMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
