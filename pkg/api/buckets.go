package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/service"
)

// BucketHandler serves the bucket endpoints under /files.
type BucketHandler struct {
	svc   *service.Service
	authz service.Authorizer
}

// NewBucketHandler creates a BucketHandler.
func NewBucketHandler(svc *service.Service, authz service.Authorizer) *BucketHandler {
	return &BucketHandler{svc: svc, authz: authz}
}

// authorize consults the oracle and writes the deny response. With hidden
// set a denial reads as 404 to hide the target's existence; otherwise it is
// 401 for anonymous callers and 403 for authenticated ones.
func authorize(w http.ResponseWriter, r *http.Request, authz service.Authorizer, action service.Action, target any, hidden bool) bool {
	principal := PrincipalFrom(r.Context())
	if err := authz.Authorize(r.Context(), principal, action, target); err != nil {
		if hidden {
			NotFound(w, "not found")
		} else if principal.Anonymous() {
			Unauthorized(w, "authentication required")
		} else {
			Forbidden(w, "you do not have permission for this action")
		}
		return false
	}
	return true
}

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is
// written automatically). An empty body decodes to the zero value.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// getBucketOrError resolves the bucket path parameter, writing 404 on a
// missing or deleted bucket.
func getBucketOrError(w http.ResponseWriter, r *http.Request, svc *service.Service) (*models.Bucket, bool) {
	bucket, err := svc.GetBucket(r.Context(), chi.URLParam(r, "bucketID"))
	if err != nil {
		WriteMappedError(w, err)
		return nil, false
	}
	return bucket, true
}

// CreateBucketRequest is the request body for POST /files.
type CreateBucketRequest struct {
	LocationName string `json:"location_name,omitempty"`
	StorageClass string `json:"storage_class,omitempty"`
}

// Create handles POST /files.
func (h *BucketHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, h.authz, service.ActionLocationUpdate, nil, false) {
		return
	}

	var req CreateBucketRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	bucket, err := h.svc.CreateBucket(r.Context(), req.LocationName, req.StorageClass)
	if err != nil {
		WriteMappedError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, SerializeBucket(bucket))
}

// Head handles HEAD /files/{bucket}.
func (h *BucketHandler) Head(w http.ResponseWriter, r *http.Request) {
	bucket, ok := getBucketOrError(w, r, h.svc)
	if !ok {
		return
	}
	if !authorize(w, r, h.authz, service.ActionBucketRead, bucket, true) {
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Get handles GET /files/{bucket}: object listing by default, all versions
// with ?versions, active multipart uploads with ?uploads.
func (h *BucketHandler) Get(w http.ResponseWriter, r *http.Request) {
	bucket, ok := getBucketOrError(w, r, h.svc)
	if !ok {
		return
	}

	query := r.URL.Query()

	if query.Has("uploads") {
		h.listUploads(w, r, bucket)
		return
	}
	h.listObjects(w, r, bucket, query.Has("versions"))
}

func (h *BucketHandler) listUploads(w http.ResponseWriter, r *http.Request, bucket *models.Bucket) {
	if !authorize(w, r, h.authz, service.ActionBucketListMultiparts, bucket, true) {
		return
	}

	uploads, err := h.svc.ListMultiparts(r.Context(), bucket.ID, 1000)
	if err != nil {
		WriteMappedError(w, err)
		return
	}

	out := make([]MultipartJSON, 0, len(uploads))
	for _, upload := range uploads {
		out = append(out, SerializeMultipart(upload))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *BucketHandler) listObjects(w http.ResponseWriter, r *http.Request, bucket *models.Bucket, versions bool) {
	if !authorize(w, r, h.authz, service.ActionBucketRead, bucket, true) {
		return
	}
	if versions && !authorize(w, r, h.authz, service.ActionBucketReadVersions, bucket, false) {
		return
	}

	objects, err := h.svc.ListObjects(r.Context(), bucket.ID, versions, 1000)
	if err != nil {
		WriteMappedError(w, err)
		return
	}

	out := make([]ObjectVersionJSON, 0, len(objects))
	for _, version := range objects {
		tags, err := h.svc.Store().GetVersionTags(r.Context(), version.VersionID)
		if err != nil {
			WriteMappedError(w, err)
			return
		}
		out = append(out, SerializeObjectVersion(version, tags))
	}
	WriteJSON(w, http.StatusOK, out)
}

// Update handles PUT /files/{bucket}. The body carries any of quota_size,
// max_file_size, and locked; explicit nulls clear the nullable limits.
func (h *BucketHandler) Update(w http.ResponseWriter, r *http.Request) {
	bucket, ok := getBucketOrError(w, r, h.svc)
	if !ok {
		return
	}
	if !authorize(w, r, h.authz, service.ActionBucketUpdate, bucket, false) {
		return
	}

	var raw map[string]json.RawMessage
	if !decodeJSONBody(w, r, &raw) {
		return
	}

	var quota, maxFileSize **int64
	var locked *bool

	if msg, ok := raw["quota_size"]; ok {
		var v *int64
		if err := json.Unmarshal(msg, &v); err != nil {
			BadRequest(w, "invalid quota_size")
			return
		}
		quota = &v
	}
	if msg, ok := raw["max_file_size"]; ok {
		var v *int64
		if err := json.Unmarshal(msg, &v); err != nil {
			BadRequest(w, "invalid max_file_size")
			return
		}
		maxFileSize = &v
	}
	if msg, ok := raw["locked"]; ok {
		var v bool
		if err := json.Unmarshal(msg, &v); err != nil {
			BadRequest(w, "invalid locked")
			return
		}
		locked = &v
	}

	updated, err := h.svc.UpdateBucket(r.Context(), bucket.ID, quota, maxFileSize, locked)
	if err != nil {
		WriteMappedError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, SerializeBucket(updated))
}

// Post handles POST /files/{bucket}?snapshot: bucket snapshot creation.
func (h *BucketHandler) Post(w http.ResponseWriter, r *http.Request) {
	bucket, ok := getBucketOrError(w, r, h.svc)
	if !ok {
		return
	}
	if !r.URL.Query().Has("snapshot") {
		Forbidden(w, "unsupported operation")
		return
	}
	if !authorize(w, r, h.authz, service.ActionBucketUpdate, bucket, false) {
		return
	}

	lock := r.URL.Query().Get("lock") == "true"
	snapshot, err := h.svc.SnapshotBucket(r.Context(), bucket.ID, lock)
	if err != nil {
		WriteMappedError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, SerializeBucket(snapshot))
}

// Delete handles DELETE /files/{bucket}: soft delete.
func (h *BucketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bucket, ok := getBucketOrError(w, r, h.svc)
	if !ok {
		return
	}
	if !authorize(w, r, h.authz, service.ActionBucketUpdate, bucket, false) {
		return
	}

	if err := h.svc.DeleteBucket(r.Context(), bucket.ID); err != nil {
		WriteMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
