package api

import (
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/service"
)

// ObjectHandler serves the object and multipart endpoints under
// /files/{bucket}/{key}. The multipart operations are dispatched here too
// because they share the URL space (?uploads, ?uploadId=...).
type ObjectHandler struct {
	svc   *service.Service
	authz service.Authorizer
}

// NewObjectHandler creates an ObjectHandler.
func NewObjectHandler(svc *service.Service, authz service.Authorizer) *ObjectHandler {
	return &ObjectHandler{svc: svc, authz: authz}
}

// objectKey extracts the wildcard key path parameter.
func objectKey(r *http.Request) string {
	return chi.URLParam(r, "*")
}

// getObjectOrError resolves (bucket, key, versionId) and runs the read
// permission checks: object-read hidden, plus object-read-version visible
// for non-head versions.
func (h *ObjectHandler) getObjectOrError(w http.ResponseWriter, r *http.Request, bucket *models.Bucket, key, versionID string) (*models.ObjectVersion, bool) {
	version, err := h.svc.GetObject(r.Context(), bucket.ID, key, versionID)
	if err != nil {
		WriteMappedError(w, err)
		return nil, false
	}

	if !authorize(w, r, h.authz, service.ActionObjectRead, version, true) {
		return nil, false
	}
	if !version.IsHead && !authorize(w, r, h.authz, service.ActionObjectReadVersion, version, false) {
		return nil, false
	}
	return version, true
}

// Get handles GET /files/{bucket}/{key}: object download, or the part
// listing when ?uploadId is given.
func (h *ObjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	bucket, ok := getBucketOrError(w, r, h.svc)
	if !ok {
		return
	}
	key := objectKey(r)
	query := r.URL.Query()

	if uploadID := query.Get("uploadId"); uploadID != "" {
		h.listParts(w, r, bucket, key, uploadID)
		return
	}

	version, ok := h.getObjectOrError(w, r, bucket, key, query.Get("versionId"))
	if !ok {
		return
	}
	h.send(w, r, version)
}

// Head handles HEAD /files/{bucket}/{key}: download headers without a body.
func (h *ObjectHandler) Head(w http.ResponseWriter, r *http.Request) {
	bucket, ok := getBucketOrError(w, r, h.svc)
	if !ok {
		return
	}
	version, ok := h.getObjectOrError(w, r, bucket, objectKey(r), r.URL.Query().Get("versionId"))
	if !ok {
		return
	}
	h.send(w, r, version)
}

func (h *ObjectHandler) send(w http.ResponseWriter, r *http.Request, version *models.ObjectVersion) {
	err := SendObject(w, r, version,
		func() (io.ReadCloser, error) {
			return h.svc.OpenObject(r.Context(), version)
		},
		SendFileOptions{
			Filename:     path.Base(version.Key),
			Mimetype:     version.Mimetype,
			Restricted:   true,
			AsAttachment: r.URL.Query().Has("download"),
		})
	if err != nil {
		// Headers may already be out; nothing safe to write beyond logging.
		return
	}
	if r.Method == http.MethodGet {
		h.svc.NotifyDownloaded(version)
	}
}

// Put handles PUT /files/{bucket}/{key}: single-shot upload, or a part
// upload when ?uploadId is given.
func (h *ObjectHandler) Put(w http.ResponseWriter, r *http.Request) {
	bucket, ok := getBucketOrError(w, r, h.svc)
	if !ok {
		return
	}
	key := objectKey(r)
	query := r.URL.Query()

	if !authorize(w, r, h.authz, service.ActionBucketUpdate, bucket, false) {
		return
	}

	if uploadID := query.Get("uploadId"); uploadID != "" {
		h.uploadPart(w, r, bucket, key, uploadID)
		return
	}

	if r.ContentLength < 0 {
		BadRequest(w, "Content-Length is required")
		return
	}

	version, err := h.svc.PutObject(r.Context(), bucket, key, r.Body,
		r.ContentLength, r.Header.Get("Content-MD5"), r.Header.Get("Content-Type"))
	if err != nil {
		WriteMappedError(w, err)
		return
	}

	tags, err := h.svc.Store().GetVersionTags(r.Context(), version.VersionID)
	if err != nil {
		WriteMappedError(w, err)
		return
	}
	w.Header().Set("ETag", `"`+version.File.Checksum+`"`)
	WriteJSON(w, http.StatusOK, SerializeObjectVersion(version, tags))
}

// Post handles POST /files/{bucket}/{key}: multipart initiation with
// ?uploads, completion with ?uploadId.
func (h *ObjectHandler) Post(w http.ResponseWriter, r *http.Request) {
	bucket, ok := getBucketOrError(w, r, h.svc)
	if !ok {
		return
	}
	key := objectKey(r)
	query := r.URL.Query()

	if !authorize(w, r, h.authz, service.ActionBucketUpdate, bucket, false) {
		return
	}

	if query.Has("uploads") {
		h.initMultipart(w, r, bucket, key)
		return
	}
	if uploadID := query.Get("uploadId"); uploadID != "" {
		h.completeMultipart(w, r, bucket, key, uploadID)
		return
	}
	Forbidden(w, "unsupported operation")
}

// Delete handles DELETE /files/{bucket}/{key}: delete marker creation,
// version hard-delete with ?versionId, multipart abort with ?uploadId.
func (h *ObjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bucket, ok := getBucketOrError(w, r, h.svc)
	if !ok {
		return
	}
	key := objectKey(r)
	query := r.URL.Query()

	if uploadID := query.Get("uploadId"); uploadID != "" {
		h.abortMultipart(w, r, bucket, key, uploadID)
		return
	}

	versionID := query.Get("versionId")
	version, ok := h.getObjectOrError(w, r, bucket, key, versionID)
	if !ok {
		return
	}
	if !authorize(w, r, h.authz, service.ActionObjectDelete, version, false) {
		return
	}

	if versionID == "" {
		if _, err := h.svc.DeleteObject(r.Context(), bucket, key); err != nil {
			WriteMappedError(w, err)
			return
		}
	} else {
		if !authorize(w, r, h.authz, service.ActionObjectDeleteVersion, version, false) {
			return
		}
		if err := h.svc.DeleteVersion(r.Context(), bucket, key, versionID); err != nil {
			WriteMappedError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
