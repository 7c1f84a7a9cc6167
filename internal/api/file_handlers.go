package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"

	"github.com/ewbrowntech/atto-host/internal/cleanup"
	"github.com/ewbrowntech/atto-host/internal/database"
)

// Only media uploads are accepted. The check is on the client-supplied
// filename extension, not on content, matching the documented policy.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".mp3":  true,
	".mp4":  true,
}

// Stored blob names use a deterministic extension per MIME type; the stdlib
// mime table can return several candidates in unstable order.
var extensionByMimeType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"audio/mpeg": ".mp3",
	"video/mp4":  ".mp4",
}

var fileIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

func blobExtension(mimeType, originalName string) string {
	if ext, ok := extensionByMimeType[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return strings.ToLower(filepath.Ext(originalName))
}

func blobName(id, mimeType, originalName string) string {
	return id + blobExtension(mimeType, originalName)
}

func (s *Server) generateUniqueFileID(ctx context.Context) (string, error) {
	maxRetries := 10

	generateID, err := nanoid.CustomASCII("0123456789abcdef", 24)
	if err != nil {
		return "", fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	for i := 0; i < maxRetries; i++ {
		id := generateID()
		exists, err := s.store.FileExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check for file existence: %w", err)
		}
		if !exists {
			return id, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}

func (s *Server) publishEvent(eventType string, payload interface{}) {
	eventMsg := map[string]interface{}{"event_type": eventType, "payload": payload}
	eventBytes, err := json.Marshal(eventMsg)
	if err != nil {
		return
	}
	s.wsHub.PublishEvent(eventBytes)
}

type UploadResponse struct {
	Filename string `json:"filename" example:"photo.png"`
	MimeType string `json:"mimetype" example:"image/png"`
	Size     int64  `json:"size" example:"102400"`
	Status   string `json:"status" example:"success"`
	URL      string `json:"url" example:"65b9a2f0c1d2e3f4a5b6c7d8"`
}

// @Summary      Upload a media file
// @Description  Stores an uploaded media file (jpg, jpeg, png, gif, mp3, mp4) and returns its generated identifier. Automated accounts must present their most recently issued API key.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        filename  formData  file  true  "Media file to upload"
// @Success      200       {object}  UploadResponse
// @Failure      400       {string}  string "Bad Request"
// @Failure      401       {string}  string "Unauthorized"
// @Failure      403       {string}  string "You may only upload media"
// @Failure      500       {string}  string "Internal Server Error"
// @Router       /files/upload [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<30)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing multipart form", http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("filename")
	if err != nil {
		http.Error(w, "Error retrieving the file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !allowedExtensions[strings.ToLower(filepath.Ext(handler.Filename))] {
		http.Error(w, "You may only upload media", http.StatusForbidden)
		return
	}

	mimeType := handler.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	stagedName, sizeBytes, err := s.storage.Stage(file)
	if err != nil {
		log.Printf("ERROR: Failed to stage upload %s: %v", handler.Filename, err)
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	fileID, err := s.generateUniqueFileID(r.Context())
	if err != nil {
		s.storage.Delete(stagedName)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	asset, err := s.store.CreateFile(r.Context(), database.CreateFileParams{
		ID:         fileID,
		Filename:   handler.Filename,
		SizeBytes:  sizeBytes,
		MimeType:   mimeType,
		UploaderID: user.ID,
	})
	if err != nil {
		s.storage.Delete(stagedName)
		log.Printf("ERROR: Failed to create file record for %s: %v", handler.Filename, err)
		http.Error(w, "Failed to save file metadata", http.StatusInternalServerError)
		return
	}

	// The record and its blob must exist together. If the rename fails the
	// record is rolled back so no metadata ever points at a missing blob.
	// The rollback runs on an uncancelable context: a client disconnect at
	// this point must not leave the dangling record behind.
	if err := s.storage.Promote(stagedName, blobName(asset.ID, asset.MimeType, asset.Filename)); err != nil {
		log.Printf("ERROR: Failed to promote staged upload %s: %v", handler.Filename, err)
		if delErr := s.store.DeleteFileByID(context.WithoutCancel(r.Context()), asset.ID); delErr != nil {
			log.Printf("ERROR: Failed to roll back metadata for %s: %v", asset.ID, delErr)
		}
		s.storage.Delete(stagedName)
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	if err := s.store.LogEvent(r.Context(), user.ID, "file_uploaded", asset); err != nil {
		log.Printf("WARN: Failed to journal upload of %s: %v", asset.ID, err)
	}
	s.publishEvent("file_uploaded", asset)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UploadResponse{
		Filename: asset.Filename,
		MimeType: asset.MimeType,
		Size:     asset.SizeBytes,
		Status:   "success",
		URL:      asset.ID,
	})
}

// @Summary      Download a file
// @Description  Streams a stored file as an attachment named after its original upload name. Deliberately unauthenticated: anyone holding an identifier may download. Flagged for product review.
// @Tags         files
// @Produce      octet-stream
// @Param        fileId  path      string  true  "File identifier (24 hex characters)"
// @Success      200     {file}    file
// @Failure      400     {object}  MessageResponse "Invalid file ID"
// @Failure      404     {string}  string "File not found"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /files/{fileId}/download [get]
func (s *Server) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	if !fileIDPattern.MatchString(fileID) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(MessageResponse{Message: "Invalid file ID"})
		return
	}

	asset, err := s.store.GetFileByID(r.Context(), fileID)
	if err != nil {
		http.Error(w, "Failed to retrieve file metadata", http.StatusInternalServerError)
		return
	}
	if asset == nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	fileStream, err := s.storage.Open(blobName(asset.ID, asset.MimeType, asset.Filename))
	if err != nil {
		log.Printf("ERROR: Blob missing for file record %s: %v", asset.ID, err)
		http.Error(w, "File not found on storage", http.StatusInternalServerError)
		return
	}
	defer fileStream.Close()

	w.Header().Set("Content-Disposition", "attachment; filename=\""+asset.Filename+"\"")
	if asset.MimeType != "" {
		w.Header().Set("Content-Type", asset.MimeType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", asset.SizeBytes))

	io.Copy(w, fileStream)
}

type MessageResponse struct {
	Message string `json:"message"`
}

// @Summary      List stored files
// @Description  Retrieves the metadata of every stored file.
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.FileAsset
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /files [get]
func (s *Server) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles(r.Context())
	if err != nil {
		http.Error(w, "Failed to list files", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}

type PurgeResponse struct {
	DeletedCount int64  `json:"deleted_count" example:"3"`
	Status       string `json:"status" example:"storage cleared"`
}

// @Summary      Delete all files
// @Description  Permanently deletes every file record and every stored blob. Idempotent: purging empty storage succeeds and reports zero.
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PurgeResponse
// @Failure      401  {string}  string "Unauthorized"
// @Failure      403  {string}  string "Forbidden"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /files [delete]
func (s *Server) PurgeFilesHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var deletedIDs []string
	var deletedCount int64

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		var err error
		deletedIDs, deletedCount, err = q.DeleteAllFiles(r.Context())
		if err != nil {
			return err
		}

		return q.LogEvent(r.Context(), user.ID, "files_purged", map[string]interface{}{
			"deleted_count": deletedCount,
		})
	})

	if txErr != nil {
		log.Printf("ERROR: Failed to purge file records: %v", txErr)
		http.Error(w, "Failed to purge files", http.StatusInternalServerError)
		return
	}

	// An upload racing the purge can leave a blob behind; the cleanup
	// operation reclaims it later.
	if _, err := s.storage.Purge(); err != nil {
		log.Printf("WARN: Failed to clear storage directory during purge: %v", err)
	}

	s.publishEvent("files_purged", map[string]interface{}{"deleted_count": deletedCount, "deleted_ids": deletedIDs})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PurgeResponse{DeletedCount: deletedCount, Status: "storage cleared"})
}

type CleanupResponse struct {
	Removed []string `json:"removed"`
}

// @Summary      Remove orphaned blobs
// @Description  Deletes every blob in the storage directory that has no metadata record, reconciling storage after a purge raced an upload.
// @Tags         maintenance
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  CleanupResponse
// @Failure      401  {string}  string "Unauthorized"
// @Failure      403  {string}  string "Forbidden"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /maintenance/cleanup [post]
func (s *Server) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	removed, err := cleanup.RemoveOrphanedBlobs(r.Context(), s.store, s.storage)
	if err != nil {
		log.Printf("ERROR: Orphan cleanup failed: %v", err)
		http.Error(w, "Failed to clean up storage", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CleanupResponse{Removed: removed})
}
