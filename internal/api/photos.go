package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/navpreview/internal/controller"
	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/logger"
)

// maxPhotoBytes bounds a single uploaded photo.
const maxPhotoBytes = 8 << 20

// Photo is an uploaded image held for preview.
type Photo struct {
	ID          string    `json:"id"`
	Slot        string    `json:"slot"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
	data        []byte
}

// PhotoStore keeps the latest photo per slot for a limited time.
type PhotoStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewPhotoStore returns a store whose previews expire after ttl. Expired
// entries are swept on write, so the store starts no goroutines.
func NewPhotoStore(ttl time.Duration) *PhotoStore {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &PhotoStore{cache: cache.New(ttl, 0), ttl: ttl}
}

// Put stores data as the photo for slot, replacing any previous one.
func (p *PhotoStore) Put(slot controller.Slot, name, contentType string, data []byte) Photo {
	p.cache.DeleteExpired()
	photo := Photo{
		ID:          uuid.NewString(),
		Slot:        string(slot),
		Name:        name,
		ContentType: contentType,
		Size:        len(data),
		UploadedAt:  time.Now(),
		data:        data,
	}
	p.cache.Set(string(slot), photo, cache.DefaultExpiration)
	return photo
}

// Get returns the photo for slot if it has not expired.
func (p *PhotoStore) Get(slot controller.Slot) (Photo, bool) {
	v, ok := p.cache.Get(string(slot))
	if !ok {
		return Photo{}, false
	}
	photo, ok := v.(Photo)
	return photo, ok
}

// Delete drops the photo for slot.
func (p *PhotoStore) Delete(slot controller.Slot) {
	p.cache.Delete(string(slot))
}

func (s *Server) parseSlot(ctx echo.Context) (controller.Slot, error) {
	return controller.ParseSlot(ctx.Param("slot"))
}

// UploadPhoto handles POST /photos/:slot with a multipart "file" field.
func (s *Server) UploadPhoto(ctx echo.Context) error {
	slot, err := s.parseSlot(ctx)
	if err != nil {
		return s.HandleError(ctx, err, "Invalid photo slot", http.StatusBadRequest)
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return s.HandleError(ctx, err, "Missing file field", http.StatusBadRequest)
	}
	f, err := fh.Open()
	if err != nil {
		return s.HandleError(ctx, err, "Failed to read upload", http.StatusBadRequest)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
	if err != nil {
		return s.HandleError(ctx, err, "Failed to read upload", http.StatusBadRequest)
	}
	if len(data) > maxPhotoBytes {
		return s.HandleError(ctx, nil, "Photo is too large", http.StatusRequestEntityTooLarge)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		err := errors.Newf("upload is %s, not an image", contentType).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
		return s.HandleError(ctx, err, "Only image files can be selected", http.StatusUnsupportedMediaType)
	}

	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "photo"
	}

	photo := s.photos.Put(slot, name, contentType, data)
	if err := s.ctrl.SelectPhoto(slot, name); err != nil {
		s.photos.Delete(slot)
		return s.HandleError(ctx, err, "Failed to select photo", 0)
	}

	s.log.Info("photo selected",
		logger.String("slot", string(slot)),
		logger.String("name", name),
		logger.Int("size", len(data)))

	return ctx.JSON(http.StatusCreated, map[string]any{
		"photo":      photo,
		"previewUrl": previewURL(slot, photo.ID),
		"state":      s.ctrl.Snapshot().Photos,
	})
}

func previewURL(slot controller.Slot, id string) string {
	return apiPrefix + "/photos/" + string(slot) + "/preview?v=" + id
}

// ClearPhoto handles DELETE /photos/:slot.
func (s *Server) ClearPhoto(ctx echo.Context) error {
	slot, err := s.parseSlot(ctx)
	if err != nil {
		return s.HandleError(ctx, err, "Invalid photo slot", http.StatusBadRequest)
	}
	s.photos.Delete(slot)
	if err := s.ctrl.ClearPhoto(slot); err != nil {
		return s.HandleError(ctx, err, "Failed to clear photo", 0)
	}
	return ctx.JSON(http.StatusOK, s.ctrl.Snapshot().Photos)
}

// PhotoPreview handles GET /photos/:slot/preview.
func (s *Server) PhotoPreview(ctx echo.Context) error {
	slot, err := s.parseSlot(ctx)
	if err != nil {
		return s.HandleError(ctx, err, "Invalid photo slot", http.StatusBadRequest)
	}
	photo, ok := s.photos.Get(slot)
	if !ok {
		return s.HandleError(ctx, nil, "No preview for slot", http.StatusNotFound)
	}
	ctx.Response().Header().Set("Cache-Control", "private, max-age=60")
	return ctx.Blob(http.StatusOK, photo.ContentType, photo.data)
}
