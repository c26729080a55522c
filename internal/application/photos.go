package application

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// photoUploader stores photos best-effort. A failed upload is logged and
// yields an empty URL so the calling operation can continue without a photo.
type photoUploader struct {
	store  PhotoStore
	logger *logging.Logger
}

// upload stores data under dir/name plus the extension of its content type.
// Keys are derived from the subject of the photo, so a retried request
// overwrites its earlier upload instead of leaving an orphan.
func (u photoUploader) upload(ctx context.Context, dir, name string, data []byte, contentType string) string {
	if u.store == nil || len(data) == 0 {
		return ""
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	key := path.Join(dir, name+photoExtensions[strings.ToLower(contentType)])

	url, err := u.store.Upload(ctx, key, data, contentType)
	if err != nil {
		u.logger.WithContext(ctx).WithError(err).Warn("Photo upload failed, continuing without photo",
			"key", key,
			"bytes", len(data),
		)
		return ""
	}
	return url
}

// actorFrom returns the user id the request was attributed to, if any
func actorFrom(ctx context.Context) string {
	userID, _ := ctx.Value(logging.UserIDKey).(string)
	return userID
}
