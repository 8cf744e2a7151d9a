package media

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/uuid"
)

const thumbPrefix = "thumb_"

// NewObjectName returns "<unixMillis>_<uuid>", the base name of a new upload.
func NewObjectName(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "_" + uuid.New()
}

// OriginalPath returns "{owner}/{name}.jpg".
func OriginalPath(ownerID, name string) string {
	return ownerID + "/" + name + ".jpg"
}

// ThumbnailPathOf derives the thumbnail path of an original by prefixing
// its filename segment. It is a pure function and never returns p itself
// for a non-empty p.
func ThumbnailPathOf(p string) string {
	if p == "" {
		return ""
	}
	dir, file := path.Split(p)
	return dir + thumbPrefix + file
}

// IsThumbnailPath reports whether p names a thumbnail.
func IsThumbnailPath(p string) bool {
	return strings.HasPrefix(path.Base(p), thumbPrefix)
}

// isExternal reports whether p is already a URL rather than a storage path.
func isExternal(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") || strings.HasPrefix(p, "data:")
}
