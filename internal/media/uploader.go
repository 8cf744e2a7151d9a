package media

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
)

// UploadResult holds the storage paths of an uploaded pair.
type UploadResult struct {
	OriginalPath  string `json:"original_path"`
	ThumbnailPath string `json:"thumbnail_path"`
}

// DisplayURLs are the resolved URLs of an original and its thumbnail.
type DisplayURLs struct {
	Original  string `json:"original"`
	Thumbnail string `json:"thumbnail"`
}

// Uploader runs the image pipeline against an ObjectStore.
type Uploader struct {
	store ObjectStore
	cache *URLCache
	now   func() time.Time
}

// NewUploader creates an Uploader. cache may be nil, in which case a
// fresh cache with DefaultURLTTL is used.
func NewUploader(store ObjectStore, cache *URLCache) *Uploader {
	if cache == nil {
		cache = NewURLCache(0, DefaultURLTTL)
	}
	return &Uploader{store: store, cache: cache, now: time.Now}
}

// UploadWithDerivative stores src as a new original/thumbnail pair under
// ownerID. Either both objects exist afterwards or neither does.
func (u *Uploader) UploadWithDerivative(ctx context.Context, bucket, ownerID string, src []byte) (UploadResult, error) {
	return u.uploadPair(ctx, bucket, ownerID, NewObjectName(u.now()), src, false)
}

// UploadNamed stores src as a pair under a caller-chosen base name,
// overwriting any previous pair with that name. Retrying with the same
// name therefore never creates a second pair.
func (u *Uploader) UploadNamed(ctx context.Context, bucket, ownerID, name string, src []byte) (UploadResult, error) {
	return u.uploadPair(ctx, bucket, ownerID, name, src, true)
}

func (u *Uploader) uploadPair(ctx context.Context, bucket, ownerID, name string, src []byte, upsert bool) (UploadResult, error) {
	if _, err := LookupBucket(bucket); err != nil {
		return UploadResult{}, err
	}
	if ownerID == "" {
		return UploadResult{}, errors.New(errors.ErrInvalid, "owner id is required")
	}

	img, err := Decode(src)
	if err != nil {
		return UploadResult{}, err
	}

	var original, thumb []byte
	var g errgroup.Group
	g.Go(func() (err error) {
		original, err = Render(img, Original)
		return err
	})
	g.Go(func() (err error) {
		thumb, err = Render(img, Thumbnail)
		return err
	})
	if err := g.Wait(); err != nil {
		return UploadResult{}, err
	}

	res := UploadResult{OriginalPath: OriginalPath(ownerID, name)}
	res.ThumbnailPath = ThumbnailPathOf(res.OriginalPath)

	var origErr, thumbErr error
	var up errgroup.Group
	up.Go(func() error {
		origErr = u.store.Upload(ctx, bucket, res.OriginalPath, original, JPEGContentType, upsert)
		return nil
	})
	up.Go(func() error {
		thumbErr = u.store.Upload(ctx, bucket, res.ThumbnailPath, thumb, JPEGContentType, upsert)
		return nil
	})
	up.Wait()

	switch {
	case origErr == nil && thumbErr == nil:
		logging.Debug("Uploaded image pair", map[string]interface{}{
			"bucket":         bucket,
			"original_path":  res.OriginalPath,
			"original_bytes": len(original),
			"thumb_bytes":    len(thumb),
		})
		return res, nil
	case origErr != nil && thumbErr != nil:
		return UploadResult{}, errors.Wrap(errors.ErrUploadFailed, "upload original", origErr)
	case origErr != nil:
		u.compensate(bucket, res.ThumbnailPath)
		return UploadResult{}, errors.Wrap(errors.ErrUploadFailed, "upload original", origErr)
	default:
		u.compensate(bucket, res.OriginalPath)
		return UploadResult{}, errors.Wrap(errors.ErrUploadPair, "upload thumbnail", thumbErr)
	}
}

// compensate removes the half of a pair that did upload. It runs on its
// own context so a cancelled caller does not leave an orphan behind.
func (u *Uploader) compensate(bucket, orphan string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := u.store.Remove(ctx, bucket, []string{orphan}); err != nil {
		logging.Error("Failed to remove orphaned upload", err, map[string]interface{}{
			"bucket": bucket,
			"path":   orphan,
		})
	}
}

// UploadMany uploads images in batches of three, skipping failures. The
// returned slice holds the successful uploads in input order.
func (u *Uploader) UploadMany(ctx context.Context, bucket, ownerID string, sources [][]byte) []UploadResult {
	const batchSize = 3
	var out []UploadResult
	for start := 0; start < len(sources); start += batchSize {
		end := start + batchSize
		if end > len(sources) {
			end = len(sources)
		}
		batch := make([]*UploadResult, end-start)
		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				res, err := u.UploadWithDerivative(ctx, bucket, ownerID, sources[i])
				if err != nil {
					logging.Warn("Image upload failed, skipping", map[string]interface{}{
						"index": i,
						"error": err.Error(),
					})
					return nil
				}
				batch[i-start] = &res
				return nil
			})
		}
		g.Wait()
		for _, r := range batch {
			if r != nil {
				out = append(out, *r)
			}
		}
	}
	return out
}

// ImageURL resolves a storage path to a displayable URL: public buckets
// get a public URL, private ones a cached signed URL. URLs and data URIs
// pass through unchanged.
func (u *Uploader) ImageURL(ctx context.Context, bucket, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if isExternal(path) {
		return path, nil
	}
	b, err := LookupBucket(bucket)
	if err != nil {
		return "", err
	}
	if b.Public {
		return u.store.PublicURL(bucket, path), nil
	}
	if url, ok := u.cache.Get(bucket, path); ok {
		return url, nil
	}
	url, err := u.store.SignedURL(ctx, bucket, path, SignedURLExpiry)
	if err != nil {
		return "", errors.Wrap(errors.ErrStorageURL, fmt.Sprintf("sign %s/%s", bucket, path), err)
	}
	u.cache.Put(bucket, path, url)
	return url, nil
}

// DisplayURLs resolves an original path and its derived thumbnail.
func (u *Uploader) DisplayURLs(ctx context.Context, bucket, originalPath string) (DisplayURLs, error) {
	var out DisplayURLs
	var g errgroup.Group
	g.Go(func() (err error) {
		out.Original, err = u.ImageURL(ctx, bucket, originalPath)
		return err
	})
	g.Go(func() (err error) {
		out.Thumbnail, err = u.ImageURL(ctx, bucket, ThumbnailPathOf(originalPath))
		return err
	})
	if err := g.Wait(); err != nil {
		return DisplayURLs{}, err
	}
	return out, nil
}

// Delete removes an original and its thumbnail in one call and drops
// their cached URLs. URLs and data URIs are not storage objects and are
// ignored.
func (u *Uploader) Delete(ctx context.Context, bucket, originalPath string) error {
	if originalPath == "" || isExternal(originalPath) {
		return nil
	}
	paths := []string{originalPath, ThumbnailPathOf(originalPath)}
	if err := u.store.Remove(ctx, bucket, paths); err != nil {
		return errors.Wrap(errors.ErrStorageDelete, "delete "+originalPath, err)
	}
	u.cache.Invalidate(bucket, paths...)
	return nil
}
