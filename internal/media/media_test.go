// Package media tests for the image upload pipeline.
package media

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		for y := 0; y < h; y += 5 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func decodedBounds(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

// =====================================================
// Dimensions and paths
// =====================================================

// TestFitDimensions verifies scale-down-only fitting.
func TestFitDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"landscape original", 4000, 3000, 1920, 1920, 1920, 1440},
		{"portrait thumbnail", 1000, 4000, 400, 400, 100, 400},
		{"within bounds", 300, 200, 400, 400, 300, 200},
		{"exact bounds", 400, 400, 400, 400, 400, 400},
		{"rounding", 1001, 333, 400, 400, 400, 133},
		{"never below one pixel", 10000, 1, 400, 400, 400, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitDimensions(tt.w, tt.h, tt.maxW, tt.maxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

// TestThumbnailPathOf verifies the derivation is pure and distinct.
func TestThumbnailPathOf(t *testing.T) {
	assert.Equal(t, "u1/thumb_a.jpg", ThumbnailPathOf("u1/a.jpg"))
	assert.Equal(t, "thumb_a.jpg", ThumbnailPathOf("a.jpg"))
	assert.Equal(t, "", ThumbnailPathOf(""))
	assert.Equal(t, ThumbnailPathOf("u1/a.jpg"), ThumbnailPathOf("u1/a.jpg"))
	assert.True(t, IsThumbnailPath(ThumbnailPathOf("u1/a.jpg")))
	assert.False(t, IsThumbnailPath("u1/a.jpg"))
}

// TestNewObjectName verifies the timestamp prefix.
func TestNewObjectName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	name := NewObjectName(now)
	assert.True(t, strings.HasPrefix(name, "1700000000123_"), name)
	assert.NotEqual(t, name, NewObjectName(now))
	assert.Equal(t, "u1/"+name+".jpg", OriginalPath("u1", name))
}

// TestParseDataURI verifies inline images decode.
func TestParseDataURI(t *testing.T) {
	ct, data, err := ParseDataURI("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, []byte("hello"), data)

	_, _, err = ParseDataURI("data:image/png,raw")
	assert.True(t, errors.Is(err, errors.ErrImageDecode))

	assert.True(t, IsInlineImage("data:image/jpeg;base64,xx"))
	assert.False(t, IsInlineImage("u1/a.jpg"))
}

func TestEncodeDataURI(t *testing.T) {
	src := testPNG(t, 4, 4)
	uri := EncodeDataURI(src)
	assert.True(t, IsInlineImage(uri))

	ct, data, err := ParseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, src, data)
}

// =====================================================
// Decode / Render
// =====================================================

// TestDecode_empty verifies empty input is rejected before any work.
func TestDecode_empty(t *testing.T) {
	_, err := Decode(nil)
	assert.True(t, errors.Is(err, errors.ErrImageEmpty))
}

// TestDecode_notImage verifies non-image content is rejected.
func TestDecode_notImage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	assert.True(t, errors.Is(err, errors.ErrImageDecode))
}

// TestRender_bounds verifies both derivatives respect their bounds.
func TestRender_bounds(t *testing.T) {
	img, err := Decode(testPNG(t, 2400, 1200))
	require.NoError(t, err)

	orig, err := Render(img, Original)
	require.NoError(t, err)
	w, h := decodedBounds(t, orig)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 960, h)

	thumb, err := Render(img, Thumbnail)
	require.NoError(t, err)
	w, h = decodedBounds(t, thumb)
	assert.Equal(t, 400, w)
	assert.Equal(t, 200, h)
}

// TestRender_noUpscale verifies small images keep their size.
func TestRender_noUpscale(t *testing.T) {
	img, err := Decode(testPNG(t, 120, 80))
	require.NoError(t, err)

	out, err := Render(img, Original)
	require.NoError(t, err)
	w, h := decodedBounds(t, out)
	assert.Equal(t, 120, w)
	assert.Equal(t, 80, h)
}

// =====================================================
// Uploader
// =====================================================

// TestUploadWithDerivative verifies both objects land.
func TestUploadWithDerivative(t *testing.T) {
	store := NewMemoryStore()
	u := NewUploader(store, nil)

	res, err := u.UploadWithDerivative(context.Background(), BucketFoodLogs, "u1", testPNG(t, 2400, 1200))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.OriginalPath, "u1/"))
	assert.Equal(t, ThumbnailPathOf(res.OriginalPath), res.ThumbnailPath)

	orig, ok := store.Object(BucketFoodLogs, res.OriginalPath)
	require.True(t, ok)
	w, _ := decodedBounds(t, orig)
	assert.Equal(t, 1920, w)

	thumb, ok := store.Object(BucketFoodLogs, res.ThumbnailPath)
	require.True(t, ok)
	w, _ = decodedBounds(t, thumb)
	assert.Equal(t, 400, w)
}

// TestUploadWithDerivative_emptySource verifies nothing is uploaded.
func TestUploadWithDerivative_emptySource(t *testing.T) {
	store := NewMemoryStore()
	_, err := NewUploader(store, nil).UploadWithDerivative(context.Background(), BucketFoodLogs, "u1", nil)
	assert.True(t, errors.Is(err, errors.ErrImageEmpty))
	assert.Equal(t, 0, store.UploadCount())
}

// TestUploadWithDerivative_unknownBucket verifies bucket validation.
func TestUploadWithDerivative_unknownBucket(t *testing.T) {
	_, err := NewUploader(NewMemoryStore(), nil).UploadWithDerivative(context.Background(), "avatars", "u1", testPNG(t, 10, 10))
	assert.True(t, errors.Is(err, errors.ErrBucketUnknown))
}

// TestUploadNamed_thumbnailFailure verifies the original is rolled back.
func TestUploadNamed_thumbnailFailure(t *testing.T) {
	store := NewMemoryStore()
	store.FailUploads("thumb_", stderrors.New("503 service unavailable"))
	u := NewUploader(store, nil)

	_, err := u.UploadNamed(context.Background(), BucketFoodLogs, "u1", "meal1", testPNG(t, 50, 50))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUploadPair))
	assert.Equal(t, 0, store.Len(), "no orphaned original may remain")
}

// TestUploadNamed_originalFailure verifies the thumbnail is rolled back.
func TestUploadNamed_originalFailure(t *testing.T) {
	store := NewMemoryStore()
	store.FailUploads("/meal1", stderrors.New("timeout"))
	u := NewUploader(store, nil)

	_, err := u.UploadNamed(context.Background(), BucketFoodLogs, "u1", "meal1", testPNG(t, 50, 50))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUploadFailed))
	assert.Equal(t, 0, store.Len())
}

// TestUploadNamed_idempotent verifies a retry overwrites the same pair.
func TestUploadNamed_idempotent(t *testing.T) {
	store := NewMemoryStore()
	u := NewUploader(store, nil)
	ctx := context.Background()

	first, err := u.UploadNamed(ctx, BucketFoodLogs, "u1", "meal1", testPNG(t, 50, 50))
	require.NoError(t, err)
	second, err := u.UploadNamed(ctx, BucketFoodLogs, "u1", "meal1", testPNG(t, 60, 60))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, store.Len())
}

// TestUploadMany verifies failures are skipped and order kept.
func TestUploadMany(t *testing.T) {
	store := NewMemoryStore()
	u := NewUploader(store, nil)

	sources := [][]byte{
		testPNG(t, 20, 20),
		nil,
		testPNG(t, 30, 30),
		testPNG(t, 40, 40),
		[]byte("broken"),
	}
	results := u.UploadMany(context.Background(), BucketChatMedia, "u1", sources)
	require.Len(t, results, 3)
	assert.Equal(t, 6, store.Len())

	w, _ := decodedBounds(t, mustObject(t, store, BucketChatMedia, results[2].OriginalPath))
	assert.Equal(t, 40, w)
}

func mustObject(t *testing.T, store *MemoryStore, bucket, path string) []byte {
	t.Helper()
	data, ok := store.Object(bucket, path)
	require.True(t, ok, "missing %s/%s", bucket, path)
	return data
}

// TestImageURL verifies public, signed and passthrough resolution.
func TestImageURL(t *testing.T) {
	store := NewMemoryStore()
	u := NewUploader(store, nil)
	ctx := context.Background()

	pub, err := u.ImageURL(ctx, BucketGymPhotos, "u1/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "memory://public/gym-photos/u1/a.jpg", pub)
	assert.Equal(t, 0, store.SignCount())

	signed, err := u.ImageURL(ctx, BucketFoodLogs, "u1/a.jpg")
	require.NoError(t, err)
	assert.Contains(t, signed, "expires=3600")

	again, err := u.ImageURL(ctx, BucketFoodLogs, "u1/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, signed, again)
	assert.Equal(t, 1, store.SignCount(), "second lookup must hit the cache")

	for _, p := range []string{"https://cdn.example.com/a.jpg", "data:image/png;base64,xx"} {
		got, err := u.ImageURL(ctx, BucketFoodLogs, p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	empty, err := u.ImageURL(ctx, BucketFoodLogs, "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestURLCache_expiry verifies entries expire after the ttl.
func TestURLCache_expiry(t *testing.T) {
	c := NewURLCache(10, 20*time.Millisecond)
	c.Put(BucketFoodLogs, "a", "url")
	_, ok := c.Get(BucketFoodLogs, "a")
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := c.Get(BucketFoodLogs, "a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

// TestDisplayURLs verifies both URLs resolve.
func TestDisplayURLs(t *testing.T) {
	u := NewUploader(NewMemoryStore(), nil)
	urls, err := u.DisplayURLs(context.Background(), BucketGymPhotos, "u1/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "memory://public/gym-photos/u1/a.jpg", urls.Original)
	assert.Equal(t, "memory://public/gym-photos/u1/thumb_a.jpg", urls.Thumbnail)
}

// TestDelete verifies both objects go and the cache is invalidated.
func TestDelete(t *testing.T) {
	store := NewMemoryStore()
	u := NewUploader(store, nil)
	ctx := context.Background()

	res, err := u.UploadWithDerivative(ctx, BucketHealthCheckups, "u1", testPNG(t, 30, 30))
	require.NoError(t, err)
	_, err = u.ImageURL(ctx, BucketHealthCheckups, res.OriginalPath)
	require.NoError(t, err)

	require.NoError(t, u.Delete(ctx, BucketHealthCheckups, res.OriginalPath))
	assert.Equal(t, 0, store.Len())

	_, err = u.ImageURL(ctx, BucketHealthCheckups, res.OriginalPath)
	require.NoError(t, err)
	assert.Equal(t, 2, store.SignCount())
}

// TestDelete_failure verifies storage errors are coded.
func TestDelete_failure(t *testing.T) {
	store := NewMemoryStore()
	store.FailRemove(stderrors.New("403"))
	err := NewUploader(store, nil).Delete(context.Background(), BucketFoodLogs, "u1/a.jpg")
	assert.True(t, errors.Is(err, errors.ErrStorageDelete))

	assert.NoError(t, NewUploader(store, nil).Delete(context.Background(), BucketFoodLogs, "https://x/a.jpg"))
}
