// Package media stores post and profile images in an external object store.
package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"
	"strings"

	"ripple/internal/config"
	"ripple/internal/models"
	"ripple/internal/observability"

	"github.com/chai2010/webp"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	maxUploadBytes = 10 * 1024 * 1024
	maxDimension   = 2048
	webpQuality    = 80
)

// Uploader accepts an inline base64 data URL and returns a durable public URL.
type Uploader interface {
	UploadDataURL(ctx context.Context, dataURL string) (string, error)
}

// Store is a MinIO-backed Uploader.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewStore connects to the object store and ensures the media bucket exists.
func NewStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.MediaEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MediaAccessKey, cfg.MediaSecretKey, ""),
		Secure: cfg.MediaUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("media client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MediaBucket)
	if err != nil {
		return nil, fmt.Errorf("media bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MediaBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("media make bucket: %w", err)
		}
	}

	publicURL := cfg.MediaPublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.MediaUseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, cfg.MediaEndpoint)
	}

	return &Store{
		client:    client,
		bucket:    cfg.MediaBucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// UploadDataURL decodes an inline image, re-encodes it as WebP and uploads it.
// The object key is content-addressed, so re-uploading the same image is a no-op
// from the caller's perspective.
func (s *Store) UploadDataURL(ctx context.Context, dataURL string) (string, error) {
	raw, err := DecodeDataURL(dataURL)
	if err != nil {
		observability.MediaUploads.WithLabelValues("rejected").Inc()
		return "", err
	}

	encoded, err := TranscodeWebP(raw)
	if err != nil {
		observability.MediaUploads.WithLabelValues("rejected").Inc()
		return "", err
	}

	sum := sha256.Sum256(encoded)
	key := hex.EncodeToString(sum[:]) + ".webp"

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(encoded), int64(len(encoded)),
		minio.PutObjectOptions{ContentType: "image/webp"})
	if err != nil {
		observability.MediaUploads.WithLabelValues("failed").Inc()
		return "", models.NewInternalError(fmt.Errorf("media upload: %w", err))
	}

	observability.MediaUploads.WithLabelValues("ok").Inc()
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key), nil
}

// DecodeDataURL extracts the raw bytes from a base64 data URL and validates
// size and MIME type. Plain base64 without the data: prefix is accepted too.
func DecodeDataURL(dataURL string) ([]byte, error) {
	payload := dataURL
	if strings.HasPrefix(dataURL, "data:") {
		idx := strings.Index(dataURL, ",")
		if idx < 0 {
			return nil, models.NewValidationError("Malformed image data URL")
		}
		meta := dataURL[len("data:"):idx]
		if !strings.HasPrefix(meta, "image/") {
			return nil, models.NewValidationError("Only image uploads are supported")
		}
		payload = dataURL[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, models.NewValidationError("Invalid base64 image payload")
	}
	if len(raw) == 0 {
		return nil, models.NewValidationError("Empty image payload")
	}
	if len(raw) > maxUploadBytes {
		return nil, models.NewValidationError(fmt.Sprintf("Image too large (max %dMB)", maxUploadBytes/(1024*1024)))
	}

	detected := http.DetectContentType(raw)
	if !strings.HasPrefix(detected, "image/") {
		return nil, models.NewValidationError("Invalid image type")
	}

	return raw, nil
}

// TranscodeWebP decodes the image, downscales it to the dimension cap and
// re-encodes it as WebP.
func TranscodeWebP(raw []byte) ([]byte, error) {
	decoded, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	decoded = clampSize(decoded)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, decoded, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, models.NewInternalError(fmt.Errorf("webp encode: %w", err))
	}
	return buf.Bytes(), nil
}

// clampSize scales the image down so neither side exceeds maxDimension.
func clampSize(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDimension && h <= maxDimension {
		return img
	}

	scale := float64(maxDimension) / float64(w)
	if h > w {
		scale = float64(maxDimension) / float64(h)
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
