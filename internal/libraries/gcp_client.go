package libraries

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// AssetStorage uploads thumbnails and generated images to one GCS bucket
// and hands back their public URL
type AssetStorage struct {
	GCS    *storage.Client
	Bucket string
	// Prefix is prepended to every object name
	Prefix string
}

// NewAssetStorage builds a GCS client from a base64 encoded service account JSON
func NewAssetStorage(ctx context.Context, encodedCredentials, bucket string) (*AssetStorage, error) {
	if encodedCredentials == "" {
		return nil, fmt.Errorf("GCP_SERVICE_ACCOUNT_CREDENTIALS not set")
	}
	if bucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET not set")
	}

	// decode JSON
	decoded, err := base64.StdEncoding.DecodeString(encodedCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to decode service account json: %w", err)
	}

	gcsClient, err := storage.NewClient(ctx, option.WithCredentialsJSON(decoded))
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}

	return &AssetStorage{GCS: gcsClient, Bucket: bucket, Prefix: "canvas"}, nil
}

// Upload writes r to objectName and returns the object's public URL
func (a *AssetStorage) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	name := a.objectPath(objectName)
	w := a.GCS.Bucket(a.Bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	return PublicURL(a.Bucket, name), nil
}

func (a *AssetStorage) objectPath(objectName string) string {
	if a.Prefix == "" {
		return objectName
	}
	return path.Join(a.Prefix, objectName)
}

// PublicURL is the https address of an object in a public bucket
func PublicURL(bucket, object string) string {
	u := url.URL{
		Scheme: "https",
		Host:   "storage.googleapis.com",
		Path:   "/" + bucket + "/" + object,
	}
	return u.String()
}

func (a *AssetStorage) Close() error {
	return a.GCS.Close()
}
