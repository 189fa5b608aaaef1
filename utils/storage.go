package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderLocal = "local"
)

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderGCS
	}
	return provider
}

// getGoogleClient initializes a Google Cloud Storage client.
// Prefers ADC (service account / GOOGLE_APPLICATION_CREDENTIALS); set
// GCS_CREDENTIALS_JSON to provide explicit JSON locally.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// FetchEvidenceFile reads an uploaded evidence file (spreadsheet confirmation
// or receipt) by its stored reference. References are either "gs://bucket/obj"
// or a plain path; plain paths resolve against GCS_BUCKET for the gcs
// provider and the local filesystem otherwise.
func FetchEvidenceFile(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "gs://") {
		rest := strings.TrimPrefix(ref, "gs://")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed gcs reference %q", ref)
		}
		return fetchFromGCS(ctx, parts[0], parts[1])
	}

	if GetStorageProvider() == StorageProviderLocal {
		return os.ReadFile(ref)
	}

	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	return fetchFromGCS(ctx, bucket, ref)
}

func fetchFromGCS(ctx context.Context, bucket, object string) ([]byte, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}
