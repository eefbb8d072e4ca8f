package asset

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// StorageBackend describes where an asset's bytes live. The registry never
// touches the bytes; it only records enough to locate them.
type StorageBackend interface {
	// Kind returns the backend discriminator ("s3", "gcs", ...).
	Kind() string
	// Validate checks the backend's required fields.
	Validate() error
	// URI renders the canonical location URI for a path within the backend.
	URI(path string) string
}

// S3Backend stores assets in AWS S3 or an S3-compatible service.
type S3Backend struct {
	Bucket   string `json:"bucket"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint,omitempty"`
}

func (b S3Backend) Kind() string { return "s3" }

func (b S3Backend) Validate() error {
	if strings.TrimSpace(b.Bucket) == "" {
		return fmt.Errorf("s3 bucket must not be empty")
	}
	if strings.TrimSpace(b.Region) == "" {
		return fmt.Errorf("s3 region must not be empty")
	}
	if b.Endpoint != "" {
		if _, err := url.Parse(b.Endpoint); err != nil {
			return fmt.Errorf("s3 endpoint: %w", err)
		}
	}
	return nil
}

func (b S3Backend) URI(path string) string {
	return fmt.Sprintf("s3://%s/%s", b.Bucket, strings.TrimPrefix(path, "/"))
}

// GCSBackend stores assets in Google Cloud Storage.
type GCSBackend struct {
	Bucket    string `json:"bucket"`
	ProjectID string `json:"project_id"`
}

func (b GCSBackend) Kind() string { return "gcs" }

func (b GCSBackend) Validate() error {
	if strings.TrimSpace(b.Bucket) == "" {
		return fmt.Errorf("gcs bucket must not be empty")
	}
	if strings.TrimSpace(b.ProjectID) == "" {
		return fmt.Errorf("gcs project id must not be empty")
	}
	return nil
}

func (b GCSBackend) URI(path string) string {
	return fmt.Sprintf("gs://%s/%s", b.Bucket, strings.TrimPrefix(path, "/"))
}

// AzureBlobBackend stores assets in Azure Blob Storage.
type AzureBlobBackend struct {
	AccountName string `json:"account_name"`
	Container   string `json:"container"`
}

func (b AzureBlobBackend) Kind() string { return "azure_blob" }

func (b AzureBlobBackend) Validate() error {
	if strings.TrimSpace(b.AccountName) == "" {
		return fmt.Errorf("azure account name must not be empty")
	}
	if strings.TrimSpace(b.Container) == "" {
		return fmt.Errorf("azure container must not be empty")
	}
	return nil
}

func (b AzureBlobBackend) URI(path string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", b.AccountName, b.Container, strings.TrimPrefix(path, "/"))
}

// MinIOBackend stores assets in a MinIO deployment.
type MinIOBackend struct {
	Bucket   string `json:"bucket"`
	Endpoint string `json:"endpoint"`
}

func (b MinIOBackend) Kind() string { return "minio" }

func (b MinIOBackend) Validate() error {
	if strings.TrimSpace(b.Bucket) == "" {
		return fmt.Errorf("minio bucket must not be empty")
	}
	if strings.TrimSpace(b.Endpoint) == "" {
		return fmt.Errorf("minio endpoint must not be empty")
	}
	if _, err := url.Parse(b.Endpoint); err != nil {
		return fmt.Errorf("minio endpoint: %w", err)
	}
	return nil
}

func (b MinIOBackend) URI(path string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(b.Endpoint, "/"), b.Bucket, strings.TrimPrefix(path, "/"))
}

// FileSystemBackend stores assets on a locally mounted filesystem.
type FileSystemBackend struct {
	BasePath string `json:"base_path"`
}

func (b FileSystemBackend) Kind() string { return "filesystem" }

func (b FileSystemBackend) Validate() error {
	if strings.TrimSpace(b.BasePath) == "" {
		return fmt.Errorf("filesystem base path must not be empty")
	}
	return nil
}

func (b FileSystemBackend) URI(path string) string {
	return fmt.Sprintf("file://%s/%s", strings.TrimSuffix(b.BasePath, "/"), strings.TrimPrefix(path, "/"))
}

// StorageLocation pins an asset to a path within a backend. URI is set once
// at registration and kept stable afterwards.
type StorageLocation struct {
	Backend StorageBackend `json:"-"`
	Path    string         `json:"path"`
	URI     string         `json:"uri,omitempty"`
}

// NewStorageLocation validates the backend and fills in the canonical URI.
func NewStorageLocation(backend StorageBackend, path string) (StorageLocation, error) {
	if backend == nil {
		return StorageLocation{}, fmt.Errorf("storage backend must be set")
	}
	if err := backend.Validate(); err != nil {
		return StorageLocation{}, err
	}
	if strings.TrimSpace(path) == "" {
		return StorageLocation{}, fmt.Errorf("storage path must not be empty")
	}
	return StorageLocation{Backend: backend, Path: path, URI: backend.URI(path)}, nil
}

// Validate checks the location and its backend.
func (l StorageLocation) Validate() error {
	if l.Backend == nil {
		return fmt.Errorf("storage backend must be set")
	}
	if strings.TrimSpace(l.Path) == "" {
		return fmt.Errorf("storage path must not be empty")
	}
	return l.Backend.Validate()
}

// GetURI returns the stored URI, generating one from the backend when it was
// never set.
func (l StorageLocation) GetURI() string {
	if l.URI != "" {
		return l.URI
	}
	if l.Backend == nil {
		return ""
	}
	return l.Backend.URI(l.Path)
}

type storageLocationJSON struct {
	Kind    string          `json:"kind"`
	Backend json.RawMessage `json:"backend"`
	Path    string          `json:"path"`
	URI     string          `json:"uri,omitempty"`
}

// MarshalJSON serializes the location with a backend discriminator so it
// survives a round trip through a JSON column.
func (l StorageLocation) MarshalJSON() ([]byte, error) {
	if l.Backend == nil {
		return nil, fmt.Errorf("storage backend must be set")
	}
	raw, err := json.Marshal(l.Backend)
	if err != nil {
		return nil, err
	}
	return json.Marshal(storageLocationJSON{
		Kind:    l.Backend.Kind(),
		Backend: raw,
		Path:    l.Path,
		URI:     l.URI,
	})
}

// UnmarshalJSON restores the concrete backend from the discriminator.
func (l *StorageLocation) UnmarshalJSON(data []byte) error {
	var env storageLocationJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	var backend StorageBackend
	switch env.Kind {
	case "s3":
		var b S3Backend
		if err := json.Unmarshal(env.Backend, &b); err != nil {
			return err
		}
		backend = b
	case "gcs":
		var b GCSBackend
		if err := json.Unmarshal(env.Backend, &b); err != nil {
			return err
		}
		backend = b
	case "azure_blob":
		var b AzureBlobBackend
		if err := json.Unmarshal(env.Backend, &b); err != nil {
			return err
		}
		backend = b
	case "minio":
		var b MinIOBackend
		if err := json.Unmarshal(env.Backend, &b); err != nil {
			return err
		}
		backend = b
	case "filesystem":
		var b FileSystemBackend
		if err := json.Unmarshal(env.Backend, &b); err != nil {
			return err
		}
		backend = b
	default:
		return fmt.Errorf("unknown storage backend kind %q", env.Kind)
	}
	l.Backend = backend
	l.Path = env.Path
	l.URI = env.URI
	return nil
}
