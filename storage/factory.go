package storage

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/tee-confidential-query/interfaces"
)

// StorageBackendFactory creates metadata backends from location URIs.
type StorageBackendFactory struct {
	log *slog.Logger
}

func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageBackendFactory{log: logger}
}

var _ interfaces.MetadataBackendFactory = (*StorageBackendFactory)(nil)

// BackendFor creates a metadata backend from a location.
//
// Supported schemes:
//   - file:///var/lib/pink/metadata
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-west-2&endpoint=http://minio:9000
//   - ipfs://127.0.0.1:5001/pink-metadata?timeout=30s
//   - vault://vault.example.com:8200/secret/pink/metadata?token=...&tls=false
func (sf *StorageBackendFactory) BackendFor(loc interfaces.StorageBackendLocation) (interfaces.MetadataBackend, error) {
	switch loc.Scheme {
	case "file":
		return sf.createFileBackend(loc)
	case "s3":
		return sf.createS3Backend(loc)
	case "ipfs":
		return sf.createIPFSBackend(loc)
	case "vault":
		return sf.createVaultBackend(loc)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// CreateMultiBackend creates a fallback backend over every location that
// yields a valid backend. Invalid locations are logged and skipped.
func (sf *StorageBackendFactory) CreateMultiBackend(locations []interfaces.StorageBackendLocation) (interfaces.MetadataBackend, error) {
	backends := make([]interfaces.MetadataBackend, 0, len(locations))

	for _, loc := range locations {
		backend, err := sf.BackendFor(loc)
		if err != nil {
			sf.log.Warn("Failed to create metadata backend",
				"err", err,
				slog.String("location", loc.String()))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no valid metadata backends created", interfaces.ErrConfiguration)
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

func (sf *StorageBackendFactory) createFileBackend(loc interfaces.StorageBackendLocation) (interfaces.MetadataBackend, error) {
	path := loc.Path
	if loc.Host != "" {
		// file://./relative/path
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, loc)
	}
	return NewFileBackend(path, sf.log)
}

func (sf *StorageBackendFactory) createS3Backend(loc interfaces.StorageBackendLocation) (interfaces.MetadataBackend, error) {
	if loc.Host == "" {
		return nil, fmt.Errorf("%w: missing S3 bucket in %s", interfaces.ErrInvalidLocationURI, loc)
	}

	region := loc.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if loc.Auth != "" {
		accessKey, secretKey, _ = strings.Cut(loc.Auth, ":")
	}

	return NewS3Backend(loc.Host, strings.TrimPrefix(loc.Path, "/"), region, loc.GetParam("endpoint"), accessKey, secretKey, sf.log)
}

func (sf *StorageBackendFactory) createIPFSBackend(loc interfaces.StorageBackendLocation) (interfaces.MetadataBackend, error) {
	host := loc.Host
	if host == "" {
		return nil, fmt.Errorf("%w: missing IPFS API host in %s", interfaces.ErrInvalidLocationURI, loc)
	}
	if !strings.Contains(host, ":") {
		host += ":5001"
	}

	timeout := 30 * time.Second
	if raw := loc.GetParam("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid IPFS timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = d
	}

	return NewIPFSBackend(host, loc.Path, timeout, sf.log)
}

func (sf *StorageBackendFactory) createVaultBackend(loc interfaces.StorageBackendLocation) (interfaces.MetadataBackend, error) {
	if loc.Host == "" {
		return nil, fmt.Errorf("%w: missing Vault address in %s", interfaces.ErrInvalidLocationURI, loc)
	}

	mount, dataPath, _ := strings.Cut(strings.Trim(loc.Path, "/"), "/")
	if mount == "" {
		mount = "secret"
	}

	scheme := "https"
	if loc.Query.Has("tls") && !loc.GetParamBool("tls") {
		scheme = "http"
	}

	return NewVaultBackend(scheme+"://"+loc.Host, mount, dataPath, loc.GetParam("token"), sf.log)
}
