package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// DefaultIPFSRoot is the MFS directory documents are kept under.
const DefaultIPFSRoot = "/pink-metadata"

// IPFSBackend stores metadata documents in the mutable file system (MFS)
// of an IPFS node, so a document can be addressed by code hash rather than
// by its CID.
type IPFSBackend struct {
	shell       *shell.Shell
	apiURL      string
	root        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates an IPFS backend talking to the node API at apiURL.
func NewIPFSBackend(apiURL, root string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	if root == "" {
		root = DefaultIPFSRoot
	}
	root = "/" + strings.Trim(root, "/")

	sh := shell.NewShell(apiURL)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}

	return &IPFSBackend{
		shell:       sh,
		apiURL:      apiURL,
		root:        root,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s?timeout=%s", strings.TrimPrefix(apiURL, "http://"), root, timeout),
	}, nil
}

// Fetch retrieves the document for codeHash. Returns ErrContentNotFound if
// no such file exists in MFS.
func (b *IPFSBackend) Fetch(ctx context.Context, codeHash interfaces.CodeHash) ([]byte, error) {
	start := time.Now()
	filePath := b.filePath(codeHash)

	reader, err := b.shell.FilesRead(ctx, filePath)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			b.log.Debug("Metadata not found in IPFS",
				slog.String("path", filePath),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to read metadata from IPFS",
			slog.String("path", filePath),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	b.log.Debug("Fetched metadata from IPFS",
		slog.String("path", filePath),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store writes the document for codeHash into MFS, replacing any previous one.
func (b *IPFSBackend) Store(ctx context.Context, codeHash interfaces.CodeHash, data []byte) error {
	filePath := b.filePath(codeHash)

	err := b.shell.FilesWrite(ctx, filePath, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		return fmt.Errorf("failed to write metadata to IPFS: %w", err)
	}

	b.log.Debug("Stored metadata in IPFS",
		slog.String("path", filePath),
		slog.String("code_hash", codeHash.String()))

	return nil
}

// Available checks if the IPFS node answers API requests.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s", strings.TrimPrefix(b.apiURL, "http://"))
}

func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) filePath(codeHash interfaces.CodeHash) string {
	return path.Join(b.root, objectName(codeHash))
}
