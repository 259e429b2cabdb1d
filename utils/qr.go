package utils

import (
	"fmt"
	"os"
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"
)

// QREncoder renders a credential string as a PNG QR code. The credential
// is treated as an opaque payload; nothing here inspects its structure.
type QREncoder struct {
	Size int
}

func NewQREncoder() *QREncoder {
	return &QREncoder{Size: 256}
}

func (e *QREncoder) Encode(credential string) ([]byte, error) {
	data, err := qrcode.Encode(credential, qrcode.Medium, e.Size)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return data, nil
}

// FileMediaStore writes media under a root directory and returns the
// root-relative reference.
type FileMediaStore struct {
	Root string
}

func NewFileMediaStore(root string) *FileMediaStore {
	return &FileMediaStore{Root: root}
}

func (m *FileMediaStore) Save(name string, data []byte) (string, error) {
	path := filepath.Join(m.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("media store: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("media store: %w", err)
	}
	return name, nil
}
