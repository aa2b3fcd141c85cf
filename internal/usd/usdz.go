package usd

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"path/filepath"
	"strings"
)

const (
	// packageAlignment is the boundary every entry's data must start on.
	packageAlignment = 64
	localHeaderSize  = 30
	paddingFieldID   = 0x1986
)

// writePackage encodes s as a single-layer package: one uncompressed .usda
// entry whose data is aligned on a 64-byte boundary.
func writePackage(s *Stage, path string) ([]byte, error) {
	layer, err := s.MarshalText()
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".usda"
	fh := &zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(layer),
		CompressedSize64:   uint64(len(layer)),
		UncompressedSize64: uint64(len(layer)),
		Extra:              paddingField(localHeaderSize + len(name)),
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateRaw(fh)
	if err != nil {
		return nil, fmt.Errorf("usd: package %s: %w", path, err)
	}
	if _, err := w.Write(layer); err != nil {
		return nil, fmt.Errorf("usd: package %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("usd: package %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// paddingField returns an extra field that pushes the entry data, which
// starts headerLen bytes into the archive plus the field itself, onto the
// next alignment boundary.
func paddingField(headerLen int) []byte {
	pad := (packageAlignment - (headerLen+4)%packageAlignment) % packageAlignment
	field := make([]byte, 4+pad)
	binary.LittleEndian.PutUint16(field[0:], paddingFieldID)
	binary.LittleEndian.PutUint16(field[2:], uint16(pad))
	return field
}

// readPackage decodes the root layer of a package, which must be its first
// entry and a text layer.
func readPackage(path string, data []byte) (*Stage, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("usd: open %s: %w", path, err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("usd: open %s: package has no layers", path)
	}

	root := zr.File[0]
	switch strings.ToLower(filepath.Ext(root.Name)) {
	case ".usda", ".usd":
	case ".usdc":
		return nil, fmt.Errorf("%w: %s!%s (crate format not supported)", ErrUnsupportedFormat, path, root.Name)
	default:
		return nil, fmt.Errorf("usd: open %s: first entry %q is not a layer", path, root.Name)
	}

	rc, err := root.Open()
	if err != nil {
		return nil, fmt.Errorf("usd: open %s: %w", path, err)
	}
	defer rc.Close()
	layer, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("usd: open %s: %w", path, err)
	}
	return ParseLayer(path+"!"+root.Name, layer)
}
