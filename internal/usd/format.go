package usd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a layer file format.
type Format string

const (
	FormatUSDA Format = "usda"
	FormatUSDC Format = "usdc"
	FormatUSDZ Format = "usdz"
)

var (
	usdaMagic = []byte("#usda")
	usdcMagic = []byte("PXR-USDC")
	zipMagic  = []byte("PK\x03\x04")
)

// FormatForPath selects a format from the file extension. Plain .usd is
// written as text.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".usda", ".usd":
		return FormatUSDA, nil
	case ".usdc":
		return FormatUSDC, nil
	case ".usdz":
		return FormatUSDZ, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// IsLayerPath reports whether path has a scene description extension.
func IsLayerPath(path string) bool {
	_, err := FormatForPath(path)
	return err == nil
}

// detectFormat sniffs the content, falling back to the extension.
func detectFormat(path string, data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, usdaMagic):
		return FormatUSDA, nil
	case bytes.HasPrefix(data, usdcMagic):
		return FormatUSDC, nil
	case bytes.HasPrefix(data, zipMagic):
		return FormatUSDZ, nil
	}
	if f, err := FormatForPath(path); err == nil && f != FormatUSDA {
		return f, nil
	}
	return "", fmt.Errorf("%w: %s is not a scene description layer", ErrUnsupportedFormat, path)
}
