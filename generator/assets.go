package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// ErrImageUnavailable is returned when an example image is missing or unreadable.
var ErrImageUnavailable = errors.New("example image unavailable")

// ExampleAsset is one few-shot example: the caption sent as the user turn and
// the base64 image sent back as the model turn.
type ExampleAsset struct {
	Path        string
	Instruction string
	MIMEType    string
	Data        string
}

// Bytes decodes the base64 payload.
func (a ExampleAsset) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}

// EncodeImage reads a file and returns its content as standard base64.
func EncodeImage(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[WARN] read example image %s: %v", path, err)
		return "", fmt.Errorf("%w: %s: %v", ErrImageUnavailable, path, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// AssetSource hands out the five example assets in conversation order.
type AssetSource interface {
	Examples(ctx context.Context) ([]ExampleAsset, error)
}

// DiskAssets reads the examples from Dir on every call.
type DiskAssets struct {
	Dir string
}

func (d DiskAssets) Examples(_ context.Context) ([]ExampleAsset, error) {
	assets := make([]ExampleAsset, 0, len(exampleShots))
	var errs []error
	for _, shot := range exampleShots {
		path := filepath.Join(d.Dir, shot.File)
		data, err := EncodeImage(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		assets = append(assets, ExampleAsset{
			Path:        path,
			Instruction: shot.Instruction,
			MIMEType:    pngMIME,
			Data:        data,
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return assets, nil
}

// CachedAssets loads the examples once and serves the same content afterwards.
type CachedAssets struct {
	assets []ExampleAsset
}

// NewCachedAssets reads every example from src up front.
func NewCachedAssets(ctx context.Context, src AssetSource) (*CachedAssets, error) {
	assets, err := src.Examples(ctx)
	if err != nil {
		return nil, err
	}
	return &CachedAssets{assets: assets}, nil
}

func (c *CachedAssets) Examples(_ context.Context) ([]ExampleAsset, error) {
	out := make([]ExampleAsset, len(c.assets))
	copy(out, c.assets)
	return out, nil
}
