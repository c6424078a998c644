package archive

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

const placeholderSize = 64

// Images keeps one profile picture per identity in Dir.
type Images struct {
	Dir    string
	Client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewImages(dir string, logger *zap.Logger) *Images {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Images{
		Dir:    dir,
		Client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
		now:    time.Now,
	}
}

func (im *Images) candidates(name string) []string {
	base := filepath.Join(im.Dir, core.CleanFileName(name))
	return []string{base + ".jpg", base + ".png"}
}

// Path returns the image file for name, or "" when there is none.
func (im *Images) Path(name string) string {
	for _, p := range im.candidates(name) {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Ensure makes sure name has an image no older than maxAge. url, when set,
// is downloaded; otherwise a generated placeholder is written. A failed
// download falls back to the placeholder.
func (im *Images) Ensure(ctx context.Context, name, url string, maxAge time.Duration) (string, error) {
	if p := im.Path(name); p != "" {
		if info, err := os.Stat(p); err == nil && im.now().Sub(info.ModTime()) < maxAge {
			return p, nil
		}
	}
	if err := os.MkdirAll(im.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating image dir: %w", err)
	}

	paths := im.candidates(name)
	jpg, pngPath := paths[0], paths[1]
	if url != "" {
		err := im.download(ctx, url, jpg)
		if err == nil {
			_ = os.Remove(pngPath)
			return jpg, nil
		}
		im.logger.Warn("profile image download failed", zap.String("identity", name), zap.Error(err))
	}
	if err := writePlaceholder(pngPath, name); err != nil {
		return "", err
	}
	_ = os.Remove(jpg)
	return pngPath, nil
}

func (im *Images) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := im.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, io.LimitReader(resp.Body, 8<<20)); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// writePlaceholder draws a square whose colour is derived from name.
func writePlaceholder(path, name string) error {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	sum := h.Sum32()
	fill := color.RGBA{R: uint8(sum >> 16), G: uint8(sum >> 8), B: uint8(sum), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
	for y := 0; y < placeholderSize; y++ {
		for x := 0; x < placeholderSize; x++ {
			img.Set(x, y, fill)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing placeholder: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding placeholder: %w", err)
	}
	return f.Close()
}

func (im *Images) Rename(oldName, newName string) error {
	old := im.Path(oldName)
	if old == "" {
		return nil
	}
	dst := filepath.Join(im.Dir, core.CleanFileName(newName)+filepath.Ext(old))
	if err := os.Rename(old, dst); err != nil {
		return fmt.Errorf("renaming image: %w", err)
	}
	return nil
}

func (im *Images) Delete(name string) error {
	for _, p := range im.candidates(name) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting image: %w", err)
		}
	}
	return nil
}
