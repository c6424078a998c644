package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTrayAccountCount = 3
	DefaultImageExpiryDays  = 7
)

// Platform is the typed view of a platform settings document. Keys the
// struct does not know about are kept in Extras.
type Platform struct {
	FolderPath           string `json:"folder_path"`
	Admin                bool   `json:"admin"`
	TrayAccountCount     int    `json:"tray_account_count"`
	ForgetAccountEnabled bool   `json:"forget_account_enabled"`
	ImageExpiryDays      int    `json:"image_expiry_days"`
	AltClose             bool   `json:"alt_close"`

	Extras map[string]any `json:"-"`
}

var knownKeys = map[string]bool{
	"folder_path":            true,
	"admin":                  true,
	"tray_account_count":     true,
	"forget_account_enabled": true,
	"image_expiry_days":      true,
	"alt_close":              true,
}

// DefaultPlatform returns the settings a platform starts with.
func DefaultPlatform(folderPath string, extras map[string]any) Platform {
	p := Platform{
		FolderPath:       folderPath,
		TrayAccountCount: DefaultTrayAccountCount,
		ImageExpiryDays:  DefaultImageExpiryDays,
		Extras:           map[string]any{},
	}
	for k, v := range extras {
		p.Extras[k] = cloneValue(v)
	}
	return p
}

// Document converts p to its on-disk form.
func (p Platform) Document() Document {
	doc := Document{}
	for k, v := range p.Extras {
		if !knownKeys[k] {
			doc[k] = cloneValue(v)
		}
	}
	doc["folder_path"] = p.FolderPath
	doc["admin"] = p.Admin
	doc["tray_account_count"] = p.TrayAccountCount
	doc["forget_account_enabled"] = p.ForgetAccountEnabled
	doc["image_expiry_days"] = p.ImageExpiryDays
	doc["alt_close"] = p.AltClose
	return doc
}

// PlatformFromDocument decodes doc. Values of the wrong type fall back to
// the zero value of the field.
func PlatformFromDocument(doc Document) Platform {
	var p Platform
	for k := range knownKeys {
		v, ok := doc[k]
		if !ok {
			continue
		}
		raw, err := json.Marshal(map[string]any{k: v})
		if err != nil {
			continue
		}
		_ = json.Unmarshal(raw, &p)
	}
	p.Extras = map[string]any{}
	for k, v := range doc {
		if !knownKeys[k] {
			p.Extras[k] = cloneValue(v)
		}
	}
	return p
}

// Bool returns a boolean extra, false when absent or not a boolean.
func (p Platform) Bool(key string) bool {
	b, _ := p.Extras[key].(bool)
	return b
}

// ImageExpiry returns the profile image refresh interval.
func (p Platform) ImageExpiry() time.Duration {
	days := p.ImageExpiryDays
	if days <= 0 {
		days = DefaultImageExpiryDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Store keeps one settings file per platform under Dir. Corrupt files leave
// a crash note at CrashNotePath.
type Store struct {
	Dir           string
	CrashNotePath string

	logger *zap.Logger
	now    func() time.Time
}

func NewStore(dir, crashNotePath string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{Dir: dir, CrashNotePath: crashNotePath, logger: logger, now: time.Now}
}

func (s *Store) Path(platformID string) string {
	return filepath.Join(s.Dir, platformID+".json")
}

// LoadDocument loads the raw document for a platform.
func (s *Store) LoadDocument(platformID string, defaults Platform) (Document, error) {
	path := s.Path(platformID)
	doc, err := Load(path, defaults.Document())
	if err != nil {
		var corrupt *CorruptError
		if errors.As(err, &corrupt) {
			s.logger.Error("settings file is corrupt", zap.String("path", path), zap.String("backup", corrupt.Backup), zap.Error(corrupt.Err))
			s.writeCrashNote(corrupt)
		}
		return nil, err
	}
	return doc, nil
}

func (s *Store) LoadPlatform(platformID string, defaults Platform) (Platform, error) {
	doc, err := s.LoadDocument(platformID, defaults)
	if err != nil {
		return Platform{}, err
	}
	return PlatformFromDocument(doc), nil
}

func (s *Store) SavePlatform(platformID string, p Platform, mergeNewIntoOld bool) error {
	return Save(s.Path(platformID), p.Document(), mergeNewIntoOld)
}

// Set stores a single key. value is decoded as JSON when possible, so
// "true" and "3" become a boolean and a number; anything else is a string.
func (s *Store) Set(platformID string, defaults Platform, key, value string) error {
	if _, err := s.LoadDocument(platformID, defaults); err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		v = value
	}
	return Save(s.Path(platformID), Document{key: v}, false)
}

func (s *Store) writeCrashNote(corrupt *CorruptError) {
	if s.CrashNotePath == "" {
		return
	}
	note := fmt.Sprintf("%s\nsettings file %s could not be read and was moved to %s\n%v\n",
		s.now().Format(time.RFC3339), corrupt.Path, corrupt.Backup, corrupt.Err)
	if err := os.MkdirAll(filepath.Dir(s.CrashNotePath), 0o755); err != nil {
		s.logger.Warn("crash note dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.CrashNotePath, []byte(note), 0o644); err != nil {
		s.logger.Warn("writing crash note", zap.Error(err))
	}
}
