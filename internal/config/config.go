package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/protocol"
)

// ErrUnwritable is returned when the settings file cannot be persisted.
var ErrUnwritable = errors.New("config: settings file unwritable")

// Retention bounds: one hour to seven days.
const (
	MinRetentionHours = 1
	MaxRetentionHours = 168
)

// Settings is the on-disk shape of settings.json.
type Settings struct {
	Username       string `mapstructure:"username"`
	RetentionHours int    `mapstructure:"retention_hours"`
	AutoCleanup    bool   `mapstructure:"auto_cleanup"`
	MaxFileSizeMB  int    `mapstructure:"max_file_size_mb"`
	DownloadsDir   string `mapstructure:"downloads_dir"`
	DBPath         string `mapstructure:"db_path"`
	KeyPath        string `mapstructure:"key_path"`
	UDPPort        int    `mapstructure:"udp_port"`
	TCPPort        int    `mapstructure:"tcp_port"`
}

// ChangeFunc observes one settings key changing value.
type ChangeFunc func(key string, oldValue, newValue any)

// Manager owns settings.json: defaults on first run, persistence, change
// callbacks, and live re-reads when the file is edited behind our back.
// Workers read through the accessors on every use instead of caching, so
// a rename takes effect on the next beacon without a restart.
type Manager struct {
	mu        sync.Mutex
	v         *viper.Viper
	path      string
	callbacks []ChangeFunc
	last      map[string]any
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("username", "")
	v.SetDefault("retention_hours", 24)
	v.SetDefault("auto_cleanup", true)
	v.SetDefault("max_file_size_mb", 100)
	v.SetDefault("downloads_dir", "downloads")
	v.SetDefault("db_path", "ghostnet.db")
	v.SetDefault("key_path", "secret.key")
	v.SetDefault("udp_port", protocol.UDPPort)
	v.SetDefault("tcp_port", protocol.TCPPort)
}

// Load reads (or creates) the settings file at path. A missing file is
// normal on first run: defaults are applied, a username is generated, and
// the file is written so the identity sticks.
func Load(path string) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	m := &Manager{v: v, path: path}
	m.normalize()

	if err := m.write(); err != nil {
		return nil, err
	}
	m.last = m.snapshotValues()

	v.OnConfigChange(func(in fsnotify.Event) { m.reloaded() })
	v.WatchConfig()
	return m, nil
}

// normalize fills generated values and clamps the numeric settings into
// their legal ranges. Runs under no lock; callers own exclusivity during
// construction and reload.
func (m *Manager) normalize() {
	if strings.TrimSpace(m.v.GetString("username")) == "" {
		m.v.Set("username", RandomUsername())
	}
	if h := m.v.GetInt("retention_hours"); h < MinRetentionHours {
		m.v.Set("retention_hours", MinRetentionHours)
	} else if h > MaxRetentionHours {
		m.v.Set("retention_hours", MaxRetentionHours)
	}
	if mb := m.v.GetInt("max_file_size_mb"); mb < 1 {
		m.v.Set("max_file_size_mb", 1)
	} else if mb > 100 {
		m.v.Set("max_file_size_mb", 100)
	}
	if m.v.GetInt("udp_port") <= 0 {
		m.v.Set("udp_port", protocol.UDPPort)
	}
	if m.v.GetInt("tcp_port") <= 0 {
		m.v.Set("tcp_port", protocol.TCPPort)
	}
}

func (m *Manager) write() error {
	if dir := filepath.Dir(m.path); dir != "." {
		// Viper will not create the directory for us.
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrUnwritable, err)
		}
	}
	if err := m.v.WriteConfigAs(m.path); err != nil {
		return fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	return nil
}

func (m *Manager) snapshotValues() map[string]any {
	keys := []string{
		"username", "retention_hours", "auto_cleanup", "max_file_size_mb",
		"downloads_dir", "db_path", "key_path", "udp_port", "tcp_port",
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = m.v.Get(k)
	}
	return out
}

// reloaded runs after the watcher saw the file change on disk. Re-clamp
// and diff against the previous values so external edits fire the same
// callbacks as Set.
func (m *Manager) reloaded() {
	m.mu.Lock()
	m.normalize()
	now := m.snapshotValues()
	var fired []func()
	for k, newVal := range now {
		oldVal, ok := m.last[k]
		if ok && fmt.Sprint(oldVal) == fmt.Sprint(newVal) {
			continue
		}
		for _, cb := range m.callbacks {
			k, oldVal, newVal, cb := k, oldVal, newVal, cb
			fired = append(fired, func() { cb(k, oldVal, newVal) })
		}
	}
	m.last = now
	m.mu.Unlock()

	for _, f := range fired {
		f()
	}
}

// Set stores one key, persists the file, and fires change callbacks when
// the value actually moved.
func (m *Manager) Set(key string, value any) error {
	m.mu.Lock()
	oldVal := m.v.Get(key)
	m.v.Set(key, value)
	m.normalize()
	newVal := m.v.Get(key)
	err := m.write()
	m.last = m.snapshotValues()
	cbs := make([]ChangeFunc, len(m.callbacks))
	copy(cbs, m.callbacks)
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if fmt.Sprint(oldVal) != fmt.Sprint(newVal) {
		for _, cb := range cbs {
			cb(key, oldVal, newVal)
		}
	}
	return nil
}

// OnChange registers a callback for settings changes, fired for both Set
// calls and external file edits.
func (m *Manager) OnChange(cb ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Snapshot returns a copy of every setting.
func (m *Manager) Snapshot() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Settings
	// Unmarshal never fails here: every key has a typed default.
	_ = m.v.Unmarshal(&s)
	return s
}

func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v.GetString("username")
}

// SetUsername trims and stores a new display name. Blank names are
// ignored; a node never becomes anonymous by accident.
func (m *Manager) SetUsername(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return m.Set("username", name)
}

func (m *Manager) RetentionHours() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v.GetInt("retention_hours")
}

func (m *Manager) SetRetentionHours(hours int) error {
	return m.Set("retention_hours", hours)
}

func (m *Manager) AutoCleanup() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v.GetBool("auto_cleanup")
}

func (m *Manager) SetAutoCleanup(enabled bool) error {
	return m.Set("auto_cleanup", enabled)
}

// MaxFileSize returns the outbound transfer cap in bytes. The inbound cap
// stays at the protocol limit regardless of local settings.
func (m *Manager) MaxFileSize() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := int64(m.v.GetInt("max_file_size_mb")) << 20
	if size > protocol.MaxFileSize {
		return protocol.MaxFileSize
	}
	return size
}

func (m *Manager) DownloadsDir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v.GetString("downloads_dir")
}

func (m *Manager) DBPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v.GetString("db_path")
}

func (m *Manager) KeyPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v.GetString("key_path")
}

func (m *Manager) UDPPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v.GetInt("udp_port")
}

func (m *Manager) TCPPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v.GetInt("tcp_port")
}
