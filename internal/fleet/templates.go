package fleet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/nerrad567/devicesim/internal/device"
)

const templateExt = ".json"

// Template describes a family of devices:
//
//	{
//	  "nombre": "Luz salon",
//	  "serial_prefix": "LUZ",
//	  "tipo": "luz",
//	  "parametros": {"consumo_w": {"tipo": "float", "min": 0, "max": 60}},
//	  "configuracion": {"intervalo_envio": 5}
//	}
type Template struct {
	// Key is the file name without extension; set by LoadTemplates.
	Key string `json:"-"`

	Name         string         `json:"nombre"`
	SerialPrefix string         `json:"serial_prefix"`
	Kind         string         `json:"tipo"`
	Capability   string         `json:"capacidad"`
	Parameters   device.Rules   `json:"parametros"`
	Config       map[string]any `json:"configuracion"`
}

// SendInterval returns the template's initial "intervalo_envio", read the
// same way as a remote configuration document, or false when it declares
// no usable value.
func (t Template) SendInterval() (time.Duration, bool) {
	return device.ParseSendInterval(t.Config["intervalo_envio"])
}

// Templates is a set of templates keyed by file name.
type Templates map[string]Template

// Names returns the template keys in sorted order.
func (ts Templates) Names() []string {
	return slices.Sorted(maps.Keys(ts))
}

// Get returns the template stored under key.
func (ts Templates) Get(key string) (Template, error) {
	t, ok := ts[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}
	return t, nil
}

// LoadTemplates reads every *.json file in dir. A missing directory
// yields an empty set.
//
// Parameters:
//   - dir: Directory holding template files
//
// Returns:
//   - Templates: Keyed by file name without ".json"
//   - error: ErrInvalidTemplate for a file that does not decode
func LoadTemplates(dir string) (Templates, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Templates{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading templates directory: %w", err)
	}

	templates := make(Templates, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, templateExt) {
			continue
		}

		t, err := loadTemplate(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		t.Key = strings.TrimSuffix(name, templateExt)
		templates[t.Key] = t
	}

	return templates, nil
}

func loadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from the configured templates directory
	if err != nil {
		return Template{}, fmt.Errorf("reading template %s: %w", path, err)
	}

	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return Template{}, fmt.Errorf("%w: %s: %w", ErrInvalidTemplate, filepath.Base(path), err)
	}
	if t.SerialPrefix == "" {
		t.SerialPrefix = DefaultSerialPrefix
	}
	return t, nil
}
