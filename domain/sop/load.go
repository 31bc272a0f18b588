package sop

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"metaboqc/domain/core"
)

//go:embed defaults/*.yaml
var defaultFiles embed.FS

// Names lists the built-in SOPs.
func Names() []string {
	entries, err := defaultFiles.ReadDir("defaults")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Default returns a built-in SOP by name.
func Default(name string) (*SOP, error) {
	data, err := defaultFiles.ReadFile("defaults/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s (available: %s)", core.ErrSOPNotFound, name, strings.Join(Names(), ", "))
	}
	s := &SOP{}
	if err := decodeStrict(data, s); err != nil {
		return nil, core.NewConfigurationError(name, err.Error())
	}
	return s, nil
}

// ForPlatform returns the generic built-in SOP for a platform.
func ForPlatform(p Platform) (*SOP, error) {
	switch p {
	case PlatformMS:
		return Default("GenericMS")
	case PlatformTargetedMS:
		return Default("TargetedMS")
	case PlatformNMR:
		return Default("GenericNMRUrine")
	default:
		return nil, core.NewConfigurationError("platform", fmt.Sprintf("unknown platform %q", p))
	}
}

// Load resolves ref either as a built-in name or as a path to a YAML file. A
// file may name a built-in under `base:` (or only a `platform:`), in which
// case its values overlay that default.
func Load(ref string) (*SOP, error) {
	if !strings.HasSuffix(ref, ".yaml") && !strings.HasSuffix(ref, ".yml") {
		s, err := Default(ref)
		if err != nil {
			return nil, err
		}
		return s, s.Validate()
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrSOPNotFound, ref, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
	}
	return s, s.Validate()
}

// Parse decodes an SOP document, overlaying it on its base. The result is not
// validated.
func Parse(data []byte) (*SOP, error) {
	var head struct {
		Base     string   `yaml:"base"`
		Platform Platform `yaml:"platform"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, core.NewConfigurationError("sop", err.Error())
	}

	var s *SOP
	var err error
	switch {
	case head.Base != "":
		s, err = Default(head.Base)
	case head.Platform != "":
		s, err = ForPlatform(head.Platform)
	default:
		s, err = &SOP{}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := decodeStrict(data, s); err != nil {
		return nil, core.NewConfigurationError("sop", err.Error())
	}
	return s, nil
}

// Marshal renders the SOP as YAML, used to record the effective settings next
// to a report.
func (s *SOP) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

func decodeStrict(data []byte, into *SOP) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(into)
}
