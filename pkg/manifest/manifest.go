package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orbitalworks/starhold/pkg/log"
	"github.com/orbitalworks/starhold/pkg/types"
)

// Document is the generic envelope every manifest file carries. The Spec
// payload is decoded according to Kind.
type Document struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Metadata   Metadata  `yaml:"metadata"`
	Spec       yaml.Node `yaml:"spec"`
}

// Metadata names a manifest document
type Metadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// Bundle is the decoded content of a manifest directory
type Bundle struct {
	ModuleConfigs    []*types.ModuleConfig
	SubModuleConfigs []*types.SubModuleConfig
	UpgradePaths     []*types.UpgradePath
	Buildings        []*types.Building
	Rules            []*types.Rule
}

// LoadDir reads every .yaml/.yml file in dir (non-recursive, sorted by
// name) and returns the combined bundle. Files may contain multiple
// documents separated by "---".
func LoadDir(dir string) (*Bundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	bundle := &Bundle{}
	for _, f := range files {
		if err := loadFileInto(bundle, f); err != nil {
			return nil, err
		}
	}

	logger := log.WithComponent("manifest")
	logger.Info().
		Str("dir", dir).
		Int("files", len(files)).
		Int("module_configs", len(bundle.ModuleConfigs)).
		Int("submodule_configs", len(bundle.SubModuleConfigs)).
		Int("upgrade_paths", len(bundle.UpgradePaths)).
		Int("buildings", len(bundle.Buildings)).
		Int("rules", len(bundle.Rules)).
		Msg("Loaded manifests")
	return bundle, nil
}

// LoadFile reads a single manifest file into a fresh bundle
func LoadFile(path string) (*Bundle, error) {
	bundle := &Bundle{}
	if err := loadFileInto(bundle, path); err != nil {
		return nil, err
	}
	return bundle, nil
}

func loadFileInto(bundle *Bundle, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for i := 0; ; i++ {
		var doc Document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("%s: failed to parse document %d: %w", path, i, err)
		}
		if doc.Kind == "" {
			continue
		}
		if err := dispatch(bundle, &doc); err != nil {
			return fmt.Errorf("%s: document %d (%s): %w", path, i, doc.Kind, err)
		}
	}
	return nil
}

func dispatch(bundle *Bundle, doc *Document) error {
	switch doc.Kind {
	case "ModuleConfig":
		cfg, err := decodeModuleConfig(doc)
		if err != nil {
			return err
		}
		bundle.ModuleConfigs = append(bundle.ModuleConfigs, cfg)
	case "SubModuleConfig":
		cfg, err := decodeSubModuleConfig(doc)
		if err != nil {
			return err
		}
		bundle.SubModuleConfigs = append(bundle.SubModuleConfigs, cfg)
	case "UpgradePath":
		path, err := decodeUpgradePath(doc)
		if err != nil {
			return err
		}
		bundle.UpgradePaths = append(bundle.UpgradePaths, path)
	case "Building":
		b, err := decodeBuilding(doc)
		if err != nil {
			return err
		}
		bundle.Buildings = append(bundle.Buildings, b)
	case "AutomationRule":
		rule, err := decodeRule(doc)
		if err != nil {
			return err
		}
		bundle.Rules = append(bundle.Rules, rule)
	default:
		return fmt.Errorf("unsupported manifest kind: %s", doc.Kind)
	}
	return nil
}

// parseDuration accepts Go duration strings ("90s", "2m30s")
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
