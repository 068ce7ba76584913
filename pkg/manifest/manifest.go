// Package manifest loads and validates a template's stencil.toml (or
// stencil.yaml), the document that declares options, exclusion rules,
// raw-copy globs and the marker delimiters used by the renderer.
//
// Settings are layered the same way application config is: embedded
// engine defaults, then the user's global config, then the template's
// own manifest, each level overriding the previous one.
package manifest

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/logging"
	"github.com/TheBestAstroNOT/stencil/pkg/rules"
	"github.com/TheBestAstroNOT/stencil/pkg/schema"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
)

// FileNames are the manifest file names probed at the template root, in
// order of preference.
var FileNames = []string{"stencil.toml", "stencil.yaml", "stencil.yml"}

// Delimiters configures the marker syntax the renderer recognizes.
// They are configuration, not engine constants.
type Delimiters struct {
	PlaceholderOpen  string `koanf:"placeholder_open"`
	PlaceholderClose string `koanf:"placeholder_close"`
	BlockOpen        string `koanf:"block_open"`
	BlockClose       string `koanf:"block_close"`
}

// TemplateInfo is the [template] section: metadata plus raw-copy globs.
type TemplateInfo struct {
	Name        string   `koanf:"name"`
	Description string   `koanf:"description"`
	Raw         []string `koanf:"raw"`
}

// OptionSpec is one [options.<name>] table.
type OptionSpec struct {
	Kind    string      `koanf:"kind"`
	Default interface{} `koanf:"default"`
	Prompt  string      `koanf:"prompt"`
	Choices []string    `koanf:"choices"`
	Pattern string      `koanf:"pattern"`
	When    string      `koanf:"when"`
}

// ExcludeSpec is one [[exclude]] table.
type ExcludeSpec struct {
	When  string   `koanf:"when"`
	Paths []string `koanf:"paths"`
}

// Manifest is the parsed template manifest.
type Manifest struct {
	Template TemplateInfo          `koanf:"template"`
	Engine   Delimiters            `koanf:"engine"`
	Options  map[string]OptionSpec `koanf:"options"`
	Exclude  []ExcludeSpec         `koanf:"exclude"`

	// Path is the manifest file name that was loaded, relative to the
	// template root.
	Path string `koanf:"-"`
}

// Load reads the manifest from the template root through fsys, layered
// over the embedded engine defaults and the user's global config.
func Load(fsys types.FS, templateDir string) (*Manifest, error) {
	logger := logging.GetLogger("manifest")

	k := koanf.New(".")

	// 1. Embedded engine defaults.
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to load embedded defaults")
	}

	// 2. User-level overrides, when present.
	userConfig := filepath.Join(xdg.ConfigHome, "stencil", "stencil.toml")
	if _, err := os.Stat(userConfig); err == nil {
		if err := k.Load(file.Provider(userConfig), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrManifestParse,
				"failed to load user config %s", userConfig)
		}
		logger.Debug().Str("path", userConfig).Msg("loaded user config")
	}

	// 3. The template's own manifest.
	name, data, err := readManifest(fsys, templateDir)
	if err != nil {
		return nil, err
	}
	parser := manifestParser(name)
	if err := k.Load(&rawBytesProvider{bytes: data}, parser); err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse,
			"failed to parse %s", name).
			WithDetail("path", name)
	}

	var m Manifest
	if err := k.Unmarshal("", &m); err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse,
			"failed to decode %s", name).
			WithDetail("path", name)
	}
	m.Path = name

	if err := m.validate(); err != nil {
		return nil, err
	}

	logger.Debug().
		Str("template", m.Template.Name).
		Int("optionCount", len(m.Options)).
		Int("excludeCount", len(m.Exclude)).
		Msg("manifest loaded")
	return &m, nil
}

func readManifest(fsys types.FS, templateDir string) (string, []byte, error) {
	for _, name := range FileNames {
		p := path.Join(templateDir, name)
		if _, err := fsys.Stat(p); err != nil {
			continue
		}
		data, err := fsys.ReadFile(p)
		if err != nil {
			return "", nil, errors.Wrapf(err, errors.ErrFileRead, "failed to read %s", p).
				WithDetail("path", p)
		}
		return name, data, nil
	}
	return "", nil, errors.Newf(errors.ErrManifestLoad,
		"no manifest found in %s (expected one of %s)",
		templateDir, strings.Join(FileNames, ", ")).
		WithDetail("dir", templateDir)
}

func manifestParser(name string) koanf.Parser {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return yaml.Parser()
	}
	return toml.Parser()
}

func (m *Manifest) validate() error {
	d := m.Engine
	if d.PlaceholderOpen == "" || d.PlaceholderClose == "" ||
		d.BlockOpen == "" || d.BlockClose == "" {
		return errors.New(errors.ErrManifestInvalid, "engine delimiters must not be empty")
	}
	if d.PlaceholderOpen == d.BlockOpen {
		return errors.New(errors.ErrManifestInvalid,
			"placeholder and block open delimiters must differ")
	}
	for i, ex := range m.Exclude {
		if len(ex.Paths) == 0 {
			return errors.Newf(errors.ErrManifestInvalid,
				"exclusion rule %d names no paths", i)
		}
	}
	return nil
}

// Schema builds the validated option schema from the [options] tables.
// Option declaration order inside a TOML document is not observable
// after decoding, so options are ordered by name; resolution order is
// governed by activation dependencies anyway.
func (m *Manifest) Schema() (*schema.Schema, error) {
	names := make([]string, 0, len(m.Options))
	for name := range m.Options {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]schema.Option, 0, len(names))
	for _, name := range names {
		spec := m.Options[name]
		opt, err := specToOption(name, spec)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return schema.New(opts)
}

func specToOption(name string, spec OptionSpec) (schema.Option, error) {
	kind, err := schema.ParseKind(spec.Kind)
	if err != nil {
		return schema.Option{}, errors.Wrapf(err, errors.ErrManifestInvalid,
			"option %q", name).WithDetail("option", name)
	}

	opt := schema.Option{
		Name:    name,
		Kind:    kind,
		Prompt:  spec.Prompt,
		Choices: spec.Choices,
		Pattern: spec.Pattern,
		When:    spec.When,
	}

	if spec.Default != nil {
		switch d := spec.Default.(type) {
		case bool:
			v := types.BoolValue(d)
			opt.Default = &v
		case string:
			v := types.StringValue(d)
			opt.Default = &v
		default:
			return schema.Option{}, errors.Newf(errors.ErrManifestInvalid,
				"default of option %q must be a boolean or a string, got %T", name, spec.Default).
				WithDetail("option", name)
		}
	}
	return opt, nil
}

// Rules converts the [[exclude]] tables to compiled exclusion rules.
func (m *Manifest) Rules() ([]rules.Rule, error) {
	out := make([]rules.Rule, len(m.Exclude))
	for i, ex := range m.Exclude {
		out[i] = rules.Rule{When: ex.When, Paths: ex.Paths}
	}
	return rules.Compile(out)
}

// IsRaw reports whether a template-relative path matches one of the
// raw-copy globs; raw files are copied verbatim, never scanned.
func (m *Manifest) IsRaw(rel string) bool {
	base := path.Base(rel)
	for _, pattern := range m.Template.Raw {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
