// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pagewright/internal/util"
)

// SiteConfig holds the configuration from the site.yaml file.
type SiteConfig struct {
	Site           SiteInfo      `yaml:"site"`
	Input          InputConfig   `yaml:"input"`
	Output         OutputConfig  `yaml:"output"`
	Watch          WatchConfig   `yaml:"watch"`
	Serve          ServeConfig   `yaml:"serve"`
	Workers        int           `yaml:"workers"`
	PostProcessing []PostProcess `yaml:"post_processing"`
}

// SiteInfo is free-form site metadata exposed to views as globals.
type SiteInfo struct {
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	BaseURL     string `yaml:"baseurl"`
	Description string `yaml:"description"`
}

// Globbing filters files below a directory.
type Globbing struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

type InputConfig struct {
	// Location is the site source root.
	Location string `yaml:"location"`
	// Views is the view directory, absolute or relative to Location.
	Views string `yaml:"views"`
	// Assets is the asset directory, absolute or relative to Location.
	Assets       string           `yaml:"assets"`
	AssetFiles   Globbing         `yaml:"asset_files"`
	Sources      Globbing         `yaml:"sources"`
	VirtualPages []PageDefinition `yaml:"virtual_pages"`
}

// ViewsDir resolves Views against Location.
func (c InputConfig) ViewsDir() string {
	return resolve(c.Location, c.Views)
}

// AssetsDir resolves Assets against Location.
func (c InputConfig) AssetsDir() string {
	return resolve(c.Location, c.Assets)
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

type OutputConfig struct {
	Location string `yaml:"location"`
	// NotBeforeToday drops pages whose published-on date is in the future.
	NotBeforeToday bool `yaml:"not_before_today"`
	// UnsafeHTML keeps raw HTML from sources instead of sanitizing it.
	UnsafeHTML bool `yaml:"unsafe_html"`
	// Clean empties the output directory before a build.
	Clean      bool              `yaml:"clean"`
	Attributes map[string]string `yaml:"attributes"`
	RSS        RSSConfig         `yaml:"rss"`
	Index      IndexConfig       `yaml:"index"`
}

type RSSConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Location    string `yaml:"location"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Link        string `yaml:"link"`
	Copyright   string `yaml:"copyright"`
	TTL         int    `yaml:"ttl"`
}

type IndexConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Location string `yaml:"location"`
	// Attributes lists the attributes copied into each entry. Names with the
	// index- prefix are resolved specially (title, body, description,
	// gravatar, publishedon).
	Attributes []string `yaml:"attributes"`
}

// DefaultIndexAttributes is used when IndexConfig.Attributes is empty.
var DefaultIndexAttributes = []string{"index-title", "index-description", "index-body", "index-publishedon"}

// IndexedAttributes returns the configured attributes or the defaults.
func (c IndexConfig) IndexedAttributes() []string {
	if len(c.Attributes) == 0 {
		return DefaultIndexAttributes
	}
	return c.Attributes
}

type WatchConfig struct {
	// Debounce is how long filesystem activity must settle before a rebuild.
	Debounce time.Duration `yaml:"debounce"`
}

type ServeConfig struct {
	Port  int  `yaml:"port"`
	Watch bool `yaml:"watch"`
}

// PostProcess is a command run after every successful build.
type PostProcess struct {
	Command    []string `yaml:"command"`
	WorkDir    string   `yaml:"workdir"`
	Env        []string `yaml:"env"`
	LogMessage string   `yaml:"log_message"`
}

// PageDefinition declares a virtual page: a listing with no source file.
type PageDefinition struct {
	// Slug may contain {Page} and {Value} placeholders.
	Slug       string            `yaml:"slug"`
	Title      string            `yaml:"title"`
	Attributes map[string]string `yaml:"attributes"`
	View       string            `yaml:"view"`
	Paginated  bool              `yaml:"paginated"`
	// PerValue generates one paginated listing per comma separated value of
	// CriteriaAttribute.
	PerValue          bool   `yaml:"per_value"`
	PageSize          int    `yaml:"page_size"`
	CriteriaAttribute string `yaml:"criteria_attribute"`
	OrderByAttribute  string `yaml:"order_by_attribute"`
	ReverseOrderBy    bool   `yaml:"reverse_order_by"`
}

// DefaultPageDefinition returns the values used for keys a definition omits.
func DefaultPageDefinition() PageDefinition {
	return PageDefinition{
		View:              "default",
		PerValue:          true,
		PageSize:          10,
		CriteriaAttribute: "category",
		OrderByAttribute:  "published-on",
		ReverseOrderBy:    true,
	}
}

// UnmarshalYAML decodes a definition on top of DefaultPageDefinition so
// omitted booleans keep their true defaults.
func (d *PageDefinition) UnmarshalYAML(value *yaml.Node) error {
	type plain PageDefinition
	p := plain(DefaultPageDefinition())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = PageDefinition(p)
	return nil
}

// Default returns a configuration with every default applied.
func Default() SiteConfig {
	return SiteConfig{
		Input: InputConfig{
			Location: ".",
			Views:    "_views",
			Assets:   "_assets",
			AssetFiles: Globbing{
				Includes: []string{"**/*.css", "**/*.js", "**/*.jpg", "**/*.jpeg", "**/*.png", "**/*.gif", "**/*.svg"},
				Excludes: []string{"**/_site/**"},
			},
			Sources: Globbing{
				Includes: []string{"**/*.md", "**/*.markdown"},
				Excludes: []string{"**/*.partial.md", "**/*.partial.markdown", "_archetypes/**"},
			},
		},
		Output: OutputConfig{
			Location:       "_site",
			NotBeforeToday: true,
			Attributes:     map[string]string{},
			RSS: RSSConfig{
				Enabled:     true,
				Location:    "rss.xml",
				Title:       "Blog",
				Description: "Blog",
				Link:        "http://localhost:4200",
				Copyright:   "Built with pagewright",
				TTL:         1800,
			},
			Index: IndexConfig{
				Enabled:  true,
				Location: "index.json",
			},
		},
		Watch: WatchConfig{Debounce: 250 * time.Millisecond},
		Serve: ServeConfig{Port: 4200, Watch: true},
	}
}

// LoadSiteConfig reads path, loads a sibling .env file if present, expands
// ${VAR} references and decodes the YAML on top of Default(). Relative
// input and output locations are resolved against the directory of path.
func LoadSiteConfig(path string) (SiteConfig, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return SiteConfig{}, fmt.Errorf("could not load env file %s: %w", envFile, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return SiteConfig{}, fmt.Errorf("could not read config file at %s: %w", path, err)
	}
	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return SiteConfig{}, err
	}
	base := filepath.Dir(path)
	cfg.Input.Location = resolve(base, cfg.Input.Location)
	cfg.Output.Location = resolve(base, cfg.Output.Location)
	return cfg, nil
}

// Parse decodes YAML on top of Default() and validates the result.
func Parse(data []byte) (SiteConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("could not parse config: %w", err)
	}
	if cfg.Output.Attributes == nil {
		cfg.Output.Attributes = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return SiteConfig{}, err
	}
	return cfg, nil
}

// Validate reports configuration mistakes that would only surface mid-build.
func (c SiteConfig) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must be >= 0, got %s", c.Watch.Debounce))
	}
	for i, d := range c.Input.VirtualPages {
		switch {
		case strings.TrimSpace(d.Slug) == "":
			errs = append(errs, fmt.Errorf("virtual_pages[%d]: slug is required", i))
		case strings.HasPrefix(d.Slug, "/"):
			errs = append(errs, fmt.Errorf("virtual_pages[%d]: slug %q must be relative", i, d.Slug))
		}
		if d.Paginated && d.PageSize < 1 {
			errs = append(errs, fmt.Errorf("virtual_pages[%d]: page_size must be >= 1 when paginated", i))
		}
		if d.CriteriaAttribute == "" {
			errs = append(errs, fmt.Errorf("virtual_pages[%d]: criteria_attribute is required", i))
		}
	}
	for i, p := range c.PostProcessing {
		if len(p.Command) == 0 {
			errs = append(errs, fmt.Errorf("post_processing[%d]: command is required", i))
		}
		for _, env := range p.Env {
			if !strings.Contains(env, "=") {
				errs = append(errs, fmt.Errorf("post_processing[%d]: env entry %q is not KEY=VALUE", i, env))
			}
		}
	}
	return errors.Join(errs...)
}

// WorkerCount returns Workers, or the machine default when unset.
func (c SiteConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return util.MaxWorkers(runtime.NumCPU())
}

// Globals returns the attributes shared by every page: site metadata first,
// then output attributes, which win on conflict.
func (c SiteConfig) Globals() map[string]string {
	g := map[string]string{}
	if c.Site.Title != "" {
		g["site-title"] = c.Site.Title
	}
	if c.Site.Author != "" {
		g["site-author"] = c.Site.Author
	}
	if c.Site.Description != "" {
		g["site-description"] = c.Site.Description
	}
	if c.Site.BaseURL != "" {
		g["site-baseurl"] = c.Site.BaseURL
	}
	for k, v := range c.Output.Attributes {
		g[k] = v
	}
	return g
}
