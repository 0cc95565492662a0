package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	require.Equal(t, "_site", cfg.Output.Location)
	require.True(t, cfg.Output.NotBeforeToday)
	require.True(t, cfg.Output.RSS.Enabled)
	require.Equal(t, 1800, cfg.Output.RSS.TTL)
	require.Equal(t, DefaultIndexAttributes, cfg.Output.Index.IndexedAttributes())
	require.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	require.GreaterOrEqual(t, cfg.WorkerCount(), 1)
	require.Equal(t, filepath.Join(".", "_views"), cfg.Input.ViewsDir())
}

func TestParse_VirtualPageDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
input:
  virtual_pages:
    - slug: blog/{Page}
      title: Posts page {Page}
      paginated: true
      per_value: false
      criteria_attribute: author
      reverse_order_by: false
    - slug: tags/{Value}/{Page}
      paginated: true
      page_size: 5
`))
	require.NoError(t, err)
	require.Len(t, cfg.Input.VirtualPages, 2)

	global := cfg.Input.VirtualPages[0]
	require.False(t, global.PerValue)
	require.False(t, global.ReverseOrderBy)
	require.Equal(t, 10, global.PageSize)
	require.Equal(t, "default", global.View)
	require.Equal(t, "author", global.CriteriaAttribute)

	tags := cfg.Input.VirtualPages[1]
	require.True(t, tags.PerValue)
	require.True(t, tags.ReverseOrderBy)
	require.Equal(t, "category", tags.CriteriaAttribute)
	require.Equal(t, "published-on", tags.OrderByAttribute)
	require.Equal(t, 5, tags.PageSize)
}

func TestParse_OverridesAndDuration(t *testing.T) {
	cfg, err := Parse([]byte(`
workers: 3
watch:
  debounce: 1s
output:
  not_before_today: false
  attributes:
    Key1: Value1
  index:
    attributes: [index-title, lang]
`))
	require.NoError(t, err)
	require.Equal(t, 3, cfg.WorkerCount())
	require.Equal(t, time.Second, cfg.Watch.Debounce)
	require.False(t, cfg.Output.NotBeforeToday)
	require.Equal(t, []string{"index-title", "lang"}, cfg.Output.Index.IndexedAttributes())
	require.Equal(t, "Value1", cfg.Globals()["Key1"])
}

func TestValidate_RejectsBrokenDefinitions(t *testing.T) {
	_, err := Parse([]byte(`
input:
  virtual_pages:
    - title: no slug
    - slug: /absolute
    - slug: ok
      paginated: true
      page_size: 0
post_processing:
  - env: [BROKEN]
`))
	require.Error(t, err)
	require.ErrorContains(t, err, "slug is required")
	require.ErrorContains(t, err, "must be relative")
	require.ErrorContains(t, err, "page_size must be >= 1")
	require.ErrorContains(t, err, "command is required")
	require.ErrorContains(t, err, "not KEY=VALUE")
}

func TestLoadSiteConfig_ExpandsEnvFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PAGEWRIGHT_TEST_TITLE=From Env\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.yaml"), []byte("site:\n  title: ${PAGEWRIGHT_TEST_TITLE}\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("PAGEWRIGHT_TEST_TITLE") })

	cfg, err := LoadSiteConfig(filepath.Join(dir, "site.yaml"))
	require.NoError(t, err)
	require.Equal(t, "From Env", cfg.Site.Title)
	require.Equal(t, "From Env", cfg.Globals()["site-title"])
	require.Equal(t, dir, cfg.Input.Location)
	require.Equal(t, filepath.Join(dir, "_site"), cfg.Output.Location)
	require.Equal(t, filepath.Join(dir, "_views"), cfg.Input.ViewsDir())
}

func TestLoadSiteConfig_MissingFile(t *testing.T) {
	_, err := LoadSiteConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "could not read config file")
}
