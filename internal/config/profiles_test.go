package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfiles_Builtin(t *testing.T) {
	ps, err := LoadProfiles("")
	require.NoError(t, err)
	assert.Equal(t, []string{"hansindia", "toi-archive"}, ps.Names())

	hans, err := ps.Get("hansindia")
	require.NoError(t, err)
	require.NotNil(t, hans.Sections)
	assert.Equal(t, "#mySidenav li:not(.megamenu) a", hans.Sections.Selector)
	assert.Equal(t, "/", hans.Sections.Prefix)
	assert.Equal(t, "\n", hans.Article.Body.Join)
	assert.Equal(t, "Asia/Kolkata", hans.Article.Timezone)
	assert.True(t, hans.Article.Title.OwnText)
	assert.True(t, hans.Article.Date.OwnText)
	assert.False(t, hans.Article.Body.OwnText)

	toi, err := ps.Get("toi-archive")
	require.NoError(t, err)
	assert.Nil(t, toi.Sections)
	assert.Equal(t, "table", toi.Listing.Scope)
	assert.Equal(t, 1, toi.Listing.ScopeIdx)
	assert.Equal(t, "articleshow", toi.Listing.Contains)
	assert.Equal(t, "|", toi.Article.Date.Split)
	assert.Equal(t, -1, toi.Article.Date.Part)
	require.NotNil(t, toi.ArticleRewrite)
	assert.Equal(t,
		"https://timesofindia.indiatimes.com/x/articleshowprint/1.cms",
		toi.ArticleRewrite.Apply("https://timesofindia.indiatimes.com/x/articleshow/1.cms"))
	assert.Contains(t, toi.ArchiveTemplate, "{serial}")
}

func TestLoadProfiles_FileOverridesAndAdds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `profiles:
  - name: hansindia
    seed: "https://mirror.example.com/"
    listing:
      selector: "a.story"
    article:
      title: {selector: "h1"}
      date: {selector: "time", attr: "datetime"}
      body: {selector: "p", join: "\n"}
  - name: example-feed
    seed: "https://news.example.com/rss.xml"
    listing:
      kind: feed
    article:
      title: {selector: "h1"}
      date: {selector: "time"}
      body: {selector: "article p", join: "\n"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	ps, err := LoadProfiles(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"example-feed", "hansindia", "toi-archive"}, ps.Names())

	hans, err := ps.Get("hansindia")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.com/", hans.Seed)
	assert.Nil(t, hans.Sections)

	feed, err := ps.Get("example-feed")
	require.NoError(t, err)
	assert.Equal(t, models.RuleFeed, feed.Listing.Kind)
}

func TestLoadProfiles_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadProfiles(filepath.Join(dir, "missing.yaml"))
	var cfgErr *models.ConfigError
	assert.True(t, errors.As(err, &cfgErr), "缺失文件应返回ConfigError")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("profiles:\n  - name: broken\n    listing: {}\n"), 0644))
	_, err = LoadProfiles(invalid)
	assert.Error(t, err, "listing缺少selector应被拒绝")

	malformed := filepath.Join(dir, "malformed.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("profiles: [\n"), 0644))
	_, err = LoadProfiles(malformed)
	assert.Error(t, err)

	ps, err := LoadProfiles("")
	require.NoError(t, err)
	_, err = ps.Get("unknown")
	assert.Error(t, err)
}
