package database

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/klokku/daybook/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionURL(t *testing.T) {
	raw := connectionURL(config.Database{
		Host: "db", Port: 5433, User: "daybook", Pass: "p@ss'word/1", Name: "daybook", Schema: "cal",
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db:5433", u.Host)
	assert.Equal(t, "/daybook", u.Path)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss'word/1", password)
	assert.Equal(t, "cal", u.Query().Get("search_path"))
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestFindUpward(t *testing.T) {
	// given
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "migrations"), 0o755))
	nested := filepath.Join(root, "pkg", "native")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	// when
	found, err := findUpward("migrations")

	// then
	require.NoError(t, err)
	expected, _ := filepath.EvalSymlinks(filepath.Join(root, "migrations"))
	actual, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, expected, actual)

	_, err = findUpward("does-not-exist-anywhere")
	assert.Error(t, err)
}
