package imagestore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"grimoire/pkg/imagestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := imagestore.NewLocal(dir, "http://localhost:8080/")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "cover.JPG", strings.NewReader("fake-jpeg-bytes"), 15, "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/images/"), url)
	assert.True(t, strings.HasSuffix(url, ".jpg"), url)

	// The bytes landed on disk under the generated name
	name := url[strings.LastIndex(url, "/")+1:]
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "fake-jpeg-bytes", string(data))

	// Two saves of the same filename never collide
	url2, err := store.Save(context.Background(), "cover.JPG", strings.NewReader("other"), 5, "image/jpeg")
	require.NoError(t, err)
	assert.NotEqual(t, url, url2)

	require.NoError(t, store.Remove(context.Background(), url))
	_, err = os.Stat(filepath.Join(dir, name))
	assert.True(t, os.IsNotExist(err))

	// Removing the same URL twice fails, which the callers only log
	assert.Error(t, store.Remove(context.Background(), url))
}

func TestLocal_RemoveRejectsForeignURLs(t *testing.T) {
	store, err := imagestore.NewLocal(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	assert.Error(t, store.Remove(context.Background(), "http://elsewhere/files/foo.jpg"))
	assert.Error(t, store.Remove(context.Background(), "http://localhost:8080/images/../secrets"))
	assert.Error(t, store.Remove(context.Background(), "http://localhost:8080/images/"))
}

func TestLocal_UnknownExtensionDropped(t *testing.T) {
	store, err := imagestore.NewLocal(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "weird.exe", strings.NewReader("x"), 1, "application/octet-stream")
	require.NoError(t, err)
	assert.False(t, strings.Contains(url, ".exe"), url)
}
