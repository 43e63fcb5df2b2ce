package jsonfile

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Count int    `json:"count"`
	URL   string `json:"url"`
}

func TestRead_MissingFileYieldsZero(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "missing.json"))

	got, err := Read[doc](f)
	require.NoError(t, err)
	assert.Equal(t, doc{}, got)
}

func TestRead_MissingFileCreatesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	path := filepath.Join(dir, "visitor.json")

	_, err := Read[doc](New(path))
	require.NoError(t, err)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "Read must not create the parent dir")
	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "Read must not create the lock file")
}

func TestRead_CorruptFileYieldsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	got, err := Read[map[string][]int64](New(path))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRead_WrongShapeYieldsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shape.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	got, err := Read[map[string][]int64](New(path))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdate_SkipsWriteWhenNotSaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skip.json")
	f := New(path)

	err := Update(f, func(v *doc) (bool, error) {
		v.Count = 10
		return false, nil
	})
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpdate_WritesPrettyJSONWithUnescapedSlashes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	f := New(path)

	err := Update(f, func(v *doc) (bool, error) {
		v.Count = 1
		v.URL = "https://example.com/a?b=c&d=<e>"
		return true, nil
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, `"url": "https://example.com/a?b=c&d=<e>"`)
	assert.Contains(t, s, "\n    \"count\": 1")
	assert.False(t, strings.Contains(s, `\/`))
}

func TestUpdate_SerializesConcurrentWriters(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "counter.json"))

	const writers = 25
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			err := Update(f, func(v *doc) (bool, error) {
				v.Count++
				return true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := Read[doc](f)
	require.NoError(t, err)
	assert.Equal(t, writers, got.Count)
}

func TestUpdate_PropagatesCallbackError(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "err.json"))

	err := Update(f, func(v *doc) (bool, error) {
		return true, os.ErrPermission
	})
	assert.ErrorIs(t, err, os.ErrPermission)
}
