package wal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Seq int `json:"seq"`
}

func readSeqs(t *testing.T, w *WAL) []int {
	t.Helper()
	var seqs []int
	err := w.ReadAll(func(jsonRaw []byte) error {
		var e entry
		if err := json.Unmarshal(jsonRaw, &e); err != nil {
			return err
		}
		seqs = append(seqs, e.Seq)
		return nil
	})
	require.NoError(t, err)
	return seqs
}

func TestWAL_WriteReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Write(entry{Seq: i}))
	}
	assert.Equal(t, []int{1, 2, 3}, readSeqs(t, w))

	// 讀取後仍可繼續追加
	require.NoError(t, w.Write(entry{Seq: 4}))
	assert.Equal(t, []int{1, 2, 3, 4}, readSeqs(t, w))
}

func TestWAL_ReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := NewWAL(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(entry{Seq: 1}))
	require.NoError(t, w.Close())

	w, err = NewWAL(path)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []int{1}, readSeqs(t, w))
}

func TestWAL_IgnoresTruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\n{\"seq\":"), FileModeReadOnly))

	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []int{1}, readSeqs(t, w))
}

func TestWAL_Rewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	for i := 1; i <= 5; i++ {
		require.NoError(t, w.Write(entry{Seq: i}))
	}

	err = w.Rewrite(func(jsonRaw []byte) (bool, error) {
		var e entry
		if err := json.Unmarshal(jsonRaw, &e); err != nil {
			return false, err
		}
		return e.Seq > 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, readSeqs(t, w))

	require.NoError(t, w.Write(entry{Seq: 6}))
	assert.Equal(t, []int{4, 5, 6}, readSeqs(t, w))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWAL_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\n{garbage\n{\"seq\":2}\n"), FileModeReadOnly))

	var corrupt []int
	w, err := NewWAL(path, WithCorruptHandler(func(line int, raw []byte) {
		corrupt = append(corrupt, line)
		assert.Equal(t, "{garbage", string(raw))
	}))
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []int{1, 2}, readSeqs(t, w))
	assert.Equal(t, []int{2}, corrupt)

	// Rewrite 後壞掉的行就消失了
	require.NoError(t, w.Rewrite(func([]byte) (bool, error) { return true, nil }))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"seq\":1}\n{\"seq\":2}\n", string(raw))
}

func TestWAL_AppendAfterTruncatedTailStartsNewLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\n{\"seq\":"), FileModeReadOnly))

	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(entry{Seq: 2}))
	assert.Equal(t, []int{1, 2}, readSeqs(t, w))
}
