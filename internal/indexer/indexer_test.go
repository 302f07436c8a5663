package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aemelyanovff/dart-context/internal/analyzer"
	"github.com/aemelyanovff/dart-context/internal/index"
)

func TestIndexer_OpenFreshThenRefresh(t *testing.T) {
	srcDir := t.TempDir()
	cacheDir := t.TempDir()
	path := filepath.Join(srcDir, "auth_repository.dart")
	require.NoError(t, os.WriteFile(path, []byte("class AuthRepository {\n  login() {}\n}\n"), 0o644))

	a := analyzer.NewDartAdapter("auth", srcDir)
	ix := New(srcDir, cacheDir, a, WithDebounce(10*time.Millisecond))

	ch, cancel := ix.Events()
	defer cancel()

	require.NoError(t, ix.Open(context.Background(), true))
	assert.Equal(t, StateLoaded, ix.State())

	select {
	case ev := <-ch:
		assert.Equal(t, EventInitialIndex, ev.Kind)
		assert.False(t, ev.FromCache)
		assert.Equal(t, 1, ev.FileCount)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for InitialIndex event")
	}

	require.NoError(t, os.WriteFile(path, []byte("class AuthRepository {\n  login() {}\n  logout() {}\n}\n"), 0o644))
	require.NoError(t, ix.RefreshFile(context.Background(), path))

	select {
	case ev := <-ch:
		assert.Equal(t, EventFileUpdated, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for FileUpdated event")
	}

	var classSymbol string
	for _, s := range ix.Index().AllSymbols() {
		if s.DisplayName == "AuthRepository" {
			classSymbol = string(s.Symbol)
		}
	}
	require.NotEmpty(t, classSymbol)

	members := ix.Index().MembersOf(index.SymbolId(classSymbol))
	assert.Len(t, members, 2)
}

func TestIndexer_RefreshFile_RemovesDeletedFile(t *testing.T) {
	srcDir := t.TempDir()
	cacheDir := t.TempDir()
	path := filepath.Join(srcDir, "auth_repository.dart")
	require.NoError(t, os.WriteFile(path, []byte("class AuthRepository {}\n"), 0o644))

	a := analyzer.NewDartAdapter("auth", srcDir)
	ix := New(srcDir, cacheDir, a, WithDebounce(10*time.Millisecond))
	require.NoError(t, ix.Open(context.Background(), false))
	require.NotEmpty(t, ix.Index().AllSymbols())

	ch, cancel := ix.Events()
	defer cancel()

	require.NoError(t, os.Remove(path))
	require.NoError(t, ix.RefreshFile(context.Background(), path))

	select {
	case ev := <-ch:
		assert.Equal(t, EventFileRemoved, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for FileRemoved event")
	}

	assert.Empty(t, ix.Index().AllSymbols())
}

func TestIndexer_OpenFromCache_RejectsRenamedFile(t *testing.T) {
	srcDir := t.TempDir()
	cacheDir := t.TempDir()
	oldPath := filepath.Join(srcDir, "auth_repository.dart")
	require.NoError(t, os.WriteFile(oldPath, []byte("class AuthRepository {}\n"), 0o644))

	a := analyzer.NewDartAdapter("auth", srcDir)
	ix := New(srcDir, cacheDir, a, WithDebounce(10*time.Millisecond))
	require.NoError(t, ix.Open(context.Background(), true))
	require.NoError(t, ix.Dispose())

	newPath := filepath.Join(srcDir, "renamed.dart")
	require.NoError(t, os.Rename(oldPath, newPath))

	a2 := analyzer.NewDartAdapter("auth", srcDir)
	ix2 := New(srcDir, cacheDir, a2, WithDebounce(10*time.Millisecond))
	defer ix2.Dispose()

	ch, cancel := ix2.Events()
	defer cancel()

	require.NoError(t, ix2.Open(context.Background(), true))

	select {
	case ev := <-ch:
		assert.Equal(t, EventInitialIndex, ev.Kind)
		assert.False(t, ev.FromCache, "a renamed file must force a full re-index, not a stale cache hit")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for InitialIndex event")
	}

	_, hasOld := ix2.Index().Document("auth_repository.dart")
	assert.False(t, hasOld)
	_, hasNew := ix2.Index().Document("renamed.dart")
	assert.True(t, hasNew)
}
