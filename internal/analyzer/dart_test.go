package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aemelyanovff/dart-context/internal/index"
)

const sampleDart = `import 'package:flutter/widgets.dart';

class AuthRepository {
  login() {
    doLogin();
  }

  void doLogin() {}
}
`

func TestDartAdapter_ResolveUnit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth_repository.dart")
	require.NoError(t, os.WriteFile(path, []byte(sampleDart), 0o644))

	a := NewDartAdapter("auth", dir)
	rec, err := a.ResolveUnit(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, rec)

	var classSym *index.SymbolInfo
	for i := range rec.Symbols {
		if rec.Symbols[i].DisplayName == "AuthRepository" {
			classSym = &rec.Symbols[i]
		}
	}
	require.NotNil(t, classSym)
	assert.Equal(t, index.KindClass, classSym.Kind)

	var loginFound bool
	for _, s := range rec.Symbols {
		if s.DisplayName == "login" && s.EnclosingSymbol == classSym.Symbol {
			loginFound = true
		}
	}
	assert.True(t, loginFound)
}

func TestDartAdapter_ListSourceFiles_SkipsGenerated(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dart"), []byte("class A {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.g.dart"), []byte("class A2 {}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build", "b.dart"), []byte("class B {}"), 0o644))

	a := NewDartAdapter("pkg", dir)
	files, err := a.ListSourceFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "a.dart"), files[0])
}

func TestDartAdapter_ResolveUnit_DeletedFileIsAbsentNotError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth_repository.dart")
	require.NoError(t, os.WriteFile(path, []byte(sampleDart), 0o644))

	a := NewDartAdapter("auth", dir)
	require.NoError(t, os.Remove(path))

	rec, err := a.ResolveUnit(context.Background(), path)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDartAdapter_EmitFeedsFileChanges(t *testing.T) {
	a := NewDartAdapter("pkg", t.TempDir())

	var _ Emitter = a // DartAdapter must satisfy the watcher's Emitter contract

	a.Emit(FileChange{Path: "lib/a.dart", Type: ChangeModified})

	select {
	case c := <-a.FileChanges():
		assert.Equal(t, "lib/a.dart", c.Path)
		assert.Equal(t, ChangeModified, c.Type)
	default:
		t.Fatal("Emit did not deliver to FileChanges")
	}
}

func TestDartAdapter_EmitAfterDisposeIsNoop(t *testing.T) {
	a := NewDartAdapter("pkg", t.TempDir())
	require.NoError(t, a.Dispose())

	assert.NotPanics(t, func() {
		a.Emit(FileChange{Path: "lib/a.dart", Type: ChangeDeleted})
	})
}
