package persist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aemelyanovff/dart-context/internal/index"
)

func buildSample(sourceRoot string) *index.Index {
	idx := index.New(sourceRoot, sourceRoot)
	_ = idx.UpdateDocument("lib/auth_repository.dart", index.DocumentRecord{
		RelativePath: "lib/auth_repository.dart",
		Language:     "dart",
		Symbols: []index.SymbolInfo{
			{Symbol: "AuthRepository", DisplayName: "AuthRepository", Kind: index.KindClass},
			{Symbol: "AuthRepository#login", DisplayName: "login", Kind: index.KindMethod, EnclosingSymbol: "AuthRepository"},
		},
		Occurrences: []index.OccurrenceInfo{
			{Symbol: "AuthRepository", File: "lib/auth_repository.dart", Range: index.Range{StartLine: 0, StartCol: 6, EndLine: 0, EndCol: 20}, Roles: index.RoleDefinition},
			{Symbol: "AuthRepository#login", File: "lib/auth_repository.dart", Range: index.Range{StartLine: 1, StartCol: 2, EndLine: 1, EndCol: 7}, Roles: index.RoleDefinition},
		},
		LastIndexedAt: time.Now(),
	})
	return idx
}

// TestRoundTrip verifies testable property 2: load(save(idx)) ≡ idx on the
// query-visible surface.
func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	root := t.TempDir()
	original := buildSample(root)

	require.NoError(t, Save(original, dir, TypeProject, "auth", ""))

	loaded, manifest, err := Load(dir, root, "")
	require.NoError(t, err)

	assert.Equal(t, original.Stats().Files, loaded.Stats().Files)
	assert.Equal(t, original.Stats().Symbols, loaded.Stats().Symbols)
	assert.Equal(t, original.Stats().Definitions, loaded.Stats().Definitions)

	origDef, _ := original.FindDefinition("AuthRepository")
	loadedDef, _ := loaded.FindDefinition("AuthRepository")
	assert.Equal(t, origDef, loadedDef)

	assert.Equal(t, TypeProject, manifest.Type)
	assert.Equal(t, root, manifest.SourcePath)
	assert.ElementsMatch(t, original.Files(), manifest.IndexedPaths)
}

func TestDirLock_ExclusiveAcquire(t *testing.T) {
	dir := t.TempDir()
	l1, err := AcquireDirLock(dir)
	require.NoError(t, err)

	_, err = AcquireDirLock(dir)
	assert.Error(t, err)

	require.NoError(t, l1.Release())

	l2, err := AcquireDirLock(dir)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}
