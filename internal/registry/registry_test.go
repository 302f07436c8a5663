package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aemelyanovff/dart-context/internal/index"
	"github.com/aemelyanovff/dart-context/internal/persist"
)

func singleClassIndex(t *testing.T, root, symbolID, displayName string) *index.Index {
	t.Helper()
	idx := index.New(root, root)
	require.NoError(t, idx.UpdateDocument("lib/a.dart", index.DocumentRecord{
		RelativePath: "lib/a.dart",
		Symbols:      []index.SymbolInfo{{Symbol: index.SymbolId(symbolID), DisplayName: displayName, Kind: index.KindClass}},
		Occurrences: []index.OccurrenceInfo{
			{Symbol: index.SymbolId(symbolID), File: "lib/a.dart", Range: index.Range{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 10}, Roles: index.RoleDefinition},
		},
	}))
	return idx
}

// TestFederationPrecedence verifies testable property 4: for a SymbolId
// defined in multiple loaded indexes, findDefinition returns the
// higher-precedence hit.
func TestFederationPrecedence(t *testing.T) {
	globalCache := t.TempDir()
	workspaceCache := t.TempDir()

	project := singleClassIndex(t, "/project", "Shared", "Shared")
	reg := New(project, globalCache, workspaceCache)

	sdkDir := t.TempDir()
	sdkIdx := singleClassIndex(t, sdkDir, "Shared", "Shared")
	require.NoError(t, persist.Save(sdkIdx, sdkDir, persist.TypeSDK, "dart-sdk", "3.6.0"))
	reg.GlobalCacheDir = globalCache
	// Place the saved artifact where LoadSDK expects it.
	require.NoError(t, copyDir(t, sdkDir, reg.cacheDirFor(ProvenanceSDK, "3.6.0")))

	_, ok := reg.LoadSDK("3.6.0")
	require.True(t, ok)

	occ, owner, ok := reg.FindDefinition("Shared")
	require.True(t, ok)
	assert.Equal(t, project, owner)
	assert.Equal(t, "lib/a.dart", occ.File)
}

// TestFindSymbolsDedup verifies testable property 5: no two entries share
// a SymbolId even when the same id is defined in two indexes.
func TestFindSymbolsDedup(t *testing.T) {
	globalCache := t.TempDir()
	workspaceCache := t.TempDir()

	project := singleClassIndex(t, "/project", "Dup", "Dup")
	reg := New(project, globalCache, workspaceCache)

	localDir := t.TempDir()
	localIdx := singleClassIndex(t, localDir, "Dup", "Dup")
	require.NoError(t, persist.Save(localIdx, localDir, persist.TypeLocal, "sibling", ""))
	require.NoError(t, copyDir(t, localDir, reg.cacheDirFor(ProvenanceLocal, "sibling")))

	_, ok := reg.LoadLocalPackage("sibling")
	require.True(t, ok)

	matches := reg.FindSymbols("Dup")
	seen := map[index.SymbolId]bool{}
	for _, m := range matches {
		assert.False(t, seen[m.Symbol], "duplicate SymbolId in FindSymbols result")
		seen[m.Symbol] = true
	}
	assert.Len(t, matches, 1)
}

func copyDir(t *testing.T, src, dst string) error {
	t.Helper()
	return copyDirRec(src, dst)
}
