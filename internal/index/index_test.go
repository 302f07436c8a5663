package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRepoDoc() DocumentRecord {
	return DocumentRecord{
		RelativePath: "lib/auth_repository.dart",
		Language:     "dart",
		Symbols: []SymbolInfo{
			{Symbol: "AuthRepository", DisplayName: "AuthRepository", Kind: KindClass},
			{Symbol: "AuthRepository#login", DisplayName: "login", Kind: KindMethod, EnclosingSymbol: "AuthRepository"},
		},
		Occurrences: []OccurrenceInfo{
			{Symbol: "AuthRepository", File: "lib/auth_repository.dart", Range: Range{0, 6, 0, 20}, Roles: RoleDefinition},
			{Symbol: "AuthRepository#login", File: "lib/auth_repository.dart", Range: Range{1, 2, 1, 7}, Roles: RoleDefinition},
		},
		LastIndexedAt: time.Now(),
	}
}

func TestUpdateDocument_S1Definition(t *testing.T) {
	idx := New("/proj", "/proj")
	require.NoError(t, idx.UpdateDocument("lib/auth_repository.dart", authRepoDoc()))

	occ, ok := idx.FindDefinition("AuthRepository")
	require.True(t, ok)
	assert.Equal(t, "lib/auth_repository.dart", occ.File)
	assert.True(t, occ.Roles.Has(RoleDefinition))
}

func TestFindReferences_S2CrossFile(t *testing.T) {
	idx := New("/proj", "/proj")
	require.NoError(t, idx.UpdateDocument("lib/auth_repository.dart", authRepoDoc()))
	require.NoError(t, idx.UpdateDocument("lib/login_screen.dart", DocumentRecord{
		RelativePath: "lib/login_screen.dart",
		Occurrences: []OccurrenceInfo{
			{Symbol: "AuthRepository", File: "lib/login_screen.dart", Range: Range{5, 0, 5, 14}, Roles: RoleCall},
		},
	}))

	refs := idx.FindReferences("AuthRepository")
	require.Len(t, refs, 2)
	assert.Equal(t, "lib/auth_repository.dart", refs[0].File)
	assert.Equal(t, "lib/login_screen.dart", refs[1].File)
}

func TestMembersOf_S3(t *testing.T) {
	idx := New("/proj", "/proj")
	require.NoError(t, idx.UpdateDocument("lib/auth_repository.dart", authRepoDoc()))

	members := idx.MembersOf("AuthRepository")
	require.Len(t, members, 1)
	assert.Equal(t, "login", members[0].DisplayName)
	assert.Equal(t, KindMethod, members[0].Kind)
}

// TestPruneOnRemove verifies testable property 3: removing a document
// leaves no trace of it in any derived map.
func TestPruneOnRemove(t *testing.T) {
	idx := New("/proj", "/proj")
	require.NoError(t, idx.UpdateDocument("lib/auth_repository.dart", authRepoDoc()))
	idx.RemoveDocument("lib/auth_repository.dart")

	_, ok := idx.GetSymbol("AuthRepository")
	assert.False(t, ok)
	_, ok = idx.FindDefinition("AuthRepository")
	assert.False(t, ok)
	assert.Empty(t, idx.FindReferences("AuthRepository"))
	assert.Empty(t, idx.MembersOf("AuthRepository"))
	for _, p := range idx.Files() {
		assert.NotEqual(t, "lib/auth_repository.dart", p)
	}
}

// TestIdempotentRefresh verifies testable property 1: re-applying the same
// document twice yields identical stats and derived facts.
func TestIdempotentRefresh(t *testing.T) {
	idx := New("/proj", "/proj")
	doc := authRepoDoc()
	require.NoError(t, idx.UpdateDocument("lib/auth_repository.dart", doc))
	first := idx.Stats()
	firstDef, _ := idx.FindDefinition("AuthRepository")

	require.NoError(t, idx.UpdateDocument("lib/auth_repository.dart", doc))
	second := idx.Stats()
	secondDef, _ := idx.FindDefinition("AuthRepository")

	assert.Equal(t, first.Files, second.Files)
	assert.Equal(t, first.Symbols, second.Symbols)
	assert.Equal(t, first.Definitions, second.Definitions)
	assert.Equal(t, firstDef, secondDef)
}

func TestFindSymbols_GlobCaseFolding(t *testing.T) {
	idx := New("/proj", "/proj")
	require.NoError(t, idx.UpdateDocument("lib/auth_repository.dart", authRepoDoc()))
	require.NoError(t, idx.UpdateDocument("lib/auth_service.dart", DocumentRecord{
		RelativePath: "lib/auth_service.dart",
		Symbols:      []SymbolInfo{{Symbol: "AuthService", DisplayName: "AuthService", Kind: KindClass}},
	}))

	matches := idx.FindSymbols("auth*")
	assert.Len(t, matches, 2)

	sensitive := idx.FindSymbols("Auth*")
	assert.Len(t, sensitive, 2)
}

func TestHierarchy_Supertypes(t *testing.T) {
	idx := New("/proj", "/proj")
	require.NoError(t, idx.UpdateDocument("lib/repo.dart", DocumentRecord{
		RelativePath: "lib/repo.dart",
		Symbols: []SymbolInfo{
			{Symbol: "Base", DisplayName: "Base", Kind: KindClass},
			{Symbol: "Derived", DisplayName: "Derived", Kind: KindClass},
		},
		Relationships: []Relationship{{From: "Derived", To: "Base", Kind: RelExtends}},
	}))

	super := idx.SupertypesOf("Derived")
	require.Len(t, super, 1)
	assert.Equal(t, SymbolId("Base"), super[0].Symbol)

	sub := idx.SubtypesOf("Base")
	require.Len(t, sub, 1)
	assert.Equal(t, SymbolId("Derived"), sub[0].Symbol)
}
