package query

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aemelyanovff/dart-context/internal/index"
	"github.com/aemelyanovff/dart-context/internal/registry"
)

func classWithMember(className, memberDisplayName string) (index.SymbolInfo, index.SymbolInfo) {
	cls := index.SymbolInfo{Symbol: index.SymbolId(className), DisplayName: className, Kind: index.KindClass}
	member := index.SymbolInfo{
		Symbol: index.SymbolId(className + "#" + memberDisplayName),
		DisplayName: memberDisplayName, Kind: index.KindMethod, EnclosingSymbol: cls.Symbol,
	}
	return cls, member
}

// TestPipeline_FindThenMembers verifies S5: find Auth* kind:class | members
// returns the de-duplicated union of both classes' members.
func TestPipeline_FindThenMembers(t *testing.T) {
	idx := index.New("/project", "/project")
	repo, repoLogin := classWithMember("AuthRepository", "login")
	svc, svcLogin := classWithMember("AuthService", "login")

	require.NoError(t, idx.UpdateDocument("lib/repo.dart", index.DocumentRecord{
		RelativePath: "lib/repo.dart",
		Symbols:      []index.SymbolInfo{repo, repoLogin},
		Occurrences: []index.OccurrenceInfo{
			{Symbol: repo.Symbol, File: "lib/repo.dart", Range: index.Range{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 10}, Roles: index.RoleDefinition},
			{Symbol: repoLogin.Symbol, File: "lib/repo.dart", Range: index.Range{StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 10}, Roles: index.RoleDefinition},
		},
	}))
	require.NoError(t, idx.UpdateDocument("lib/svc.dart", index.DocumentRecord{
		RelativePath: "lib/svc.dart",
		Symbols:      []index.SymbolInfo{svc, svcLogin},
		Occurrences: []index.OccurrenceInfo{
			{Symbol: svc.Symbol, File: "lib/svc.dart", Range: index.Range{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 10}, Roles: index.RoleDefinition},
			{Symbol: svcLogin.Symbol, File: "lib/svc.dart", Range: index.Range{StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 10}, Roles: index.RoleDefinition},
		},
	}))

	reg := registry.New(idx, t.TempDir(), t.TempDir())
	ex := NewExecutor(reg)

	res := ex.Run(`find Auth* kind:class | members`)
	pipeline, ok := res.(PipelineResult)
	require.True(t, ok)
	members, ok := pipeline.Final.(MembersResult)
	require.True(t, ok)

	names := make([]string, 0, len(members.Members))
	for _, m := range members.Members {
		names = append(names, string(m.Symbol))
	}
	assert.ElementsMatch(t, []string{"AuthRepository#login", "AuthService#login"}, names)
}

// TestPipeline_EmptyPropagation verifies property 7: a stage fed an empty
// implicit set returns an empty result of its own kind, not an error.
func TestPipeline_EmptyPropagation(t *testing.T) {
	idx := index.New("/project", "/project")
	reg := registry.New(idx, t.TempDir(), t.TempDir())
	ex := NewExecutor(reg)

	res := ex.Run(`find NothingMatchesThis* | refs`)
	pipeline, ok := res.(PipelineResult)
	require.True(t, ok)
	refs, ok := pipeline.Final.(ReferencesResult)
	require.True(t, ok)
	assert.Empty(t, refs.Occurrences)
}

// TestHierarchy_CycleSafe verifies property 6: a cyclic supertype chain
// terminates and reports each symbol at most once.
func TestHierarchy_CycleSafe(t *testing.T) {
	idx := index.New("/project", "/project")
	a := index.SymbolInfo{Symbol: "A", DisplayName: "A", Kind: index.KindClass}
	b := index.SymbolInfo{Symbol: "B", DisplayName: "B", Kind: index.KindClass}
	require.NoError(t, idx.UpdateDocument("lib/a.dart", index.DocumentRecord{
		RelativePath: "lib/a.dart",
		Symbols:      []index.SymbolInfo{a, b},
		Occurrences: []index.OccurrenceInfo{
			{Symbol: a.Symbol, File: "lib/a.dart", Range: index.Range{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 1}, Roles: index.RoleDefinition},
			{Symbol: b.Symbol, File: "lib/a.dart", Range: index.Range{StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 1}, Roles: index.RoleDefinition},
		},
		Relationships: []index.Relationship{
			{From: a.Symbol, To: b.Symbol, Kind: index.RelExtends},
			{From: b.Symbol, To: a.Symbol, Kind: index.RelExtends},
		},
	}))

	reg := registry.New(idx, t.TempDir(), t.TempDir())
	ex := NewExecutor(reg)

	res := ex.Run(`hierarchy A`)
	hier, ok := res.(HierarchyResult)
	require.True(t, ok)
	assert.Len(t, hier.Root.Up, 1)
	assert.Equal(t, index.SymbolId("B"), hier.Root.Up[0].Symbol.Symbol)
	// B's own supertype chain back to A must not recurse infinitely, and A
	// (already visited as the root) must not reappear.
	assert.Empty(t, hier.Root.Up[0].Up)
}

func TestRenderText_Search(t *testing.T) {
	res := SearchResult{Pattern: "Auth*", Symbols: []index.SymbolInfo{
		{Symbol: "AuthRepository", DisplayName: "AuthRepository", Kind: index.KindClass},
	}}
	var buf bytes.Buffer
	RenderText(&buf, res)
	assert.Contains(t, buf.String(), "AuthRepository")
}

func TestParse_RejectsUnknownVerb(t *testing.T) {
	_, err := Parse("bogus foo")
	require.Error(t, err)
}

func TestParse_Pipeline(t *testing.T) {
	p, err := Parse(`find Auth* kind:class | members`)
	require.NoError(t, err)
	require.Len(t, p.Stages, 2)
	assert.Equal(t, VerbFind, p.Stages[0].Verb)
	assert.Equal(t, []string{"Auth*"}, p.Stages[0].Args)
	assert.Equal(t, VerbMembers, p.Stages[1].Verb)
}
