// Package dartcontext provides an incrementally-maintained semantic index
// over a Dart or Flutter workspace. It bridges per-package source analysis
// and cross-package symbol federation so that editors, CLIs, and language
// models can ask definition/reference/hierarchy/call-graph questions
// about a project without re-parsing it on every query.
//
// # Usage
//
// Open a project, issue queries, and watch for changes:
//
//	ctx := context.Background()
//	dc, err := dartcontext.Open(ctx, "/path/to/project",
//		dartcontext.WithWatch(true),
//		dartcontext.WithLoadDependencies(true),
//	)
//	if err != nil { ... }
//	defer dc.Dispose()
//
//	res := dc.Query("def AuthRepository")
//
//	updates, cancel := dc.Updates()
//	defer cancel()
//	for ev := range updates { ... }
//
// # Federation
//
// A single project may span a declarative or tool-driven workspace of
// several packages. Open detects the workspace shape, opens one indexer
// per member package, and federates queries across the project's own
// index plus any loaded SDK, framework, hosted, git, or sibling-local
// indexes in a fixed precedence order: the project's own index first, then
// sibling-local, SDK, framework, hosted, and git indexes.
package dartcontext
