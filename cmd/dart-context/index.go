package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aemelyanovff/dart-context/internal/query"

	dartcontext "github.com/aemelyanovff/dart-context"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a Dart/Flutter project and its workspace packages",
	Long:  "Detects the project's workspace shape, resolves each member package, and writes a persisted index per package plus a federation manifest.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	target, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}

	dc, err := dartcontext.Open(context.Background(), target,
		dartcontext.WithCache(!flagNoCache),
		dartcontext.WithLoadDependencies(flagLoadDependencies),
		dartcontext.WithConfigOverrides(envConfigOverrides(), flagConfigOverrides()),
	)
	if err != nil {
		return outputError("index", err)
	}
	defer dc.Dispose()

	res := dc.Query("stats")
	stats, ok := res.(query.StatsResult)
	if !ok {
		return outputError("index", fmt.Errorf("unexpected result computing stats: %T", res))
	}
	return outputResult("index", stats)
}
