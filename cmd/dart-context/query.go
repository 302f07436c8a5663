package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	dartcontext "github.com/aemelyanovff/dart-context"
)

var flagProjectPath string

var queryCmd = &cobra.Command{
	Use:   "query <pipeline...>",
	Short: "Run a query pipeline against an indexed project",
	Long:  "Opens the project (from cache when available), runs the given pipeline, and prints the result. Example: dart-context query find Auth* kind:class '|' members",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&flagProjectPath, "project", ".", "project root to open")
}

func runQuery(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	dc, err := dartcontext.Open(context.Background(), flagProjectPath,
		dartcontext.WithCache(!flagNoCache),
		dartcontext.WithLoadDependencies(flagLoadDependencies),
		dartcontext.WithConfigOverrides(envConfigOverrides(), flagConfigOverrides()),
	)
	if err != nil {
		return outputError("query", err)
	}
	defer dc.Dispose()

	res := dc.Query(text)
	return outputResult("query", res)
}
