package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	dartcontext "github.com/aemelyanovff/dart-context"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a project and keep it current as files change",
	Long:  "Opens the project with the filesystem watcher enabled and prints IndexUpdate events until interrupted.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	target, err := resolveTargetDir(args)
	if err != nil {
		return outputError("watch", err)
	}

	dc, err := dartcontext.Open(context.Background(), target,
		dartcontext.WithCache(!flagNoCache),
		dartcontext.WithLoadDependencies(flagLoadDependencies),
		dartcontext.WithWatch(true),
		dartcontext.WithConfigOverrides(envConfigOverrides(), flagConfigOverrides()),
	)
	if err != nil {
		return outputError("watch", err)
	}
	defer dc.Dispose()

	if err := outputMessage("watch", fmt.Sprintf("watching %s (ctrl-c to stop)", dc.ProjectRoot())); err != nil {
		return err
	}

	updates, cancel := dc.Updates()
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case ev, ok := <-updates:
			if !ok {
				return nil
			}
			printEvent(ev)
		case <-sigCh:
			return nil
		}
	}
}

func printEvent(ev dartcontext.Event) {
	switch ev.Kind {
	case dartcontext.EventInitialIndex:
		fmt.Printf("[initial] files=%d symbols=%d fromCache=%v duration=%s\n", ev.FileCount, ev.SymbolCount, ev.FromCache, ev.Duration)
	case dartcontext.EventFileUpdated:
		fmt.Printf("[updated] %s\n", ev.Path)
	case dartcontext.EventFileRemoved:
		fmt.Printf("[removed] %s\n", ev.Path)
	case dartcontext.EventIndexError:
		fmt.Printf("[error] %s: %s\n", ev.Path, ev.Message)
	}
}
