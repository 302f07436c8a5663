package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aemelyanovff/dart-context/internal/query"
)

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command string       `json:"command"`
	Result  query.Result `json:"result,omitempty"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// outputResult writes result to stdout in the selected format.
func outputResult(command string, result query.Result) error {
	if flagFormat == "text" {
		query.RenderText(os.Stdout, result)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResult{Command: command, Result: result})
}

// outputMessage writes a plain status message, used by commands (index,
// watch) that don't produce a query.Result.
func outputMessage(command, message string) error {
	if flagFormat == "text" {
		fmt.Fprintln(os.Stdout, message)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResult{Command: command, Message: message})
}

// outputError writes an error in the selected format and returns it so
// RunE can propagate it to cobra's exit-code handling.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}
