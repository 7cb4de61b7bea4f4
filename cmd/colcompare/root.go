package main

import (
	"github.com/JonMunkholm/colcompare/internal/core"
	"github.com/JonMunkholm/colcompare/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "colcompare",
		Short: "Compare the values of one column across two Excel workbooks",
		Long: `colcompare reports which values of a named column appear only in the first
workbook and which appear only in the second. Cells are compared as trimmed
text; empty cells are ignored. Both .xlsx and legacy .xls files are read.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupWriter(cmd.ErrOrStderr(), logLevel, logFormat)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(newDiffCommand())
	root.AddCommand(newServeCommand())
	return root
}

// errorLine formats a command failure for the terminal. Failures with a
// support code get the code and a hint; anything else prints as is.
func errorLine(err error) string {
	if core.IsUserFacing(err) {
		return "Error: " + core.FormatUserError(err)
	}
	return "Error: " + err.Error()
}
