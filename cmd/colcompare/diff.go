package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/JonMunkholm/colcompare/internal/core"
	"github.com/spf13/cobra"
)

func newDiffCommand() *cobra.Command {
	var (
		column string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "diff FILE1 FILE2",
		Short: "Print the column values unique to each workbook",
		Example: `  colcompare diff customers-2023.xlsx customers-2024.xls --column "Customer ID"
  colcompare diff a.xlsx b.xlsx -c Email --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			first := core.Source{Path: args[0]}
			second := core.Source{Path: args[1]}

			res := core.NewComparator(nil).Compare(cmd.Context(), first, second, column)
			if res.Err != nil {
				return res.Err
			}

			out := core.Report{
				Column:         column,
				File1Name:      filepath.Base(args[0]),
				File2Name:      filepath.Base(args[1]),
				UniqueToFirst:  res.UniqueToFirst,
				UniqueToSecond: res.UniqueToSecond,
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return printDiff(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVarP(&column, "column", "c", "", "header of the column to compare (case-sensitive)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write the result as JSON")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

func printDiff(w io.Writer, r core.Report) error {
	if _, err := fmt.Fprintf(w, "Column %q\n", r.Column); err != nil {
		return err
	}
	sections := []struct {
		name   string
		values []string
	}{
		{r.File1Name, r.UniqueToFirst},
		{r.File2Name, r.UniqueToSecond},
	}
	for _, s := range sections {
		if _, err := fmt.Fprintf(w, "\nOnly in %s (%d):\n", s.name, len(s.values)); err != nil {
			return err
		}
		for _, v := range s.values {
			if _, err := fmt.Fprintf(w, "  %s\n", v); err != nil {
				return err
			}
		}
	}
	return nil
}
