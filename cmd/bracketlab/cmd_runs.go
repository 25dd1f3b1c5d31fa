package main

import (
	"fmt"
	"text/tabwriter"

	"bracketlab/domain/core"
	"bracketlab/internal/errors"
	"bracketlab/internal/report"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRunsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse stored runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tTRAIN\tTEST\tCRITERION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, humanize.Time(r.CreatedAt), r.Source,
					humanize.Comma(int64(r.TrainGames)), humanize.Comma(int64(r.TestGames)), r.Criterion)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")

	var format, xlsx string
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a stored run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseRunID(args[0])
			if err != nil {
				return errors.WithCode(errors.CodeInvalidInput, err)
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			s, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := s.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if xlsx != "" {
				if err := report.SaveWorkbook(xlsx, r); err != nil {
					return err
				}
			}
			return report.Render(cmd.OutOrStdout(), r, f)
		},
	}
	show.Flags().StringVar(&format, "format", "text", "text, markdown, html or json")
	show.Flags().StringVar(&xlsx, "xlsx", "", "also write an Excel workbook")

	cmd.AddCommand(list, show)
	return cmd
}
