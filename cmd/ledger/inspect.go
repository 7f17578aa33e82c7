package main

import (
	"github.com/semenkulikov/Online-school/internal/importer"
	"github.com/semenkulikov/Online-school/internal/storage"

	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <path>",
		Short: "Print the sessions, courses and columns inferred from the header rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inspection, err := inspect(cmd, args[0])
			if err != nil {
				return err
			}
			printSchema(cmd.OutOrStdout(), inspection)
			return nil
		},
	}
}

func newLegendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "legend <path>",
		Short: "Print the workbook legend next to the certificate color table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inspection, err := inspect(cmd, args[0])
			if err != nil {
				return err
			}
			printLegend(cmd.OutOrStdout(), inspection)
			return nil
		},
	}
}

func inspect(cmd *cobra.Command, source string) (*importer.Inspection, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	opts, err := importer.OptionsFromConfig(cfg.Importer)
	if err != nil {
		return nil, err
	}
	data, err := storage.ReadSource(cmd.Context(), source, nil)
	if err != nil {
		return nil, err
	}
	return importer.Inspect(cmd.Context(), data, opts)
}
