package importer

import (
	"fmt"
	"time"

	"github.com/semenkulikov/Online-school/internal/config"
	"github.com/semenkulikov/Online-school/internal/excel"

	"github.com/xuri/excelize/v2"
)

// Options is everything the importer needs to know about the workbook
// layout and how to read it.
type Options struct {
	Layout excel.Layout
	Header excel.HeaderRules
	Rows   excel.RowRules
	Colors excel.StatusTable
	// Now stamps start dates, enrollment dates and assessment dates of
	// records created by a run.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Layout: excel.DefaultLayout(),
		Header: excel.DefaultHeaderRules(),
		Rows:   excel.DefaultRowRules(),
		Colors: excel.DefaultStatusTable(),
		Now:    time.Now,
	}
}

func OptionsFromConfig(cfg config.ImporterConfig) (Options, error) {
	opts := DefaultOptions()

	nameCol, err := excelize.ColumnNameToNumber(cfg.NameColumn)
	if err != nil {
		return Options{}, fmt.Errorf("invalid name column %q: %w", cfg.NameColumn, err)
	}
	opts.Layout = excel.Layout{
		WeightsRow:      cfg.WeightsRow,
		SessionsRow:     cfg.SessionsRow,
		RolesRow:        cfg.RolesRow,
		FirstStudentRow: cfg.FirstStudentRow,
		NameColumn:      nameCol,
	}

	if cfg.Legend.Column != "" {
		col, err := excelize.ColumnNameToNumber(cfg.Legend.Column)
		if err != nil {
			return Options{}, fmt.Errorf("invalid legend column %q: %w", cfg.Legend.Column, err)
		}
		opts.Layout.Legend = excel.LegendBlock{Column: col, FirstRow: cfg.Legend.FirstRow, LastRow: cfg.Legend.LastRow}
	}

	if cfg.ProximityWindow > 0 {
		opts.Header.ProximityWindow = cfg.ProximityWindow
	}

	opts.Rows, err = excel.CompileRowRules(cfg.NonStudentPatterns, cfg.SuspensionPhrase)
	if err != nil {
		return Options{}, err
	}

	if len(cfg.CertificateColors) > 0 {
		opts.Colors, err = excel.ParseStatusTable(cfg.CertificateColors)
		if err != nil {
			return Options{}, err
		}
	}

	return opts, nil
}
