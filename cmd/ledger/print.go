package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/semenkulikov/Online-school/internal/excel"
	"github.com/semenkulikov/Online-school/internal/importer"
	"github.com/semenkulikov/Online-school/internal/model"

	"github.com/xuri/excelize/v2"
)

func columnName(col int) string {
	if col <= 0 {
		return "-"
	}
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return fmt.Sprint(col)
	}
	return name
}

func printReport(w io.Writer, runID string, report *model.RunReport) {
	mode := "imported"
	if report.DryRun {
		mode = "dry run (rolled back)"
	}
	fmt.Fprintf(w, "run %s: %s\n", runID, mode)
	fmt.Fprintf(w, "students: %d, skipped rows: %d, skipped cells: %d\n",
		report.Students, report.SkippedRows, report.SkippedCells)
	if report.SuspendedFrom > 0 {
		fmt.Fprintf(w, "suspended from row %d\n", report.SuspendedFrom)
	}
	if !report.StatisticsFound {
		fmt.Fprintln(w, "statistics columns not found")
	}

	entities := make([]string, 0, len(report.Entities))
	for name := range report.Entities {
		entities = append(entities, name)
	}
	sort.Strings(entities)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tCREATED\tUPDATED\tUNCHANGED")
	for _, name := range entities {
		c := report.Entities[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", name, c.Created, c.Updated, c.Unchanged)
	}
	tw.Flush()

	for _, n := range report.Notices {
		fmt.Fprintln(w, "note:", n)
	}
}

func printSchema(w io.Writer, in *importer.Inspection) {
	fmt.Fprintf(w, "sheet %q\n", in.Sheet)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tPRESENCE\tCOURSE\tASSESSMENTS\tRESULT\tCERTIFICATE")
	for _, sess := range in.Schema.Sessions {
		if len(sess.Courses) == 0 {
			fmt.Fprintf(tw, "%d\t%s\t-\t-\t-\t-\n", sess.Number, columnName(sess.PresenceColumn))
			continue
		}
		for _, c := range sess.Courses {
			var assessments string
			for i, a := range c.Assessments {
				if i > 0 {
					assessments += ", "
				}
				assessments += a.Name + "@" + columnName(a.Column)
				if a.Weight != nil {
					assessments += fmt.Sprintf(" (%g)", *a.Weight)
				}
			}
			if assessments == "" {
				assessments = "-"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", sess.Number, columnName(sess.PresenceColumn),
				c.Title, assessments, columnName(c.ResultColumn), columnName(c.CertificateColumn))
		}
	}
	tw.Flush()

	if in.Schema.Stats.Complete() {
		fmt.Fprintln(w, "statistics:")
		fields := make([]string, 0, len(in.Schema.Stats))
		for f := range in.Schema.Stats {
			fields = append(fields, string(f))
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(w, "  %s@%s\n", f, columnName(in.Schema.Stats[excel.StatField(f)]))
		}
	} else {
		fmt.Fprintln(w, "statistics: not found")
	}

	fmt.Fprintf(w, "students: %d, skipped rows: %d\n", len(in.Rows.Students), len(in.Rows.Skipped))
	if in.Rows.SuspensionRow > 0 {
		fmt.Fprintf(w, "suspended from row %d\n", in.Rows.SuspensionRow)
	}
	for _, n := range in.Schema.Notices {
		fmt.Fprintln(w, "note:", n)
	}
}

func printLegend(w io.Writer, in *importer.Inspection) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ROW\tTEXT\tCOLOR\tSTATUS")
	for _, e := range in.Legend {
		color := "-"
		if e.HasColor {
			color = string(e.Color)
		}
		status := "unrecognized"
		if e.Recognized {
			status = string(e.Status)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Row, e.Text, color, status)
	}
	if len(in.Legend) == 0 {
		fmt.Fprintln(tw, "-\tno legend block configured or found\t-\t-")
	}
	tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintln(tw, "COLOR\tSTATUS")
	for _, key := range in.Colors.Keys() {
		fmt.Fprintf(tw, "%s\t%s\n", key, in.Colors[key])
	}
	tw.Flush()
}
