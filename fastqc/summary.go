// Package fastqc reads the reports FastQC leaves in its output directories.
package fastqc

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Status values in summary.txt.
const (
	Pass = "PASS"
	Warn = "WARN"
	Fail = "FAIL"
	// OK marks a module with no flag in FlagTable.
	OK = "OK"
)

// DirName returns the directory FastQC unpacks its report for
// {root}_{label}.fastq into.
func DirName(outDir, root, label string) string {
	return filepath.Join(outDir, root+"_"+label+"_fastqc")
}

// Flag is one WARN or FAIL line of summary.txt.
type Flag struct {
	Status string
	Module string
	File   string
}

// ParseSummary returns the WARN and FAIL lines of a summary.txt, sorted.
func ParseSummary(r io.Reader) ([]Flag, error) {
	var flags []Flag
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, Warn) && !strings.Contains(line, Fail) {
			continue
		}
		fields := strings.Split(line, "\t")
		f := Flag{Status: fields[0]}
		if len(fields) > 1 {
			f.Module = fields[1]
		}
		if len(fields) > 2 {
			f.File = fields[2]
		}
		flags = append(flags, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.Slice(flags, func(i, j int) bool {
		if flags[i].Status != flags[j].Status {
			return flags[i].Status < flags[j].Status
		}
		if flags[i].Module != flags[j].Module {
			return flags[i].Module < flags[j].Module
		}
		return flags[i].File < flags[j].File
	})
	return flags, nil
}

// ReadSummary reads summary.txt from the report directory dir.
func ReadSummary(ctx context.Context, dir string) (flags []Flag, err error) {
	path := filepath.Join(dir, "summary.txt")
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, errors.E(errors.NotExist, "fastqc summary", path, err)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if flags, err = ParseSummary(in.Reader(ctx)); err != nil {
		return nil, errors.E(err, "reading", path)
	}
	return flags, nil
}

// Report is the summary of one fastq file.
type Report struct {
	Root  string
	Label string
	Flags []Flag
}

// FlagTable lays out the flags of several reports as one row per flagged
// module and one column per report.
type FlagTable struct {
	// Columns names the reports, "{root} {label}".
	Columns []string
	// Modules lists the flagged modules, sorted.
	Modules []string
	// Cells[i][j] is the status of Modules[i] in report j, or OK.
	Cells [][]string
}

// NewFlagTable builds the table for reports, keeping their order.
func NewFlagTable(reports []Report) FlagTable {
	var (
		t       FlagTable
		status  = make([]map[string]string, len(reports))
		modules = map[string]bool{}
	)
	for j, r := range reports {
		t.Columns = append(t.Columns, r.Root+" "+r.Label)
		status[j] = map[string]string{}
		for _, f := range r.Flags {
			status[j][f.Module] = f.Status
			modules[f.Module] = true
		}
	}
	for m := range modules {
		t.Modules = append(t.Modules, m)
	}
	sort.Strings(t.Modules)
	for _, m := range t.Modules {
		row := make([]string, len(reports))
		for j := range reports {
			if s, ok := status[j][m]; ok {
				row[j] = s
			} else {
				row[j] = OK
			}
		}
		t.Cells = append(t.Cells, row)
	}
	return t
}

// Write writes the table as TSV with a header row.
func (t FlagTable) Write(w io.Writer) error {
	tw := tsv.NewWriter(w)
	tw.WriteString("module")
	for _, c := range t.Columns {
		tw.WriteString(c)
	}
	if err := tw.EndLine(); err != nil {
		return err
	}
	for i, m := range t.Modules {
		tw.WriteString(m)
		for _, s := range t.Cells[i] {
			tw.WriteString(s)
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}
