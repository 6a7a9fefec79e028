// Package report joins per-region depth, coverage and call counts of the
// two samples into one table.
package report

import (
	"context"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/seqinspector/interval"
	"github.com/grailbio/seqinspector/pileup"
	"github.com/grailbio/seqinspector/variants"
	"github.com/montanaflynn/stats"
)

// SummaryName is the file name of the joined table.
const SummaryName = "region_summary.tsv"

// Row is one region of the joined table.  Missing data is explicit: Depth
// and Coverage are meaningful only if HasCoverage, Calls only if HasCalls.
type Row struct {
	pileup.Key
	// End is the region end; zero when the region has no coverage entry.
	End interval.PosType

	HasCoverage bool
	Depth       pileup.Pair
	Coverage    pileup.Pair

	HasCalls bool
	Calls    [pileup.NSample]int

	// Flagged marks a region where the first sample has calls, is deeper
	// than the threshold, and is deeper than the second sample.
	Flagged bool
}

// Build joins cov and calls, producing one row per region present in either,
// sorted by chromosome and start.  depthThreshold is used for Flagged; zero
// means pileup.DefaultDepthThreshold.
func Build(cov *pileup.CoverageSummary, calls variants.CallTable, depthThreshold int) []Row {
	if depthThreshold == 0 {
		depthThreshold = pileup.DefaultDepthThreshold
	}
	seen := map[pileup.Key]bool{}
	var keys []pileup.Key
	if cov != nil {
		for _, k := range cov.Keys() {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range calls {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	pileup.SortKeys(keys)

	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		row := Row{Key: k}
		if cov != nil {
			if rc, ok := cov.Lookup(k); ok {
				row.HasCoverage = true
				row.End = rc.End
				row.Depth = rc.AvgDepth
				row.Coverage = rc.Coverage
			}
		}
		row.Calls, row.HasCalls = calls[k]
		row.Flagged = row.HasCoverage && row.HasCalls &&
			row.Calls[0] > 0 &&
			row.Depth[0] > float64(depthThreshold) &&
			row.Depth[0] > row.Depth[1]
		rows = append(rows, row)
	}
	return rows
}

const missing = "NA"

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// Write writes rows to path as TSV with a header row.  Missing values are
// written as "NA".
func Write(ctx context.Context, path string, rows []Row) (err error) {
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return errors.E(err, "couldn't create region summary:", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("#chrom\tstart\tend\tdepth0\tdepth1\tcoverage0\tcoverage1\tcalls0\tcalls1\tflagged")
	if err = w.EndLine(); err != nil {
		return errors.E(err, "error writing to region summary:", path)
	}
	for _, r := range rows {
		w.WriteString("chr" + strconv.Itoa(r.Chrom))
		w.WriteUint32(uint32(r.Start))
		if r.HasCoverage {
			w.WriteUint32(uint32(r.End))
			for _, d := range r.Depth {
				w.WriteString(formatFloat(d, 2))
			}
			for _, c := range r.Coverage {
				w.WriteString(formatFloat(c, 2))
			}
		} else {
			for i := 0; i < 1+2*pileup.NSample; i++ {
				w.WriteString(missing)
			}
		}
		for _, n := range r.Calls {
			if r.HasCalls {
				w.WriteUint32(uint32(n))
			} else {
				w.WriteString(missing)
			}
		}
		if r.Flagged {
			w.WriteByte('1')
		} else {
			w.WriteByte('0')
		}
		if err = w.EndLine(); err != nil {
			return errors.E(err, "error writing to region summary:", path)
		}
	}
	if err = w.Flush(); err != nil {
		return errors.E(err, "error writing to region summary:", path)
	}
	log.Printf("report.Write: wrote %d region(s) to %s", len(rows), path)
	return nil
}

// SampleStats summarizes the mean depths of one sample over the regions
// with coverage.
type SampleStats struct {
	Regions int
	Mean    float64
	Median  float64
	Max     float64
	// Covered is the mean covered fraction.
	Covered float64
}

// Summarize computes per-sample statistics over rows with coverage.  A
// sample with no such rows gets zero values.
func Summarize(rows []Row) ([pileup.NSample]SampleStats, error) {
	var (
		result   [pileup.NSample]SampleStats
		depths   [pileup.NSample]stats.Float64Data
		coverage [pileup.NSample]stats.Float64Data
	)
	for _, r := range rows {
		if !r.HasCoverage {
			continue
		}
		for i := range depths {
			depths[i] = append(depths[i], r.Depth[i])
			coverage[i] = append(coverage[i], r.Coverage[i])
		}
	}
	for i := range result {
		if depths[i].Len() == 0 {
			continue
		}
		s := SampleStats{Regions: depths[i].Len()}
		var err error
		if s.Mean, err = depths[i].Mean(); err != nil {
			return result, err
		}
		if s.Median, err = depths[i].Median(); err != nil {
			return result, err
		}
		if s.Max, err = depths[i].Max(); err != nil {
			return result, err
		}
		if s.Covered, err = coverage[i].Mean(); err != nil {
			return result, err
		}
		result[i] = s
	}
	return result, nil
}

// Log prints the statistics and the flagged regions.
func Log(rows []Row, sampleStats [pileup.NSample]SampleStats, names [pileup.NSample]string) {
	for i, s := range sampleStats {
		log.Printf("%s: %d region(s), depth mean %.2f median %.2f max %.2f, mean coverage %.2f",
			names[i], s.Regions, s.Mean, s.Median, s.Max, s.Covered)
	}
	for _, r := range rows {
		if r.Flagged {
			log.Printf("chr%d:%d-%d: %d call(s) in %s at depth %.1f vs %.1f", r.Chrom, r.Start, r.End, r.Calls[0], names[0], r.Depth[0], r.Depth[1])
		}
	}
}
