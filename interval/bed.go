package interval

import (
	"context"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// MergedBEDName is the file name of the merged-region output.
const MergedBEDName = "merged_target_regions.bed"

// WriteMergedBED writes regions to path as "chr{chrom}\t{start}\t{end}" rows,
// chromosomes ascending.  The result can be loaded into a genome browser.
func WriteMergedBED(ctx context.Context, path string, regions Regions) (err error) {
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return errors.E(err, "couldn't create merged region file:", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	if err = regions.Each(func(chrom int, iv Interval) error {
		w.WriteString("chr" + strconv.Itoa(chrom))
		w.WriteUint32(uint32(iv.Start))
		w.WriteUint32(uint32(iv.End))
		return w.EndLine()
	}); err != nil {
		return errors.E(err, "error writing to merged region file:", path)
	}
	if err = w.Flush(); err != nil {
		return errors.E(err, "error writing to merged region file:", path)
	}
	log.Printf("interval.WriteMergedBED: wrote %d region(s) to %s", regions.Len(), path)
	return nil
}

// ReadMergedBED loads a file written by WriteMergedBED.  Intervals are kept
// in file order, without re-merging.  Rows with fewer than three columns are
// skipped.
func ReadMergedBED(ctx context.Context, path string) (Regions, error) {
	regions := Regions{}
	if err := scanRegionFile(ctx, path, func(chrom int, iv Interval) {
		set, ok := regions[chrom]
		if !ok {
			set = &RegionSet{}
			regions[chrom] = set
		}
		set.appendRaw(iv)
	}); err != nil {
		return nil, err
	}
	return regions, nil
}
