package variants

import (
	"context"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/seqinspector/interval"
	"github.com/grailbio/seqinspector/pileup"
)

// CallsTSVName is the file name of the per-region call-count table.
const CallsTSVName = "calls_per_interval.tsv"

// CallTable maps each region to its per-sample call count.
type CallTable map[pileup.Key][pileup.NSample]int

// Table returns the counts of every region in regions, zeros included.
func (c *CallCounts) Table(regions interval.Regions) CallTable {
	t := CallTable{}
	for chrom := 1; chrom <= interval.MaxChrom; chrom++ {
		set, ok := regions[chrom]
		if !ok {
			continue
		}
		for _, iv := range set.Intervals() {
			key := pileup.Key{Chrom: chrom, Start: iv.Start}
			n, _ := c.Get(key)
			t[key] = n
		}
	}
	return t
}

// WriteCallsTSV writes one "{chrom}\t{start}\t{n0}\t{n1}" row per region,
// chromosomes 1..MaxChrom, regions in set order.  Regions without calls
// get explicit zeros.
func WriteCallsTSV(ctx context.Context, path string, regions interval.Regions, counts *CallCounts) (err error) {
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return errors.E(err, "couldn't create call count file:", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	nRow := 0
	for chrom := 1; chrom <= interval.MaxChrom; chrom++ {
		set, ok := regions[chrom]
		if !ok {
			continue
		}
		for _, iv := range set.Intervals() {
			n, _ := counts.Get(pileup.Key{Chrom: chrom, Start: iv.Start})
			w.WriteString(strconv.Itoa(chrom))
			w.WriteUint32(uint32(iv.Start))
			for _, c := range n {
				w.WriteUint32(uint32(c))
			}
			if err = w.EndLine(); err != nil {
				return errors.E(err, "error writing to call count file:", path)
			}
			nRow++
		}
	}
	if err = w.Flush(); err != nil {
		return errors.E(err, "error writing to call count file:", path)
	}
	log.Printf("variants.WriteCallsTSV: wrote %d row(s) to %s", nRow, path)
	return nil
}

type callsRow struct {
	Chrom int
	Start int
	N0    int
	N1    int
}

// ReadCallsTSV loads a file written by WriteCallsTSV.
func ReadCallsTSV(ctx context.Context, path string) (t CallTable, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, errors.E(errors.NotExist, "call count file", path, err)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	r := tsv.NewReader(in.Reader(ctx))
	t = CallTable{}
	for {
		var row callsRow
		if err = r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, "call count file", path, err)
		}
		if row.Chrom < 1 || row.Chrom > interval.MaxChrom || row.Start < 0 {
			return nil, errors.E(errors.Invalid, "call count file", path, "row out of range")
		}
		t[pileup.Key{Chrom: row.Chrom, Start: interval.PosType(row.Start)}] = [pileup.NSample]int{row.N0, row.N1}
	}
	return t, nil
}
