package variants

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/seqinspector/interval"
	"github.com/grailbio/seqinspector/pileup"
)

// CallCounts holds the confident calls found in each region, per sample.
// Regions without any qualifying call are absent.  It is not modified after
// CountCalls returns.
type CallCounts struct {
	calls [pileup.NSample]map[pileup.Key][]Record
}

func newCallCounts() *CallCounts {
	c := &CallCounts{}
	for i := range c.calls {
		c.calls[i] = make(map[pileup.Key][]Record)
	}
	return c
}

// Get returns the number of calls per sample in the region starting at key.
// ok is false when neither sample has a call there.
func (c *CallCounts) Get(key pileup.Key) (n [pileup.NSample]int, ok bool) {
	for i, m := range c.calls {
		if recs, found := m[key]; found {
			n[i] = len(recs)
			ok = true
		}
	}
	return
}

// Records returns the calls of the given sample in the region starting at
// key, in position order.
func (c *CallCounts) Records(sample int, key pileup.Key) []Record {
	return c.calls[sample][key]
}

// Keys returns, for one sample, the regions with at least one call, sorted.
func (c *CallCounts) Keys(sample int) []pileup.Key {
	keys := make([]pileup.Key, 0, len(c.calls[sample]))
	for k := range c.calls[sample] {
		keys = append(keys, k)
	}
	pileup.SortKeys(keys)
	return keys
}

// CountCalls queries every region of every chromosome 1..MaxChrom, in
// order, against each sample's source and counts the records with
// Qual >= minQual.  sources must hold one Source per sample.
func CountCalls(ctx context.Context, sources []Source, regions interval.Regions, minQual float64) (*CallCounts, error) {
	if len(sources) != pileup.NSample {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("variants.CountCalls: got %d sources, want %d", len(sources), pileup.NSample))
	}
	counts := newCallCounts()
	for chrom := 1; chrom <= interval.MaxChrom; chrom++ {
		set, ok := regions[chrom]
		if !ok {
			continue
		}
		log.Debug.Printf("variants.CountCalls: chr%d, %d region(s)", chrom, set.Len())
		for _, iv := range set.Intervals() {
			r := interval.Region{Chrom: chrom, Interval: iv}
			key := pileup.Key{Chrom: chrom, Start: iv.Start}
			for i, src := range sources {
				recs, err := src.Query(ctx, r)
				if err != nil {
					return nil, err
				}
				var kept []Record
				for _, rec := range recs {
					if rec.Qual >= minQual {
						kept = append(kept, rec)
					}
				}
				if len(kept) > 0 {
					counts.calls[i][key] = kept
				}
			}
			if n, ok := counts.Get(key); ok {
				log.Debug.Printf("variants.CountCalls: %s %v", r, n)
			}
		}
	}
	log.Printf("variants.CountCalls: %d and %d region(s) with calls", len(counts.calls[0]), len(counts.calls[1]))
	return counts, nil
}
