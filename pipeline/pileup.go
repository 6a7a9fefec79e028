package pipeline

import (
	"context"
	"path/filepath"

	"github.com/grailbio/base/log"
	"github.com/grailbio/seqinspector/interval"
	"github.com/grailbio/seqinspector/pileup"
	"github.com/grailbio/seqinspector/toolrun"
)

// MergeRegions merges the target region files of both samples.
func (p *Pipeline) MergeRegions(ctx context.Context) (*interval.Merged, error) {
	paths := make([]string, len(p.Config.Roots))
	for i, root := range p.Config.Roots {
		paths[i] = p.Layout.RegionFile(root)
	}
	if err := toolrun.CheckExist(ctx, paths...); err != nil {
		return nil, err
	}
	return interval.Merge(ctx, paths, interval.MergeOpts{Collapse: p.Config.Collapse, SanityCheck: true})
}

// PileupCoverage merges the target regions, records them in a BED file and
// runs samtools mpileup over both deduplicated bams for each merged region.
func PileupCoverage(ctx context.Context, p *Pipeline) error {
	paths, err := p.tools(p.Config.Tools.Samtools)
	if err != nil {
		return err
	}
	samtools := paths[0]
	bams := make([]string, len(p.Config.Roots))
	for i, root := range p.Config.Roots {
		bams[i] = p.Layout.DedupBAM(root)
	}
	if err := toolrun.CheckExist(ctx, bams...); err != nil {
		return err
	}
	merged, err := p.MergeRegions(ctx)
	if err != nil {
		return err
	}
	outDir := p.Layout.CoverageDir()
	if err := toolrun.MkdirAll(outDir); err != nil {
		return err
	}
	if err := interval.WriteMergedBED(ctx, p.Layout.MergedBED(), merged.Regions); err != nil {
		return err
	}
	return merged.Regions.Each(func(chrom int, iv interval.Interval) error {
		r := interval.Region{Chrom: chrom, Interval: iv}
		args := append([]string{"mpileup", "-a", "-r", r.String(), "-o", filepath.Join(outDir, pileup.FileName(r))}, bams...)
		return p.run(ctx, toolrun.Cmd{Path: samtools, Args: args})
	})
}

// DepthCoverage summarizes the pileup files written by PileupCoverage.
func DepthCoverage(ctx context.Context, p *Pipeline) error {
	dir := p.Layout.CoverageDir()
	if err := toolrun.CheckExist(ctx, dir); err != nil {
		return err
	}
	summary, err := pileup.SummarizeCoverage(ctx, dir, pileup.CoverageOpts{DepthThreshold: p.Config.DepthThreshold})
	if err != nil {
		return err
	}
	roots := p.Config.Roots
	log.Printf("region\tdepth %s\tdepth %s\tcoverage %s\tcoverage %s", roots[0], roots[1], roots[0], roots[1])
	for _, key := range summary.Keys() {
		rc, _ := summary.Lookup(key)
		r := interval.Region{Chrom: key.Chrom, Interval: interval.Interval{Start: key.Start, End: rc.End}}
		log.Printf("%s\t%.2f\t%.2f\t%.2f\t%.2f", r, rc.AvgDepth[0], rc.AvgDepth[1], rc.Coverage[0], rc.Coverage[1])
	}
	return nil
}
