package pipeline

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/seqinspector/toolrun"
)

// alignmentInputs returns the mates to align for root: the trimmed reads if
// AdapterCleanup produced them, the raw reads otherwise.
func (p *Pipeline) alignmentInputs(ctx context.Context, root string) (string, string, error) {
	labels := p.Config.ReadLabels
	t0, t1 := p.Layout.TrimmedFastq(root, labels[0]), p.Layout.TrimmedFastq(root, labels[1])
	if toolrun.Exists(ctx, t0) && toolrun.Exists(ctx, t1) {
		return t0, t1, nil
	}
	r0, r1 := p.Layout.RawFastq(root, labels[0]), p.Layout.RawFastq(root, labels[1])
	if toolrun.Exists(ctx, r0) && toolrun.Exists(ctx, r1) {
		log.Printf("%s: no trimmed reads, aligning raw reads", root)
		return r0, r1, nil
	}
	return "", "", errors.E(errors.NotExist, "no trimmed or raw reads for "+root)
}

// Align indexes the reference if needed, aligns each sample with bwa mem and
// converts the result to bam.
func Align(ctx context.Context, p *Pipeline) error {
	paths, err := p.tools(p.Config.Tools.Bwa, p.Config.Tools.Samtools)
	if err != nil {
		return err
	}
	bwa, samtools := paths[0], paths[1]
	ref := p.Config.ReferenceFasta
	if err := toolrun.CheckExist(ctx, ref); err != nil {
		return err
	}
	if err := toolrun.MkdirAll(p.Layout.AlignmentsDir()); err != nil {
		return err
	}
	if !toolrun.Exists(ctx, ref+".sa") {
		if err := p.run(ctx, toolrun.Cmd{Path: bwa, Args: []string{"index", "-a", "bwtsw", ref}}); err != nil {
			return err
		}
	}
	for _, root := range p.Config.Roots {
		f0, f1, err := p.alignmentInputs(ctx, root)
		if err != nil {
			return err
		}
		sam, bam := p.Layout.SAM(root), p.Layout.BAM(root)
		if err := p.run(ctx, toolrun.Cmd{Path: bwa, Args: []string{"mem", ref, f0, f1}, Stdout: sam}); err != nil {
			return err
		}
		if err := p.run(ctx, toolrun.Cmd{Path: samtools, Args: []string{"view", "-bS", sam}, Stdout: bam}); err != nil {
			return err
		}
		if err := toolrun.CheckExist(ctx, bam); err != nil {
			return err
		}
		if err := toolrun.Remove(ctx, sam); err != nil {
			return err
		}
	}
	return nil
}

// Dedup removes PCR duplicates from each sample's bam and indexes the
// result.
func Dedup(ctx context.Context, p *Pipeline) error {
	paths, err := p.tools(p.Config.Tools.Samtools)
	if err != nil {
		return err
	}
	samtools := paths[0]
	for _, root := range p.Config.Roots {
		bam := p.Layout.BAM(root)
		if err := toolrun.CheckExist(ctx, bam); err != nil {
			return err
		}
		var (
			collt   = p.Layout.DedupStep(root, "collt")
			fixmate = p.Layout.DedupStep(root, "fixmate")
			sorted  = p.Layout.DedupStep(root, "sort")
			dedup   = p.Layout.DedupBAM(root)
		)
		steps := [][]string{
			{"collate", "-o", collt, bam},
			{"fixmate", "-m", collt, fixmate},
			{"sort", "-o", sorted, fixmate},
			{"markdup", sorted, dedup},
			{"index", dedup},
		}
		for _, args := range steps {
			if err := p.run(ctx, toolrun.Cmd{Path: samtools, Args: args}); err != nil {
				return err
			}
		}
		if err := toolrun.CheckExist(ctx, dedup); err != nil {
			return err
		}
		if err := toolrun.Remove(ctx, collt, fixmate, sorted); err != nil {
			return err
		}
	}
	return nil
}
