package pipeline

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/seqinspector/config"
	"github.com/grailbio/seqinspector/interval"
	"github.com/grailbio/seqinspector/pileup"
	"github.com/grailbio/seqinspector/report"
	"github.com/grailbio/seqinspector/toolrun"
	"github.com/grailbio/seqinspector/variants"
)

// PileupVariants calls variants on each deduplicated bam with bcftools and
// indexes the compressed VCF.
func PileupVariants(ctx context.Context, p *Pipeline) error {
	paths, err := p.tools(p.Config.Tools.Samtools, p.Config.Tools.Bcftools)
	if err != nil {
		return err
	}
	samtools, bcftools := paths[0], paths[1]
	ref := p.Config.ReferenceFasta
	if err := toolrun.CheckExist(ctx, ref); err != nil {
		return err
	}
	if !toolrun.Exists(ctx, ref+".fai") {
		if err := p.run(ctx, toolrun.Cmd{Path: samtools, Args: []string{"faidx", ref}}); err != nil {
			return err
		}
	}
	if err := toolrun.MkdirAll(p.Layout.VariantsDir()); err != nil {
		return err
	}
	for _, root := range p.Config.Roots {
		bam, vcf := p.Layout.DedupBAM(root), p.Layout.VCF(root)
		if err := toolrun.CheckExist(ctx, bam); err != nil {
			return err
		}
		if err := p.run(ctx,
			toolrun.Cmd{Path: bcftools, Args: []string{"mpileup", "-f", ref, bam, "--max-depth", "10000"}},
			toolrun.Cmd{Path: bcftools, Args: []string{"call", "-mv", "-Oz", "-o", vcf}},
		); err != nil {
			return err
		}
		if err := toolrun.CheckExist(ctx, vcf); err != nil {
			return err
		}
		if err := p.run(ctx, toolrun.Cmd{Path: bcftools, Args: []string{"index", vcf}}); err != nil {
			return err
		}
	}
	return nil
}

// openSources opens one variants.Source per sample according to
// Config.VariantSource.
func (p *Pipeline) openSources(ctx context.Context) (sources []variants.Source, err error) {
	defer func() {
		if err != nil {
			for _, s := range sources {
				_ = s.Close()
			}
			sources = nil
		}
	}()
	var bcftools string
	if p.Config.VariantSource == config.VariantSourceBcftools {
		var paths []string
		if paths, err = p.tools(p.Config.Tools.Bcftools); err != nil {
			return
		}
		bcftools = paths[0]
	}
	for _, root := range p.Config.Roots {
		vcf := p.Layout.VCF(root)
		if err = toolrun.CheckExist(ctx, vcf); err != nil {
			return
		}
		var src variants.Source
		switch p.Config.VariantSource {
		case config.VariantSourceTabix:
			src, err = variants.OpenTabix(vcf)
		case config.VariantSourceBcftools:
			src = variants.NewBcftoolsSource(p.Runner, bcftools, vcf, p.Config.MinQual)
		case config.VariantSourceScan:
			src, err = variants.OpenScan(ctx, vcf)
		default:
			err = errors.E(errors.Invalid, "unknown variant source "+p.Config.VariantSource)
		}
		if err != nil {
			return
		}
		sources = append(sources, src)
	}
	return
}

// CallableVariants counts, for every merged region, the calls of each sample
// with QUAL at or above Config.MinQual, and writes the counts as a TSV.
func CallableVariants(ctx context.Context, p *Pipeline) (err error) {
	bed := p.Layout.MergedBED()
	if err = toolrun.CheckExist(ctx, bed); err != nil {
		return
	}
	regions, err := interval.ReadMergedBED(ctx, bed)
	if err != nil {
		return err
	}
	sources, err := p.openSources(ctx)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range sources {
			if cerr := s.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()
	counts, err := variants.CountCalls(ctx, sources, regions, p.Config.MinQual)
	if err != nil {
		return err
	}
	return variants.WriteCallsTSV(ctx, p.Layout.CallsTSV(), regions, counts)
}

// Report joins the coverage summary and the call counts into the region
// summary table and logs per-sample statistics.
func Report(ctx context.Context, p *Pipeline) error {
	if err := toolrun.CheckExist(ctx, p.Layout.CoverageDir(), p.Layout.CallsTSV()); err != nil {
		return err
	}
	cov, err := pileup.SummarizeCoverage(ctx, p.Layout.CoverageDir(), pileup.CoverageOpts{DepthThreshold: p.Config.DepthThreshold})
	if err != nil {
		return err
	}
	calls, err := variants.ReadCallsTSV(ctx, p.Layout.CallsTSV())
	if err != nil {
		return err
	}
	rows := report.Build(cov, calls, p.Config.DepthThreshold)
	if err := toolrun.MkdirAll(p.Layout.ReportDir()); err != nil {
		return err
	}
	if err := report.Write(ctx, p.Layout.Summary(), rows); err != nil {
		return err
	}
	sampleStats, err := report.Summarize(rows)
	if err != nil {
		return err
	}
	report.Log(rows, sampleStats, [pileup.NSample]string{p.Config.Roots[0], p.Config.Roots[1]})
	return nil
}
