package pipeline

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/seqinspector/fastq"
	"github.com/grailbio/seqinspector/fastqc"
	"github.com/grailbio/seqinspector/toolrun"
)

// runFastQC runs FastQC on {inDir}/{root}_{label}.fastq for every root and
// label, then unpacks each report zip in outDir.
func (p *Pipeline) runFastQC(ctx context.Context, inDir string, roots []string, outDir string) error {
	paths, err := p.tools(p.Config.Tools.FastQC, p.Config.Tools.Unzip)
	if err != nil {
		return err
	}
	fastqcPath, unzipPath := paths[0], paths[1]
	if err := toolrun.CheckExist(ctx, inDir, outDir); err != nil {
		return err
	}
	for _, root := range roots {
		for _, label := range p.Config.ReadLabels {
			fastq := filepath.Join(inDir, root+"_"+label+".fastq")
			if err := p.run(ctx, toolrun.Cmd{Path: fastqcPath, Args: []string{fastq, "-q", "-o", outDir}}); err != nil {
				return err
			}
			reportDir := fastqc.DirName(outDir, root, label)
			if err := toolrun.CheckExist(ctx, reportDir+".zip"); err != nil {
				return err
			}
			// Replace any report left by an earlier run.
			if err := toolrun.RemoveDir(ctx, reportDir); err != nil {
				return err
			}
			if err := p.run(ctx, toolrun.Cmd{Path: unzipPath, Args: []string{"-qq", reportDir + ".zip", "-d", outDir}}); err != nil {
				return err
			}
		}
	}
	log.Printf("fastqc done for %d sample(s) in %s", len(roots), inDir)
	return nil
}

// reportFastQC logs the WARN and FAIL lines of each report in outDir and
// tabulates them in flagTable.
func (p *Pipeline) reportFastQC(ctx context.Context, roots []string, outDir, flagTable string) (err error) {
	var reports []fastqc.Report
	for _, root := range roots {
		for _, label := range p.Config.ReadLabels {
			flags, err := fastqc.ReadSummary(ctx, fastqc.DirName(outDir, root, label))
			if err != nil {
				return err
			}
			if len(flags) == 0 {
				log.Printf("%s %s: fastqc reports no issues", root, label)
			}
			for _, f := range flags {
				log.Printf("%s %s: %s\t%s", root, label, f.Status, f.Module)
			}
			reports = append(reports, fastqc.Report{Root: root, Label: label, Flags: flags})
		}
	}
	var buf bytes.Buffer
	if err = fastqc.NewFlagTable(reports).Write(&buf); err != nil {
		return err
	}
	var out file.File
	if out, err = file.Create(ctx, flagTable); err != nil {
		return errors.E(err, "couldn't create fastqc flag table:", flagTable)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if _, err = out.Writer(ctx).Write(buf.Bytes()); err != nil {
		return errors.E(err, "error writing fastqc flag table:", flagTable)
	}
	return nil
}

// checkPair verifies that the two mates of a sample hold matching reads.
func checkPair(ctx context.Context, root, path1, path2 string) error {
	if err := toolrun.CheckExist(ctx, path1, path2); err != nil {
		return err
	}
	stats, err := fastq.CheckPair(ctx, path1, path2)
	if err != nil {
		return err
	}
	log.Printf("%s: %d read pair(s), length %d-%d (mean %.1f)", root, stats.Pairs, stats.MinLen, stats.MaxLen, stats.MeanLen())
	return nil
}

// checkFastq verifies the raw reads of every sample.
func (p *Pipeline) checkFastq(ctx context.Context) error {
	labels := p.Config.ReadLabels
	for _, root := range p.Config.Roots {
		if err := checkPair(ctx, root, p.Layout.RawFastq(root, labels[0]), p.Layout.RawFastq(root, labels[1])); err != nil {
			return err
		}
	}
	return nil
}

// QualityCheck runs FastQC on the raw reads.
func QualityCheck(ctx context.Context, p *Pipeline) error {
	if err := toolrun.CheckExist(ctx, p.Layout.DNADir()); err != nil {
		return err
	}
	outDir := p.Layout.FastQCDir(FirstPass)
	if err := toolrun.MkdirAll(outDir); err != nil {
		return err
	}
	if err := p.checkFastq(ctx); err != nil {
		return err
	}
	if err := p.runFastQC(ctx, p.Layout.DNADir(), p.Config.Roots, outDir); err != nil {
		return err
	}
	return p.reportFastQC(ctx, p.Config.Roots, outDir, p.Layout.FlagTable(FirstPass))
}

// DedupCheck unpacks the deduplicated alignments into fastq and runs FastQC
// on them.
func DedupCheck(ctx context.Context, p *Pipeline) error {
	paths, err := p.tools(p.Config.Tools.Samtools)
	if err != nil {
		return err
	}
	samtools := paths[0]
	deps := []string{p.Layout.AlignmentsDir()}
	for _, root := range p.Config.Roots {
		deps = append(deps, p.Layout.DedupBAM(root))
	}
	if err := toolrun.CheckExist(ctx, deps...); err != nil {
		return err
	}
	outDir := p.Layout.FastQCDir(DedupPass)
	scratch := p.Layout.ScratchDir()
	if err := toolrun.MkdirAll(outDir, scratch); err != nil {
		return err
	}
	labels := p.Config.ReadLabels
	for _, root := range p.Config.Roots {
		if err := p.run(ctx, toolrun.Cmd{Path: samtools, Args: []string{
			"fastq",
			"-1", filepath.Join(scratch, root+"_"+labels[0]+".fastq"),
			"-2", filepath.Join(scratch, root+"_"+labels[1]+".fastq"),
			"-0", "/dev/null", "-s", "/dev/null", "-n",
			p.Layout.DedupBAM(root),
		}}); err != nil {
			return err
		}
	}
	if err := p.runFastQC(ctx, scratch, p.Config.Roots, outDir); err != nil {
		return err
	}
	if err := p.reportFastQC(ctx, p.Config.Roots, outDir, p.Layout.FlagTable(DedupPass)); err != nil {
		return err
	}
	return toolrun.RemoveDir(ctx, scratch)
}
