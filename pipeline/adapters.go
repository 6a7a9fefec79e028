package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/seqinspector/fastqc"
	"github.com/grailbio/seqinspector/toolrun"
)

// sampleAdapter returns the adapter FastQC flagged in the first-pass reports
// of root, or "" if none was flagged.  Mates naming different adapters are an
// errors.Precondition error.
func (p *Pipeline) sampleAdapter(ctx context.Context, root string) (string, error) {
	found := map[string]bool{}
	for _, label := range p.Config.ReadLabels {
		adapter, err := fastqc.NotableAdapter(ctx, fastqc.DirName(p.Layout.FastQCDir(FirstPass), root, label))
		if err != nil {
			return "", err
		}
		if adapter != "" {
			found[adapter] = true
		}
	}
	switch len(found) {
	case 0:
		return "", nil
	case 1:
		for adapter := range found {
			return adapter, nil
		}
	}
	names := make([]string, 0, len(found))
	for adapter := range found {
		names = append(names, adapter)
	}
	sort.Strings(names)
	return "", errors.E(errors.Precondition, fmt.Sprintf("%s: mates flag different adapters: %s", root, strings.Join(names, ", ")))
}

// AdapterCleanup trims the adapter flagged by the first FastQC pass from
// each sample with cutadapt, then runs FastQC on the trimmed reads.
// Samples whose reports flag no adapter are left alone.
func AdapterCleanup(ctx context.Context, p *Pipeline) error {
	firstPass := p.Layout.FastQCDir(FirstPass)
	if err := toolrun.CheckExist(ctx, p.Layout.DNADir(), firstPass); err != nil {
		return err
	}
	outDir := p.Layout.FastQCDir(Trimmed)
	if err := toolrun.MkdirAll(p.Layout.CleanFastqDir(), outDir); err != nil {
		return err
	}
	labels := p.Config.ReadLabels
	var trimmed []string
	for _, root := range p.Config.Roots {
		adapter, err := p.sampleAdapter(ctx, root)
		if err != nil {
			return err
		}
		if adapter == "" {
			log.Printf("%s: no notable adapter content", root)
			continue
		}
		seq, ok := p.Config.AdapterSeqs[adapter]
		if !ok {
			return errors.E(errors.NotSupported, fmt.Sprintf("%s: no sequence configured for adapter %q", root, adapter))
		}
		log.Printf("%s: trimming %s (%s)", root, adapter, seq)
		out0, out1 := p.Layout.TrimmedFastq(root, labels[0]), p.Layout.TrimmedFastq(root, labels[1])
		trimmed = append(trimmed, TrimmedRoot(root))
		if toolrun.Exists(ctx, out0) && toolrun.Exists(ctx, out1) {
			log.Printf("%s: trimmed reads already present, skipping cutadapt", root)
			continue
		}
		in0, in1 := p.Layout.RawFastq(root, labels[0]), p.Layout.RawFastq(root, labels[1])
		if err := toolrun.CheckExist(ctx, in0, in1); err != nil {
			return err
		}
		paths, err := p.tools(p.Config.Tools.Cutadapt)
		if err != nil {
			return err
		}
		if err := p.run(ctx, toolrun.Cmd{Path: paths[0], Args: []string{
			"--quiet", "-a", seq, "-A", seq, "-o", out0, "-p", out1, in0, in1,
		}}); err != nil {
			return err
		}
		if err := checkPair(ctx, TrimmedRoot(root), out0, out1); err != nil {
			return err
		}
	}
	if len(trimmed) == 0 {
		return nil
	}
	if err := p.runFastQC(ctx, p.Layout.CleanFastqDir(), trimmed, outDir); err != nil {
		return err
	}
	return p.reportFastQC(ctx, trimmed, outDir, p.Layout.FlagTable(Trimmed))
}
