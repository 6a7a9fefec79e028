// Package pipeline sequences the external tools of the quality-control
// workflow.  Each stage checks that its inputs exist, runs its tools, and
// leaves its outputs where the next stage expects them.  Stages are run in
// order; the first unmet precondition stops the run.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/seqinspector/config"
	"github.com/grailbio/seqinspector/toolrun"
)

// Pipeline holds the state shared by all stages.
type Pipeline struct {
	Config config.Config
	Layout Layout
	Runner toolrun.Runner
	// ResolveTool turns a configured tool into an executable path.
	ResolveTool func(tool string) (string, error)
}

// New returns a pipeline rooted at cfg.Home that runs tools with runner.
func New(cfg config.Config, runner toolrun.Runner) *Pipeline {
	return &Pipeline{
		Config:      cfg,
		Layout:      Layout{Home: cfg.Home},
		Runner:      runner,
		ResolveTool: resolveTool,
	}
}

func resolveTool(tool string) (string, error) {
	path, err := toolrun.Resolve(tool)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.E(errors.NotExist, "tool", path, "not found; check the configured tool paths", err)
	}
	return path, nil
}

// tools resolves each of names, in order.
func (p *Pipeline) tools(names ...string) ([]string, error) {
	paths := make([]string, len(names))
	for i, name := range names {
		var err error
		if paths[i], err = p.ResolveTool(name); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func (p *Pipeline) run(ctx context.Context, cmds ...toolrun.Cmd) error {
	_, err := p.Runner.Run(ctx, cmds...)
	return err
}

// Stage is one step of the workflow.
type Stage struct {
	// Name is the subcommand name of the stage.
	Name string
	// Short is a one-line description.
	Short string
	Run   func(ctx context.Context, p *Pipeline) error
}

// Stages lists the stages in the order they must run.
var Stages = []Stage{
	{"quality", "Run FastQC on the raw reads and report WARN/FAIL flags", QualityCheck},
	{"adapters", "Trim the adapter FastQC flagged, then re-check the trimmed reads", AdapterCleanup},
	{"align", "Align reads to the reference with bwa mem and convert to bam", Align},
	{"dedup", "Remove PCR duplicates with samtools collate/fixmate/sort/markdup", Dedup},
	{"dedup-check", "Re-run FastQC on the deduplicated reads", DedupCheck},
	{"pileup-coverage", "Merge target regions and run samtools mpileup on each", PileupCoverage},
	{"depth-coverage", "Summarize per-region depth and coverage from the pileups", DepthCoverage},
	{"pileup-variants", "Call variants with bcftools mpileup and call", PileupVariants},
	{"callable-variants", "Count confident calls per merged region", CallableVariants},
	{"report", "Join depth, coverage and calls into region_summary.tsv", Report},
}

// LookupStage returns the stage with the given name.
func LookupStage(name string) (Stage, bool) {
	for _, s := range Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// RunStage runs a single stage.
func (p *Pipeline) RunStage(ctx context.Context, s Stage) error {
	start := time.Now()
	log.Printf("stage %s: start", s.Name)
	if err := s.Run(ctx, p); err != nil {
		return errors.E(err, "stage "+s.Name)
	}
	log.Printf("stage %s: done in %v", s.Name, time.Since(start))
	return nil
}

// RunAll runs every stage in order, stopping at the first error.
func (p *Pipeline) RunAll(ctx context.Context) error {
	for _, s := range Stages {
		if err := p.RunStage(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
