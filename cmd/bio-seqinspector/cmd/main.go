package cmd

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/seqinspector/config"
	"github.com/grailbio/seqinspector/interval"
	"github.com/grailbio/seqinspector/pipeline"
	"github.com/grailbio/seqinspector/toolrun"
	"v.io/x/lib/cmdline"
)

type commonFlags struct {
	config *string
	home   *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config: fs.String("config", "", `YAML configuration file.  Settings not given there keep their defaults,
and SEQINSPECTOR_* environment variables override both.`),
		home: fs.String("home", "", "Home directory holding task_dna and all outputs; overrides the configured one. Defaults to the current directory"),
	}
}

// load returns the configuration selected by the flags.
func (f commonFlags) load() (config.Config, error) {
	cfg, err := config.Load(vcontext.Background(), *f.config)
	if err != nil {
		return cfg, err
	}
	if *f.home != "" {
		cfg.Home = *f.home
	}
	if cfg.Home == "" {
		if cfg.Home, err = os.Getwd(); err != nil {
			return cfg, err
		}
	}
	if cfg.ReferenceFasta != "" && !filepath.IsAbs(cfg.ReferenceFasta) {
		cfg.ReferenceFasta = filepath.Join(cfg.Home, cfg.ReferenceFasta)
	}
	return cfg, nil
}

func newCmdStage(stage pipeline.Stage, runner toolrun.Runner) *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  stage.Name,
		Short: stage.Short,
	}
	flags := addCommonFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("%s takes no arguments, but got %v", stage.Name, argv)
		}
		cfg, err := flags.load()
		if err != nil {
			return err
		}
		return pipeline.New(cfg, runner).RunStage(vcontext.Background(), stage)
	})
	return cmd
}

func newCmdRun(runner toolrun.Runner) *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "run",
		Short: "Run every stage in order",
		Long: `Run every stage in order, stopping at the first failure.  A failed run can
be resumed by running the remaining stages individually.`,
	}
	flags := addCommonFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("run takes no arguments, but got %v", argv)
		}
		cfg, err := flags.load()
		if err != nil {
			return err
		}
		return pipeline.New(cfg, runner).RunAll(vcontext.Background())
	})
	return cmd
}

func newCmdMergeRegions() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "merge-regions",
		Short:    "Merge target region files into one BED file",
		ArgsName: "regionpath...",
		Long: `Merge whitespace-delimited "seqname start end" region files, chromosomes 1
to 22, into one set of intervals and write it as BED.  Without arguments the
region files of the configured samples are merged.`,
	}
	flags := addCommonFlags(&cmd.Flags)
	collapse := cmd.Flags.Bool("collapse", false, "Remove overlaps left behind by single-pass merging")
	out := cmd.Flags.String("out", "", "Output BED path; defaults to the standard location under the home directory")
	region := cmd.Flags.String("region", "", `Keep only merged regions overlapping this one, given as chr{chrom}:{start}-{end},
chr{chrom}:{pos} or chr{chrom}`)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		cfg, err := flags.load()
		if err != nil {
			return err
		}
		ctx := vcontext.Background()
		p := pipeline.New(cfg, nil)
		opts := interval.MergeOpts{Collapse: *collapse || cfg.Collapse, SanityCheck: true}
		var merged *interval.Merged
		if len(argv) == 0 {
			p.Config.Collapse = opts.Collapse
			merged, err = p.MergeRegions(ctx)
		} else {
			merged, err = interval.Merge(ctx, argv, opts)
		}
		if err != nil {
			return err
		}
		if *region != "" {
			r, err := interval.ParseRegionString(*region)
			if err != nil {
				return errors.E(errors.Invalid, "-region", err)
			}
			merged.Regions = merged.Regions.Restrict(r)
		}
		path := *out
		if path == "" {
			path = p.Layout.MergedBED()
			if err := toolrun.MkdirAll(filepath.Dir(path)); err != nil {
				return err
			}
		}
		if err := interval.WriteMergedBED(ctx, path, merged.Regions); err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "%d merged region(s) written to %s\n", merged.Regions.Len(), path)
		return nil
	})
	return cmd
}

func newCmdRoot(runner toolrun.Runner) *cmdline.Command {
	children := []*cmdline.Command{newCmdRun(runner)}
	for _, stage := range pipeline.Stages {
		children = append(children, newCmdStage(stage, runner))
	}
	children = append(children, newCmdMergeRegions())
	return &cmdline.Command{
		Name:     "bio-seqinspector",
		Short:    "Quality control of paired-end targeted sequencing runs",
		LookPath: false,
		Children: children,
	}
}

// Run parses the command line and runs the selected subcommand.  It is the
// only place where an error ends the process.
func Run() {
	shutdown := grail.Init()
	cmdline.HideGlobalFlagsExcept()
	err := cmdline.ParseAndRun(newCmdRoot(toolrun.ExecRunner{}), cmdline.EnvFromOS(), os.Args[1:])
	shutdown()
	if err == cmdline.ErrUsage {
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("bio-seqinspector: %v", err)
	}
}
