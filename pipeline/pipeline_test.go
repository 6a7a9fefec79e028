package pipeline_test

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/seqinspector/config"
	"github.com/grailbio/seqinspector/interval"
	"github.com/grailbio/seqinspector/pipeline"
	"github.com/grailbio/seqinspector/toolrun"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	passData = "##FastQC\t0.11.9\n" +
		">>Basic Statistics\tpass\n>>END_MODULE\n" +
		">>Adapter Content\tpass\n" +
		"#Position\tIllumina Universal Adapter\tNextera Transposase Sequence\n" +
		"1\t0.0\t0.0\n" +
		">>END_MODULE\n"
	passSummary = "PASS\tBasic Statistics\tx.fastq\nPASS\tAdapter Content\tx.fastq\n"
	failSummary = "PASS\tBasic Statistics\tx.fastq\nFAIL\tAdapter Content\tx.fastq\n"
)

// adapterData renders fastqc_data.txt with a failed Adapter Content module
// in which the given column accumulates 3%.
func adapterData(column int) string {
	var sb strings.Builder
	sb.WriteString(">>Adapter Content\tfail\n#Position\tIllumina Universal Adapter\tNextera Transposase Sequence\n")
	for pos := 1; pos <= 3; pos++ {
		vals := [2]string{"0.0", "0.0"}
		vals[column] = "1.0"
		fmt.Fprintf(&sb, "%d\t%s\t%s\n", pos, vals[0], vals[1])
	}
	sb.WriteString(">>END_MODULE\n")
	return sb.String()
}

func writeFile(t *testing.T, path, data string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

const vcfHeader = "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tsample\n"

// fakeTools simulates the external tools by creating the files each would
// leave behind.  Only AH_S1_L001 has adapter content, and only it has
// variants.
func fakeTools(t *testing.T) func(cmds []toolrun.Cmd) ([]byte, error) {
	return func(cmds []toolrun.Cmd) ([]byte, error) {
		last := cmds[len(cmds)-1]
		c := cmds[0]
		args := c.Args
		switch c.Path {
		case "fastqc":
			name := strings.TrimSuffix(filepath.Base(args[0]), ".fastq")
			writeFile(t, filepath.Join(args[3], name+"_fastqc.zip"), "")
		case "unzip":
			dir := strings.TrimSuffix(args[1], ".zip")
			data, summary := passData, passSummary
			if strings.HasPrefix(filepath.Base(dir), "AH_S1_L001_R") && strings.HasSuffix(args[3], pipeline.FirstPass) {
				data, summary = adapterData(0), failSummary
			}
			writeFile(t, filepath.Join(dir, "fastqc_data.txt"), data)
			writeFile(t, filepath.Join(dir, "summary.txt"), summary)
		case "cutadapt":
			writeFile(t, argAfter(args, "-o"), "")
			writeFile(t, argAfter(args, "-p"), "")
		case "bwa":
			if args[0] == "mem" {
				writeFile(t, c.Stdout, "")
			}
		case "samtools":
			switch args[0] {
			case "view":
				writeFile(t, c.Stdout, "")
			case "collate", "sort":
				writeFile(t, argAfter(args, "-o"), "")
			case "fixmate", "markdup":
				writeFile(t, args[len(args)-1], "")
			case "fastq":
				writeFile(t, argAfter(args, "-1"), "")
				writeFile(t, argAfter(args, "-2"), "")
			case "mpileup":
				r, err := interval.ParseRegionString(argAfter(args, "-r"))
				require.NoError(t, err)
				var sb strings.Builder
				for pos := r.Start; pos <= r.End; pos++ {
					fmt.Fprintf(&sb, "chr%d\t%d\tA\t20\t.\tI\t5\t.\tI\n", r.Chrom, pos)
				}
				writeFile(t, argAfter(args, "-o"), sb.String())
			}
		case "bcftools":
			if len(cmds) == 2 {
				vcf := argAfter(last.Args, "-o")
				data := vcfHeader
				if strings.Contains(vcf, "AH_S1_L001") {
					data += "chr1\t120\t.\tA\tT\t30\t.\tDP=20\tGT\t0/1\n" +
						"chr1\t400\t.\tA\tT\t50\t.\tDP=20\tGT\t0/1\n" +
						"chr2\t1050\t.\tC\tG\t10\t.\tDP=20\tGT\t0/1\n"
				}
				var buf bytes.Buffer
				w := bgzf.NewWriter(&buf, 1)
				_, err := w.Write([]byte(data))
				require.NoError(t, err)
				require.NoError(t, w.Close())
				writeFile(t, vcf, buf.String())
			}
		}
		return nil, nil
	}
}

func setupHome(t *testing.T, home string) config.Config {
	for _, root := range []string{"AH_S1_L001", "CH_S2_L001"} {
		for _, label := range []string{"R1", "R2"} {
			writeFile(t, filepath.Join(home, "task_dna", root+"_"+label+".fastq"), "@r\nACGT\n+\nIIII\n")
		}
	}
	writeFile(t, filepath.Join(home, "task_dna", "AH_S1_target.txt"), "seqname\tstart\tend\nchr1\t100\t200\nchr2\t1000\t1100\n")
	writeFile(t, filepath.Join(home, "task_dna", "CH_S2_target.txt"), "seqname\tstart\tend\nchr1\t150\t250\n")
	ref := filepath.Join(home, "ref", "hg19.fa")
	writeFile(t, ref, ">chr1\nACGT\n")

	cfg := config.Default()
	cfg.Home = home
	cfg.ReferenceFasta = ref
	cfg.VariantSource = config.VariantSourceScan
	return cfg
}

func newPipeline(cfg config.Config, runner toolrun.Runner) *pipeline.Pipeline {
	p := pipeline.New(cfg, runner)
	p.ResolveTool = func(tool string) (string, error) { return tool, nil }
	return p
}

func TestRunAll(t *testing.T) {
	home, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, home)
	ctx := vcontext.Background()
	cfg := setupHome(t, home)
	runner := &toolrun.FakeRunner{Handler: fakeTools(t)}
	p := newPipeline(cfg, runner)
	require.NoError(t, p.RunAll(ctx))

	l := p.Layout
	calls := runner.Calls()
	assert.Contains(t, calls, fmt.Sprintf("cutadapt --quiet -a AGATCGGAAGAG -A AGATCGGAAGAG -o %s -p %s %s %s",
		l.TrimmedFastq("AH_S1_L001", "R1"), l.TrimmedFastq("AH_S1_L001", "R2"),
		l.RawFastq("AH_S1_L001", "R1"), l.RawFastq("AH_S1_L001", "R2")))
	// Only the sample with adapter content is trimmed and aligned from
	// clean_fastq.
	assert.Contains(t, calls, fmt.Sprintf("bwa mem %s %s %s > %s", cfg.ReferenceFasta,
		l.TrimmedFastq("AH_S1_L001", "R1"), l.TrimmedFastq("AH_S1_L001", "R2"), l.SAM("AH_S1_L001")))
	assert.Contains(t, calls, fmt.Sprintf("bwa mem %s %s %s > %s", cfg.ReferenceFasta,
		l.RawFastq("CH_S2_L001", "R1"), l.RawFastq("CH_S2_L001", "R2"), l.SAM("CH_S2_L001")))
	assert.Contains(t, calls, "bwa index -a bwtsw "+cfg.ReferenceFasta)
	assert.Contains(t, calls, fmt.Sprintf("bcftools mpileup -f %s %s --max-depth 10000 | bcftools call -mv -Oz -o %s",
		cfg.ReferenceFasta, l.DedupBAM("CH_S2_L001"), l.VCF("CH_S2_L001")))
	assert.Contains(t, calls, fmt.Sprintf("samtools mpileup -a -r chr1:100-250 -o %s %s %s",
		filepath.Join(l.CoverageDir(), "pileup_chr1_100-250.tsv"), l.DedupBAM("AH_S1_L001"), l.DedupBAM("CH_S2_L001")))
	for _, c := range calls {
		assert.NotContains(t, c, "cutadapt --quiet -a AGATCGGAAGAG -A AGATCGGAAGAG -o "+l.TrimmedFastq("CH_S2_L001", "R1"))
	}

	// Intermediate files are gone.
	for _, path := range []string{
		l.SAM("AH_S1_L001"),
		l.DedupStep("AH_S1_L001", "collt"),
		l.DedupStep("CH_S2_L001", "fixmate"),
		l.DedupStep("CH_S2_L001", "sort"),
		l.ScratchDir(),
	} {
		assert.False(t, toolrun.Exists(ctx, path), path)
	}

	bed, err := ioutil.ReadFile(l.MergedBED())
	require.NoError(t, err)
	assert.Equal(t, "chr1\t100\t250\nchr2\t1000\t1100\n", string(bed))

	tsv, err := ioutil.ReadFile(l.CallsTSV())
	require.NoError(t, err)
	assert.Equal(t, "1\t100\t1\t0\n2\t1000\t0\t0\n", string(tsv))

	summary, err := ioutil.ReadFile(l.Summary())
	require.NoError(t, err)
	assert.Equal(t, "#chrom\tstart\tend\tdepth0\tdepth1\tcoverage0\tcoverage1\tcalls0\tcalls1\tflagged\n"+
		"chr1\t100\t250\t20.00\t5.00\t1.00\t0.00\t1\t0\t1\n"+
		"chr2\t1000\t1100\t20.00\t5.00\t1.00\t0.00\t0\t0\t0\n", string(summary))

	flags, err := ioutil.ReadFile(l.FlagTable(pipeline.FirstPass))
	require.NoError(t, err)
	assert.Equal(t, "module\tAH_S1_L001 R1\tAH_S1_L001 R2\tCH_S2_L001 R1\tCH_S2_L001 R2\n"+
		"Adapter Content\tFAIL\tFAIL\tOK\tOK\n", string(flags))
	assert.True(t, toolrun.Exists(ctx, l.FlagTable(pipeline.Trimmed)))
	assert.True(t, toolrun.Exists(ctx, l.FlagTable(pipeline.DedupPass)))
}

func TestStagesOutOfOrder(t *testing.T) {
	home, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, home)
	ctx := vcontext.Background()
	cfg := setupHome(t, home)
	runner := &toolrun.FakeRunner{Handler: fakeTools(t)}
	p := newPipeline(cfg, runner)

	for _, name := range []string{"adapters", "dedup", "dedup-check", "pileup-coverage", "depth-coverage", "callable-variants", "report"} {
		s, ok := pipeline.LookupStage(name)
		require.True(t, ok, name)
		err := p.RunStage(ctx, s)
		assert.True(t, errors.Is(errors.NotExist, err), "%s: %v", name, err)
	}
	assert.Len(t, runner.Calls(), 0)

	_, ok := pipeline.LookupStage("no-such-stage")
	assert.False(t, ok)
}

func TestMissingHome(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	cfg := config.Default()
	cfg.Home = filepath.Join(tmpdir, "nowhere")
	runner := &toolrun.FakeRunner{}
	err := newPipeline(cfg, runner).RunAll(vcontext.Background())
	assert.True(t, errors.Is(errors.NotExist, err), "%v", err)
	assert.Len(t, runner.Calls(), 0)
}

func TestAdapterErrors(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	writeReports := func(home string, r1, r2 string) {
		dir := filepath.Join(home, "fastqc", pipeline.FirstPass)
		for root, data := range map[string][2]string{
			"AH_S1_L001": {r1, r2},
			"CH_S2_L001": {passData, passData},
		} {
			writeFile(t, filepath.Join(dir, root+"_R1_fastqc", "fastqc_data.txt"), data[0])
			writeFile(t, filepath.Join(dir, root+"_R2_fastqc", "fastqc_data.txt"), data[1])
		}
	}

	// Mates flag different adapters.
	home := filepath.Join(tmpdir, "mixed")
	cfg := setupHome(t, home)
	writeReports(home, adapterData(0), adapterData(1))
	runner := &toolrun.FakeRunner{}
	err := pipeline.AdapterCleanup(ctx, newPipeline(cfg, runner))
	assert.True(t, errors.Is(errors.Precondition, err), "%v", err)
	assert.Len(t, runner.Calls(), 0)

	// The flagged adapter has no configured sequence.
	home = filepath.Join(tmpdir, "nextera")
	cfg = setupHome(t, home)
	writeReports(home, adapterData(1), adapterData(1))
	err = pipeline.AdapterCleanup(ctx, newPipeline(cfg, runner))
	assert.True(t, errors.Is(errors.NotSupported, err), "%v", err)

	// Once configured, it is trimmed.
	cfg.AdapterSeqs["Nextera Transposase Sequence"] = "CTGTCTCTTATA"
	runner = &toolrun.FakeRunner{Handler: fakeTools(t)}
	require.NoError(t, pipeline.AdapterCleanup(ctx, newPipeline(cfg, runner)))
	assert.Contains(t, runner.Calls()[0], "cutadapt --quiet -a CTGTCTCTTATA -A CTGTCTCTTATA")
}

func TestLayout(t *testing.T) {
	l := pipeline.Layout{Home: "/data"}
	assert.Equal(t, "/data/task_dna/AH_S1_target.txt", l.RegionFile("AH_S1_L001"))
	assert.Equal(t, "/data/clean_fastq/AH_S1_L001_trimmed_R2.fastq", l.TrimmedFastq("AH_S1_L001", "R2"))
	assert.Equal(t, "/data/alignments/AH_S1_L001.dedup.bam", l.DedupBAM("AH_S1_L001"))
	assert.Equal(t, "/data/alignments/AH_S1_L001.collt.bam", l.DedupStep("AH_S1_L001", "collt"))
	assert.Equal(t, "/data/pileup/variants/CH_S2_L001.dedup.vcf.gz", l.VCF("CH_S2_L001"))
	assert.Equal(t, "/data/pileup/coverage/merged_target_regions.bed", l.MergedBED())
	assert.Equal(t, "/data/pileup/variants/calls_per_interval.tsv", l.CallsTSV())
	assert.Equal(t, "/data/report/region_summary.tsv", l.Summary())
	assert.Equal(t, "/data/fastqc/dedup", l.FastQCDir(pipeline.DedupPass))
}

func TestDiscordantMates(t *testing.T) {
	home, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, home)
	cfg := setupHome(t, home)
	writeFile(t, filepath.Join(home, "task_dna", "CH_S2_L001_R2.fastq"), "@r\nACGT\n+\nIIII\n@s\nACGT\n+\nIIII\n")
	runner := &toolrun.FakeRunner{Handler: fakeTools(t)}
	err := pipeline.QualityCheck(vcontext.Background(), newPipeline(cfg, runner))
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
	assert.Len(t, runner.Calls(), 0)
}
