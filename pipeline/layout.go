package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/grailbio/seqinspector/interval"
	"github.com/grailbio/seqinspector/report"
	"github.com/grailbio/seqinspector/variants"
)

// FastQC pass names; each gets its own output directory.
const (
	FirstPass = "first_pass"
	Trimmed   = "trimmed"
	DedupPass = "dedup"
)

// Layout derives every input and output path from the home directory.
//
//	home/
//	├── task_dna        raw fastq and target region files
//	├── fastqc          first_pass, trimmed, dedup
//	├── clean_fastq     adapter-trimmed fastq
//	├── alignments      bam files
//	├── pileup          coverage, variants
//	├── scratch         temporary fastq, removed after use
//	└── report
type Layout struct {
	Home string
}

func (l Layout) DNADir() string        { return filepath.Join(l.Home, "task_dna") }
func (l Layout) CleanFastqDir() string { return filepath.Join(l.Home, "clean_fastq") }
func (l Layout) AlignmentsDir() string { return filepath.Join(l.Home, "alignments") }
func (l Layout) CoverageDir() string   { return filepath.Join(l.Home, "pileup", "coverage") }
func (l Layout) VariantsDir() string   { return filepath.Join(l.Home, "pileup", "variants") }
func (l Layout) ScratchDir() string    { return filepath.Join(l.Home, "scratch") }
func (l Layout) ReportDir() string     { return filepath.Join(l.Home, "report") }

// FastQCDir returns the output directory of the given FastQC pass.
func (l Layout) FastQCDir(pass string) string { return filepath.Join(l.Home, "fastqc", pass) }

// RawFastq is the input fastq of one mate of a sample.
func (l Layout) RawFastq(root, label string) string {
	return filepath.Join(l.DNADir(), root+"_"+label+".fastq")
}

// TrimmedRoot is the root name given to adapter-trimmed reads.
func TrimmedRoot(root string) string { return root + "_trimmed" }

// TrimmedFastq is the cutadapt output for one mate of a sample.
func (l Layout) TrimmedFastq(root, label string) string {
	return filepath.Join(l.CleanFastqDir(), TrimmedRoot(root)+"_"+label+".fastq")
}

// RegionFile is the target region file of a sample: the root name with
// "L001" replaced by "target".
func (l Layout) RegionFile(root string) string {
	return filepath.Join(l.DNADir(), strings.ReplaceAll(root, "L001", "target")+".txt")
}

func (l Layout) SAM(root string) string      { return filepath.Join(l.AlignmentsDir(), root+".sam") }
func (l Layout) BAM(root string) string      { return filepath.Join(l.AlignmentsDir(), root+".bam") }
func (l Layout) DedupBAM(root string) string { return filepath.Join(l.AlignmentsDir(), root+".dedup.bam") }

// DedupStep returns an intermediate bam of the duplicate-removal chain,
// e.g. {root}.collt.bam.
func (l Layout) DedupStep(root, step string) string {
	return filepath.Join(l.AlignmentsDir(), root+"."+step+".bam")
}

// VCF is the compressed call set of a sample.
func (l Layout) VCF(root string) string {
	return filepath.Join(l.VariantsDir(), root+".dedup.vcf.gz")
}

func (l Layout) MergedBED() string { return filepath.Join(l.CoverageDir(), interval.MergedBEDName) }
func (l Layout) CallsTSV() string  { return filepath.Join(l.VariantsDir(), variants.CallsTSVName) }
func (l Layout) Summary() string   { return filepath.Join(l.ReportDir(), report.SummaryName) }

// FlagTable is where the FastQC flags of a pass are tabulated.
func (l Layout) FlagTable(pass string) string {
	return filepath.Join(l.FastQCDir(pass), "flags.tsv")
}
