// Package config holds the settings of a pipeline run: tool locations,
// sample naming conventions and thresholds.
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Variant sources accepted in Config.VariantSource.
const (
	// VariantSourceTabix reads the indexed VCFs directly.
	VariantSourceTabix = "tabix"
	// VariantSourceBcftools runs bcftools view for every region.
	VariantSourceBcftools = "bcftools"
	// VariantSourceScan loads each VCF into memory without using the index.
	VariantSourceScan = "scan"
)

// Tools lists the external programs.  A bare name is looked up in PATH.
type Tools struct {
	FastQC   string `yaml:"fastqc" envconfig:"SEQINSPECTOR_FASTQC"`
	Unzip    string `yaml:"unzip" envconfig:"SEQINSPECTOR_UNZIP"`
	Cutadapt string `yaml:"cutadapt" envconfig:"SEQINSPECTOR_CUTADAPT"`
	Bwa      string `yaml:"bwa" envconfig:"SEQINSPECTOR_BWA"`
	Samtools string `yaml:"samtools" envconfig:"SEQINSPECTOR_SAMTOOLS"`
	Bcftools string `yaml:"bcftools" envconfig:"SEQINSPECTOR_BCFTOOLS"`
}

// Config is the configuration of one pipeline run.
type Config struct {
	// Home is the directory holding task_dna and all outputs.
	Home  string `yaml:"home" envconfig:"SEQINSPECTOR_HOME"`
	Tools Tools  `yaml:"tools"`
	// ReferenceFasta is the genome the reads are aligned to.
	ReferenceFasta string `yaml:"reference_fasta" envconfig:"SEQINSPECTOR_REFERENCE_FASTA"`
	// Roots are the sample root names, e.g. AH_S1_L001.  Exactly two.
	Roots []string `yaml:"paired_reads_rootnames" envconfig:"SEQINSPECTOR_ROOTS"`
	// ReadLabels are the mate labels, e.g. R1 and R2.  Exactly two.
	ReadLabels []string `yaml:"read_labels" envconfig:"SEQINSPECTOR_READ_LABELS"`
	// AdapterSeqs maps FastQC adapter names to the sequence given to
	// cutadapt.
	AdapterSeqs map[string]string `yaml:"adapter_seq" envconfig:"SEQINSPECTOR_ADAPTER_SEQ"`
	// DepthThreshold is the depth a position must exceed to count as
	// covered.
	DepthThreshold int `yaml:"depth_threshold" envconfig:"SEQINSPECTOR_DEPTH_THRESHOLD"`
	// MinQual is the smallest QUAL counted as a confident call.
	MinQual float64 `yaml:"min_qual" envconfig:"SEQINSPECTOR_MIN_QUAL"`
	// VariantSource selects how VCFs are queried; one of the VariantSource*
	// constants.
	VariantSource string `yaml:"variant_source" envconfig:"SEQINSPECTOR_VARIANT_SOURCE"`
	// Collapse removes overlaps left by single-pass region merging.
	Collapse bool `yaml:"collapse" envconfig:"SEQINSPECTOR_COLLAPSE"`
}

// Default returns the standard configuration.  Tools are looked up in PATH.
func Default() Config {
	return Config{
		Tools: Tools{
			FastQC:   "fastqc",
			Unzip:    "unzip",
			Cutadapt: "cutadapt",
			Bwa:      "bwa",
			Samtools: "samtools",
			Bcftools: "bcftools",
		},
		Roots:      []string{"AH_S1_L001", "CH_S2_L001"},
		ReadLabels: []string{"R1", "R2"},
		// https://www.biostars.org/p/371399/
		AdapterSeqs:    map[string]string{"Illumina Universal Adapter": "AGATCGGAAGAG"},
		DepthThreshold: 10,
		MinQual:        20,
		VariantSource:  VariantSourceTabix,
	}
}

// Load returns Default overridden first by the YAML file at path, if path
// is nonempty, then by SEQINSPECTOR_* environment variables.  The result is
// validated.
func Load(ctx context.Context, path string) (cfg Config, err error) {
	cfg = Default()
	if path != "" {
		if err = decodeFile(ctx, path, &cfg); err != nil {
			return
		}
	}
	if err = envconfig.Process("", &cfg); err != nil {
		return cfg, errors.E(errors.Invalid, "config environment", err)
	}
	err = cfg.Validate()
	return
}

func decodeFile(ctx context.Context, path string, cfg *Config) (err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return errors.E(errors.NotExist, "config file", path, err)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	decoder := yaml.NewDecoder(in.Reader(ctx))
	decoder.SetStrict(true)
	if err = decoder.Decode(cfg); err != nil {
		return errors.E(errors.Invalid, "config file", path, err)
	}
	return nil
}

// Validate checks that the configuration describes exactly two samples with
// two reads each, and that the thresholds make sense.
func (c Config) Validate() error {
	if len(c.Roots) != 2 {
		return errors.E(errors.Invalid, fmt.Sprintf("config: need exactly 2 sample root names, got %d (%s)", len(c.Roots), strings.Join(c.Roots, ", ")))
	}
	if c.Roots[0] == c.Roots[1] {
		return errors.E(errors.Invalid, "config: sample root names must differ: "+c.Roots[0])
	}
	if len(c.ReadLabels) != 2 {
		return errors.E(errors.Invalid, fmt.Sprintf("config: need exactly 2 read labels, got %d", len(c.ReadLabels)))
	}
	if c.DepthThreshold < 1 {
		return errors.E(errors.Invalid, fmt.Sprintf("config: depth threshold must be positive, got %d", c.DepthThreshold))
	}
	if c.MinQual < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("config: negative minimum QUAL %g", c.MinQual))
	}
	switch c.VariantSource {
	case VariantSourceTabix, VariantSourceBcftools, VariantSourceScan:
	default:
		return errors.E(errors.Invalid, fmt.Sprintf("config: unknown variant source %q", c.VariantSource))
	}
	return nil
}
