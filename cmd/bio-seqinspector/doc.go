// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
bio-seqinspector runs quality control over a paired-end targeted sequencing
experiment with two samples.  It drives FastQC, cutadapt, bwa, samtools and
bcftools over a fixed directory layout under the home directory, and joins the
resulting per-region depth, coverage and variant counts into one table.

The home directory must contain task_dna/ with the raw reads,
{root}_{label}.fastq, and the target regions of each sample,
{root with L001 replaced by "target"}.txt.  Outputs go to fastqc/,
clean_fastq/, alignments/, pileup/ and report/.

Stages must be run in order; each checks that the previous ones left their
outputs behind.

Sample usage:
bio-seqinspector run -config seqinspector.yml -home /data/run1

bio-seqinspector pileup-coverage -home /data/run1

bio-seqinspector merge-regions -collapse -out merged.bed a_target.txt b_target.txt
*/
package main
