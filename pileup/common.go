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
package pileup

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/seqinspector/interval"
)

// Common pileup components.

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// NSample is the number of samples compared side by side.  Pileup files carry
// one group of columns per sample, in this order.
const NSample = 2

// Key identifies a region by chromosome and start position.
type Key struct {
	Chrom int
	Start PosType
}

// Less orders keys by chromosome, then start.
func (k Key) Less(o Key) bool {
	if k.Chrom != o.Chrom {
		return k.Chrom < o.Chrom
	}
	return k.Start < o.Start
}

// SortKeys sorts keys in place by chromosome, then start.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// Pair holds one value per sample.
type Pair [NSample]float64

const (
	fileNamePrefix = "pileup_chr"
	fileNameSuffix = ".tsv"
)

// FileName returns the name samtools mpileup output for a region is written
// to: pileup_chr{chrom}_{start}-{end}.tsv.
func FileName(r interval.Region) string {
	return fmt.Sprintf("%s%d_%d-%d%s", fileNamePrefix, r.Chrom, r.Start, r.End, fileNameSuffix)
}

// ParseFileName recovers the region from a name produced by FileName.
func ParseFileName(name string) (r interval.Region, err error) {
	if !strings.HasPrefix(name, fileNamePrefix) || !strings.HasSuffix(name, fileNameSuffix) {
		err = fmt.Errorf("pileup.ParseFileName: %s does not match %s{chrom}_{start}-{end}%s", name, fileNamePrefix, fileNameSuffix)
		return
	}
	body := name[len(fileNamePrefix) : len(name)-len(fileNameSuffix)]
	underscorePos := strings.IndexByte(body, '_')
	if underscorePos == -1 {
		err = fmt.Errorf("pileup.ParseFileName: missing chromosome separator in %s", name)
		return
	}
	if r.Chrom, err = interval.ParseChrom([]byte(body[:underscorePos])); err != nil {
		return
	}
	rangeStr := body[underscorePos+1:]
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		err = fmt.Errorf("pileup.ParseFileName: missing range separator in %s", name)
		return
	}
	var start, end int
	if start, err = strconv.Atoi(rangeStr[:dashPos]); err != nil {
		return
	}
	if end, err = strconv.Atoi(rangeStr[dashPos+1:]); err != nil {
		return
	}
	if start < 0 || end < start {
		err = fmt.Errorf("pileup.ParseFileName: invalid range in %s", name)
		return
	}
	r.Start = PosType(start)
	r.End = PosType(end)
	return
}
