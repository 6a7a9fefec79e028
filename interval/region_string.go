package interval

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is an interval on a numbered chromosome.
type Region struct {
	Chrom int
	Interval
}

// String renders r in the "chr{chrom}:{start}-{end}" form expected by
// samtools and bcftools -r.
func (r Region) String() string {
	return fmt.Sprintf("chr%d:%d-%d", r.Chrom, r.Start, r.End)
}

// ParseRegionString parses a region string of one of the forms
//   chr{chrom}:{start}-{end}
//   chr{chrom}:{pos}
//   chr{chrom}
// The "chr" prefix is optional.  Coordinates are taken as written, closed on
// both ends.  The interval [0, PosTypeMax - 1] is returned if there is no
// positional restriction.
func ParseRegionString(region string) (result Region, err error) {
	if len(region) == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty region string")
		return
	}
	colonPos := strings.IndexByte(region, ':')
	if colonPos == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty contig ID")
		return
	}
	chromStr := region
	if colonPos != -1 {
		chromStr = region[:colonPos]
	}
	if result.Chrom, err = ParseChrom([]byte(chromStr)); err != nil {
		return
	}
	if colonPos == -1 {
		result.Start = 0
		result.End = PosTypeMax - 1
		return
	}
	rangeStr := region[colonPos+1:]
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos int64
		if pos, err = strconv.ParseInt(rangeStr, 10, 32); err != nil {
			return
		}
		if pos < 0 {
			err = fmt.Errorf("interval.ParseRegionString: position %v in region string out of range", rangeStr)
			return
		}
		result.Start = PosType(pos)
		result.End = PosType(pos)
		return
	}
	var start, end int
	if start, err = strconv.Atoi(rangeStr[:dashPos]); err != nil {
		return
	}
	if end, err = strconv.Atoi(rangeStr[dashPos+1:]); err != nil {
		return
	}
	if start < 0 || end < start || end >= PosTypeMax {
		err = fmt.Errorf("interval.ParseRegionString: invalid range string %v", rangeStr)
		return
	}
	result.Start = PosType(start)
	result.End = PosType(end)
	return
}
