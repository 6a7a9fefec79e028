package variants

import (
	"bytes"
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/seqinspector/interval"
	"github.com/grailbio/seqinspector/toolrun"
)

// BcftoolsSource queries an indexed VCF by running bcftools view once per
// region.  Only records passing the QUAL filter are returned.
type BcftoolsSource struct {
	Runner   toolrun.Runner
	Bcftools string
	Path     string
	MinQual  float64
}

// NewBcftoolsSource returns a source that runs bcftools at the given path
// against the VCF at path.
func NewBcftoolsSource(runner toolrun.Runner, bcftools, path string, minQual float64) *BcftoolsSource {
	return &BcftoolsSource{Runner: runner, Bcftools: bcftools, Path: path, MinQual: minQual}
}

// Query implements Source.
func (s *BcftoolsSource) Query(ctx context.Context, r interval.Region) ([]Record, error) {
	out, err := s.Runner.Run(ctx, toolrun.Cmd{
		Path: s.Bcftools,
		Args: []string{"view", "-H", "-Ov", "-i", fmt.Sprintf("%%QUAL>=%g", s.MinQual), "-r", r.String(), s.Path},
	})
	if err != nil {
		return nil, err
	}
	var recs []Record
	for _, line := range bytes.Split(out, []byte{'\n'}) {
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		rec, err := parseVCFLine(line)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("bcftools view %s %s", r, s.Path), err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Close implements Source.
func (s *BcftoolsSource) Close() error { return nil }
