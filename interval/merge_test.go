package interval_test

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/seqinspector/interval"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

func writeFile(t *testing.T, path, data string) {
	assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
}

func TestMergeTwoSamples(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	ah := filepath.Join(tmpdir, "AH_S1_target.txt")
	ch := filepath.Join(tmpdir, "CH_S2_target.txt")
	writeFile(t, ah, "SeqName\tStart\tEnd\tName\n"+
		"chr1\t100\t200\tA\n"+
		"chr2\t10\t20\tB\n"+
		"short row\n"+
		"\n"+
		"chr2\t500\t600\tC\n")
	writeFile(t, ch, "seqname start end\n"+
		"chr1 150 300\n"+
		"2 15 40\n")

	m, err := interval.Merge(ctx, []string{ah, ch}, interval.MergeOpts{SanityCheck: true})
	assert.NoError(t, err)
	expect.EQ(t, m.Regions.Chroms(), []int{1, 2})
	expect.EQ(t, m.Regions[1].Intervals(), []interval.Interval{{100, 300}})
	expect.EQ(t, m.Regions[2].Intervals(), []interval.Interval{{10, 40}, {500, 600}})
	expect.EQ(t, m.Order, []string{ah, ch})
	expect.EQ(t, m.Sources[ah][2], []interval.Interval{{10, 20}, {500, 600}})
	expect.EQ(t, m.Sources[ch][1], []interval.Interval{{150, 300}})
	expect.NoError(t, m.Check())
}

func TestMergeGzip(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("chr3\t1\t5\nchr3\t4\t9\n"))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	path := filepath.Join(tmpdir, "regions.txt.gz")
	writeFile(t, path, buf.String())

	m, err := interval.Merge(vcontext.Background(), []string{path}, interval.MergeOpts{})
	assert.NoError(t, err)
	expect.EQ(t, m.Regions[3].Intervals(), []interval.Interval{{1, 9}})
}

func TestMergeCollapse(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	path := filepath.Join(tmpdir, "regions.txt")
	writeFile(t, path, "chr1 1 5\nchr1 10 15\nchr1 4 12\n")

	m, err := interval.Merge(ctx, []string{path}, interval.MergeOpts{SanityCheck: true})
	assert.NoError(t, err)
	expect.EQ(t, m.Regions[1].Intervals(), []interval.Interval{{1, 12}, {10, 15}})

	m, err = interval.Merge(ctx, []string{path}, interval.MergeOpts{Collapse: true, SanityCheck: true})
	assert.NoError(t, err)
	expect.EQ(t, m.Regions[1].Intervals(), []interval.Interval{{1, 15}})
}

func TestMergeErrors(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	tests := []struct {
		data   string
		substr string
	}{
		{"chr1\tabc\t200\n", "non-integer"},
		{"chrX\t1\t200\n", "non-integer chromosome"},
		{"chr1\t300\t200\n", "invalid coordinate pair"},
	}
	for i, tt := range tests {
		path := filepath.Join(tmpdir, "bad"+string(rune('a'+i))+".txt")
		writeFile(t, path, tt.data)
		_, err := interval.Merge(ctx, []string{path}, interval.MergeOpts{})
		if err == nil || !strings.Contains(err.Error(), tt.substr) {
			t.Errorf("%q: got error %v, want one containing %q", tt.data, err, tt.substr)
		}
	}

	_, err := interval.Merge(ctx, []string{filepath.Join(tmpdir, "missing.txt")}, interval.MergeOpts{})
	expect.True(t, errors.Is(errors.NotExist, err))
}

func TestCheckDetectsMissingContainer(t *testing.T) {
	m := interval.NewMerged()
	m.Add("a", 1, interval.Interval{Start: 10, End: 20})
	m.Sources["a"][1] = append(m.Sources["a"][1], interval.Interval{Start: 30, End: 40})
	err := m.Check()
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestMergedBEDRoundTrip(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	m := interval.NewMerged()
	m.Add("a", 2, interval.Interval{Start: 500, End: 600})
	m.Add("a", 1, interval.Interval{Start: 100, End: 200})
	m.Add("b", 1, interval.Interval{Start: 150, End: 300})
	m.Add("b", 10, interval.Interval{Start: 7, End: 8})

	path := filepath.Join(tmpdir, interval.MergedBEDName)
	assert.NoError(t, interval.WriteMergedBED(ctx, path, m.Regions))
	got, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	expect.EQ(t, string(got), "chr1\t100\t300\nchr2\t500\t600\nchr10\t7\t8\n")

	regions, err := interval.ReadMergedBED(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, regions.Chroms(), []int{1, 2, 10})
	for _, chrom := range regions.Chroms() {
		expect.True(t, regions[chrom].Equal(m.Regions[chrom]))
	}
}

func TestRestrict(t *testing.T) {
	m := interval.NewMerged()
	m.Add("a", 1, interval.Interval{Start: 100, End: 200})
	m.Add("a", 1, interval.Interval{Start: 300, End: 400})
	m.Add("a", 1, interval.Interval{Start: 500, End: 600})
	m.Add("a", 3, interval.Interval{Start: 5, End: 9})

	r, err := interval.ParseRegionString("chr1:200-350")
	assert.NoError(t, err)
	got := m.Regions.Restrict(r)
	expect.EQ(t, got.Chroms(), []int{1})
	expect.EQ(t, got[1].Intervals(), []interval.Interval{{Start: 100, End: 200}, {Start: 300, End: 400}})

	r, err = interval.ParseRegionString("chr3")
	assert.NoError(t, err)
	expect.EQ(t, m.Regions.Restrict(r)[3].Intervals(), []interval.Interval{{Start: 5, End: 9}})

	r, err = interval.ParseRegionString("chr2:1-1000")
	assert.NoError(t, err)
	expect.EQ(t, m.Regions.Restrict(r).Len(), 0)
}
