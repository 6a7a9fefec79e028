package fastqc_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/seqinspector/fastqc"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const summary = "PASS\tBasic Statistics\tAH_S1_L001_R1.fastq\n" +
	"WARN\tPer base sequence content\tAH_S1_L001_R1.fastq\n" +
	"FAIL\tAdapter Content\tAH_S1_L001_R1.fastq\n" +
	"PASS\tPer sequence quality scores\tAH_S1_L001_R1.fastq\n" +
	"FAIL\tPer base sequence quality\tAH_S1_L001_R1.fastq\n"

func TestParseSummary(t *testing.T) {
	flags, err := fastqc.ParseSummary(strings.NewReader(summary))
	assert.NoError(t, err)
	expect.EQ(t, flags, []fastqc.Flag{
		{fastqc.Fail, "Adapter Content", "AH_S1_L001_R1.fastq"},
		{fastqc.Fail, "Per base sequence quality", "AH_S1_L001_R1.fastq"},
		{fastqc.Warn, "Per base sequence content", "AH_S1_L001_R1.fastq"},
	})

	flags, err = fastqc.ParseSummary(strings.NewReader("PASS\tBasic Statistics\tx.fastq\n"))
	assert.NoError(t, err)
	expect.EQ(t, len(flags), 0)
}

func TestReadSummary(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	dir := fastqc.DirName(tmpdir, "AH_S1_L001", "R1")
	expect.EQ(t, dir, filepath.Join(tmpdir, "AH_S1_L001_R1_fastqc"))
	assert.NoError(t, os.MkdirAll(dir, 0755))
	assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, "summary.txt"), []byte(summary), 0644))

	flags, err := fastqc.ReadSummary(ctx, dir)
	assert.NoError(t, err)
	expect.EQ(t, len(flags), 3)

	_, err = fastqc.ReadSummary(ctx, fastqc.DirName(tmpdir, "CH_S2_L001", "R1"))
	expect.True(t, errors.Is(errors.NotExist, err))
}

func TestFlagTable(t *testing.T) {
	table := fastqc.NewFlagTable([]fastqc.Report{
		{Root: "AH_S1_L001", Label: "R1", Flags: []fastqc.Flag{{fastqc.Fail, "Adapter Content", "a"}, {fastqc.Warn, "Overrepresented sequences", "a"}}},
		{Root: "AH_S1_L001", Label: "R2"},
		{Root: "CH_S2_L001", Label: "R1", Flags: []fastqc.Flag{{fastqc.Warn, "Adapter Content", "c"}}},
	})
	expect.EQ(t, table.Modules, []string{"Adapter Content", "Overrepresented sequences"})
	expect.EQ(t, table.Cells, [][]string{{"FAIL", "OK", "WARN"}, {"WARN", "OK", "OK"}})

	var buf bytes.Buffer
	assert.NoError(t, table.Write(&buf))
	expect.EQ(t, buf.String(), "module\tAH_S1_L001 R1\tAH_S1_L001 R2\tCH_S2_L001 R1\n"+
		"Adapter Content\tFAIL\tOK\tWARN\n"+
		"Overrepresented sequences\tWARN\tOK\tOK\n")
}

func adapterData(status, header string, rows ...string) string {
	return "##FastQC\t0.11.9\n" +
		">>Basic Statistics\tpass\n#Measure\tValue\nFilename\tx.fastq\n>>END_MODULE\n" +
		">>Adapter Content\t" + status + "\n" +
		header +
		strings.Join(rows, "") +
		">>END_MODULE\n" +
		">>Overrepresented sequences\tpass\n>>END_MODULE\n"
}

const adapterHeader = "#Position\tIllumina Universal Adapter\tIllumina Small RNA 3' Adapter\tNextera Transposase Sequence\tSOLID Small RNA Adapter\n"

func TestParseAdapterContent(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{adapterData("pass", adapterHeader, "1\t5.0\t0.0\t0.0\t0.0\n"), ""},
		{adapterData("fail", adapterHeader,
			"1\t0.5\t0.0\t0.0\t0.0\n",
			"2\t0.75\t0.1\t0.0\t0.0\n",
			"3-4\t1.5\t0.2\t0.0\t0.0\n"), "Illumina Universal Adapter"},
		// Only the last column stands out; each column is summed separately.
		{adapterData("fail", adapterHeader,
			"1\t0.0\t0.0\t0.0\t0.6\n",
			"2\t0.0\t0.0\t0.0\t0.6\n"), "SOLID Small RNA Adapter"},
		{adapterData("fail", adapterHeader, "1\t0.1\t0.1\t0.1\t0.1\n"), ""},
		{">>Basic Statistics\tpass\n>>END_MODULE\n", ""},
	}
	for _, tt := range tests {
		got, err := fastqc.ParseAdapterContent(strings.NewReader(tt.data), "fastqc_data.txt")
		assert.NoError(t, err)
		expect.EQ(t, got, tt.want)
	}
}

func TestParseAdapterContentErrors(t *testing.T) {
	_, err := fastqc.ParseAdapterContent(strings.NewReader(adapterData("fail", adapterHeader,
		"1\t2.0\t0.0\t3.0\t0.0\n")), "fastqc_data.txt")
	expect.True(t, errors.Is(errors.Precondition, err))
	expect.True(t, strings.Contains(err.Error(), "Illumina Universal Adapter, Nextera Transposase Sequence"))

	_, err = fastqc.ParseAdapterContent(strings.NewReader(adapterData("fail", "", "1\t2.0\t0.0\t3.0\t0.0\n")), "fastqc_data.txt")
	expect.True(t, errors.Is(errors.Invalid, err))

	_, err = fastqc.ParseAdapterContent(strings.NewReader(adapterData("fail", adapterHeader, "1\tlots\t0.0\t0.0\t0.0\n")), "fastqc_data.txt")
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestNotableAdapter(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	dir := fastqc.DirName(tmpdir, "AH_S1_L001", "R2")
	assert.NoError(t, os.MkdirAll(dir, 0755))
	data := adapterData("fail", adapterHeader, "1\t3.0\t0.0\t0.0\t0.0\n")
	assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, "fastqc_data.txt"), []byte(data), 0644))

	adapter, err := fastqc.NotableAdapter(ctx, dir)
	assert.NoError(t, err)
	expect.EQ(t, adapter, "Illumina Universal Adapter")

	_, err = fastqc.NotableAdapter(ctx, filepath.Join(tmpdir, "missing"))
	expect.True(t, errors.Is(errors.NotExist, err))
}
