package fastqc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	pkgerrors "github.com/pkg/errors"
)

const (
	adapterModule = ">>Adapter Content"
	moduleEnd     = ">>END_MODULE"
	// A cumulative adapter percentage above this marks the adapter as
	// notable.
	notableAdapterSum = 1.0
)

// ParseAdapterContent reads the Adapter Content module of a fastqc_data.txt
// and returns the single adapter whose content, summed over all positions,
// exceeds 1.  It returns "" when the module did not fail or no adapter
// stands out.  More than one notable adapter is an errors.Precondition
// error.
func ParseAdapterContent(r io.Reader, name string) (string, error) {
	var (
		reading bool
		columns []string
		sums    []float64
		lineIdx int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineIdx++
		line := scanner.Text()
		if strings.HasPrefix(line, adapterModule) {
			if !strings.Contains(line, "fail") {
				return "", nil
			}
			reading = true
			continue
		}
		if !reading {
			continue
		}
		if strings.Contains(line, moduleEnd) {
			break
		}
		if strings.HasPrefix(line, "#") {
			// The first column is the position.
			columns = strings.Split(strings.TrimSpace(line[1:]), "\t")
			sums = make([]float64, len(columns))
			continue
		}
		if len(columns) == 0 {
			return "", errors.E(errors.Invalid, fmt.Sprintf("no header for adapter content table found in %s", name))
		}
		fields := strings.Split(strings.TrimSpace(line), "\t")
		if len(fields) < len(columns) {
			return "", errors.E(errors.Invalid, pkgerrors.Errorf("%s line %d: %d adapter content columns, want %d", name, lineIdx, len(fields), len(columns)))
		}
		for i := 1; i < len(columns); i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return "", errors.E(errors.Invalid, pkgerrors.Wrapf(err, "%s line %d", name, lineIdx))
			}
			sums[i] += v
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if !reading {
		return "", nil
	}
	var notable []string
	for i := 1; i < len(columns); i++ {
		if sums[i] > notableAdapterSum {
			notable = append(notable, columns[i])
		}
	}
	switch len(notable) {
	case 0:
		log.Error.Printf("%s: adapter content module failed but no single adapter exceeds %g", name, notableAdapterSum)
		return "", nil
	case 1:
		return notable[0], nil
	default:
		return "", errors.E(errors.Precondition, fmt.Sprintf("more than one adapter content notable in %s: %s", name, strings.Join(notable, ", ")))
	}
}

// NotableAdapter runs ParseAdapterContent on fastqc_data.txt in the report
// directory dir.
func NotableAdapter(ctx context.Context, dir string) (adapter string, err error) {
	path := filepath.Join(dir, "fastqc_data.txt")
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return "", errors.E(errors.NotExist, "fastqc data", path, err)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return ParseAdapterContent(in.Reader(ctx), path)
}
