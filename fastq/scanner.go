// Package fastq reads FASTQ files and checks that the two mates of a
// paired-end sample agree.
package fastq

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrLength is returned when a read's sequence and quality differ in
	// length.
	ErrLength = errors.New("sequence and quality lengths differ")
)

// A Read is one FASTQ record.  The "+" line is validated but not kept.
type Read struct {
	ID, Seq, Qual string
}

// Name returns the read name shared by both mates: the ID without "@",
// anything after the first space, and a trailing "/1" or "/2".
func (r *Read) Name() string {
	name := r.ID
	if len(name) > 0 && name[0] == '@' {
		name = name[1:]
	}
	for i := 0; i < len(name); i++ {
		if name[i] == ' ' || name[i] == '\t' {
			name = name[:i]
			break
		}
	}
	if n := len(name); n >= 2 && name[n-2] == '/' && (name[n-1] == '1' || name[n-1] == '2') {
		name = name[:n-2]
	}
	return name
}

var errEOF = errors.New("eof")

// Scanner reads FASTQ records one at a time.  It requires ID lines to begin
// with "@", line 3 to begin with "+", and the sequence and quality to have
// the same length.  Scanners are not threadsafe.
type Scanner struct {
	b   *bufio.Scanner
	err error
	n   int
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 64*1024), 1<<20)
	return &Scanner{b: b}
}

// Scan reads the next record into read.  Once Scan returns false it never
// returns true again; check Err to tell the end of input from an error.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	read.ID = string(id)
	if !f.scan() {
		return false
	}
	read.Seq = f.b.Text()
	if !f.scan() {
		return false
	}
	if plus := f.b.Bytes(); len(plus) == 0 || plus[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	if !f.scan() {
		return false
	}
	read.Qual = f.b.Text()
	if len(read.Qual) != len(read.Seq) {
		f.err = ErrLength
		return false
	}
	f.n++
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

// N returns the number of records scanned so far.
func (f *Scanner) N() int { return f.n }

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}
