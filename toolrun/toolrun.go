// Package toolrun starts the external programs the pipeline depends on and
// checks for the files they are expected to leave behind.
package toolrun

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"v.io/x/lib/envvar"
	"v.io/x/lib/lookpath"
)

// Cmd describes one invocation of an external tool.
type Cmd struct {
	// Path is the executable.
	Path string
	// Args are the arguments, not including the executable.
	Args []string
	// Stdout, if nonempty, names a local file that receives the standard
	// output of the command.  Otherwise the output is returned to the caller.
	Stdout string
	// Dir is the working directory.  Empty means the current one.
	Dir string
}

// String renders the command the way it would be typed in a shell.
func (c Cmd) String() string {
	parts := append([]string{c.Path}, c.Args...)
	s := strings.Join(parts, " ")
	if c.Stdout != "" {
		s += " > " + c.Stdout
	}
	return s
}

// Runner runs external commands.
type Runner interface {
	// Run runs cmds as a pipeline: the standard output of each command is
	// the standard input of the next.  It returns the standard output of the
	// last command unless that command's Stdout names a file.  A non-zero
	// exit status of any command is an error.
	Run(ctx context.Context, cmds ...Cmd) ([]byte, error)
}

// ExecRunner is a Runner backed by os/exec.
type ExecRunner struct{}

// maxStderr bounds the amount of standard error kept for error messages.
const maxStderr = 4096

// tailBuffer keeps the last maxStderr bytes written to it.
type tailBuffer struct {
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if len(b.buf) > maxStderr {
		b.buf = b.buf[len(b.buf)-maxStderr:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return strings.TrimSpace(string(b.buf))
}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmds ...Cmd) (out []byte, err error) {
	if len(cmds) == 0 {
		return nil, errors.E(errors.Invalid, "toolrun.Run: no command")
	}
	var (
		execs   = make([]*exec.Cmd, len(cmds))
		stderrs = make([]*tailBuffer, len(cmds))
		stdout  bytes.Buffer
	)
	for i, c := range cmds {
		log.Printf("running %s", c)
		e := exec.CommandContext(ctx, c.Path, c.Args...)
		e.Dir = c.Dir
		stderrs[i] = &tailBuffer{}
		e.Stderr = stderrs[i]
		execs[i] = e
	}
	for i := 0; i < len(execs)-1; i++ {
		var pipe io.ReadCloser
		if pipe, err = execs[i].StdoutPipe(); err != nil {
			return nil, errors.E(err, "toolrun.Run: pipe", cmds[i].String())
		}
		execs[i+1].Stdin = pipe
	}
	last := cmds[len(cmds)-1]
	if last.Stdout != "" {
		var f *os.File
		if f, err = os.Create(last.Stdout); err != nil {
			return nil, errors.E(err, "toolrun.Run: create", last.Stdout)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		execs[len(execs)-1].Stdout = f
	} else {
		execs[len(execs)-1].Stdout = &stdout
	}
	for i, e := range execs {
		if err = e.Start(); err != nil {
			for _, started := range execs[:i] {
				_ = started.Process.Kill()
				_ = started.Wait()
			}
			return nil, errors.E(err, "toolrun.Run: start", cmds[i].String())
		}
	}
	for i, e := range execs {
		if werr := e.Wait(); werr != nil && err == nil {
			err = errors.E(werr, fmt.Sprintf("toolrun.Run: %s: %s", cmds[i], stderrs[i]))
		}
	}
	if err != nil {
		return nil, err
	}
	for i, s := range stderrs {
		if len(s.buf) > 0 {
			log.Debug.Printf("%s: %s", cmds[i].Path, s)
		}
	}
	return stdout.Bytes(), nil
}

// Resolve returns the executable path for tool.  A bare name is looked up in
// PATH; anything containing a path separator is returned unchanged.
func Resolve(tool string) (string, error) {
	if tool == "" {
		return "", errors.E(errors.Invalid, "toolrun.Resolve: empty tool name")
	}
	if strings.ContainsRune(tool, os.PathSeparator) {
		return tool, nil
	}
	path, err := lookpath.Look(envvar.SliceToMap(os.Environ()), tool)
	if err != nil {
		return "", errors.E(errors.NotExist, fmt.Sprintf("%s not found in PATH", tool), err)
	}
	return path, nil
}

// Exists reports whether path names an existing file or directory.
func Exists(ctx context.Context, path string) bool {
	if _, err := file.Stat(ctx, path); err == nil {
		return true
	}
	// file.Stat fails on local directories.
	if scheme, _, err := file.ParsePath(path); err != nil || scheme != "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CheckExist returns an errors.NotExist error for the first of paths that
// does not exist.
func CheckExist(ctx context.Context, paths ...string) error {
	for _, path := range paths {
		if path == "" || !Exists(ctx, path) {
			return errors.E(errors.NotExist, fmt.Sprintf(
				"%q not found. Check the configured tool paths and the directory layout under the home directory; "+
					"stages must be run in order, so some files may not have been created yet", path))
		}
	}
	return nil
}

// Remove deletes each of paths, stopping at the first failure.
func Remove(ctx context.Context, paths ...string) error {
	for _, path := range paths {
		if err := file.Remove(ctx, path); err != nil {
			return errors.E(err, "remove", path)
		}
	}
	return nil
}

// RemoveDir deletes the files in dir, then dir itself.  A missing dir is not
// an error.
func RemoveDir(ctx context.Context, dir string) error {
	if !Exists(ctx, dir) {
		return nil
	}
	lister := file.List(ctx, dir, true)
	for lister.Scan() {
		if lister.IsDir() {
			continue
		}
		if err := file.Remove(ctx, lister.Path()); err != nil {
			return err
		}
	}
	if err := lister.Err(); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// MkdirAll creates each of dirs along with any missing parents.
func MkdirAll(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.E(err, "mkdir", dir)
		}
	}
	return nil
}
