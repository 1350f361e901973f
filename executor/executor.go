package executor

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZacxDev/mpymake/fs"
	"github.com/ZacxDev/mpymake/target"
	"github.com/pkg/errors"
)

// Orchestrator resolves target names against the registered table and
// pattern rules, then executes stale targets depth-first in prerequisite
// order. Execution is strictly sequential and each target runs at most
// once per invocation; the first failure aborts the remaining chain.
type Orchestrator struct {
	Targets  map[string]*target.Target
	Patterns []target.PatternRule
	FS       fs.FileSystem
	Runner   CommandRunner
	Status   StatusManager
	Stdout   io.Writer
	Stderr   io.Writer
	DryRun   bool

	visited map[string]bool
}

func New(targets map[string]*target.Target, patterns []target.PatternRule, fsys fs.FileSystem, runner CommandRunner) *Orchestrator {
	return &Orchestrator{
		Targets:  targets,
		Patterns: patterns,
		FS:       fsys,
		Runner:   runner,
		Status:   NewStatusManager(),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

func (o *Orchestrator) Run(names ...string) error {
	o.visited = make(map[string]bool)
	for _, name := range names {
		if err := o.run(name); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) run(name string) error {
	if o.visited[name] {
		return nil
	}
	o.visited[name] = true

	t, err := o.resolve(name)
	if err != nil {
		return err
	}
	if t == nil {
		// plain file prerequisite, nothing to build
		return nil
	}

	for _, dep := range t.Prereqs {
		if err := o.run(dep); err != nil {
			return err
		}
	}

	stale, err := o.isStale(t)
	if err != nil {
		return errors.Wrapf(err, "checking staleness of target %s", t.Name)
	}
	if !stale {
		o.Status.SetStatus(t.Name, StatusUpToDate)
		fmt.Fprintf(o.Stdout, "[%s] up to date\n", t.Name)
		return nil
	}
	if o.DryRun {
		o.Status.SetStatus(t.Name, StatusQueued)
		fmt.Fprintf(o.Stdout, "[%s] would run\n", t.Name)
		return nil
	}

	o.Status.UpdateStatus(t.Name, StatusRunning, time.Now(), time.Time{})
	if err := o.execute(t); err != nil {
		o.Status.UpdateStatus(t.Name, StatusFailed, time.Time{}, time.Now())
		log.Printf("Error executing target %s: %v", t.Name, err)
		return err
	}
	o.Status.UpdateStatus(t.Name, StatusCompleted, time.Time{}, time.Now())
	fmt.Fprintf(o.Stdout, "[%s] completed\n", t.Name)
	return nil
}

// resolve looks the name up in the target table, then against pattern
// rules. A nil target with nil error means the name is an existing file
// that satisfies a prerequisite without needing a rule.
func (o *Orchestrator) resolve(name string) (*target.Target, error) {
	if t, ok := o.Targets[name]; ok {
		return t, nil
	}
	for _, rule := range o.Patterns {
		if !rule.Matches(name) {
			continue
		}
		src := rule.Source(name)
		if _, err := o.FS.Stat(src); err != nil {
			return nil, &TargetError{
				Target: name,
				Kind:   SourceNotFound,
				Err:    errors.Errorf("no source %s to build %s", src, name),
			}
		}
		return rule.Instantiate(name), nil
	}
	if _, err := o.FS.Stat(name); err == nil {
		return nil, nil
	}
	return nil, errors.Errorf("no rule to build target %q", name)
}

// isStale reports whether the target's action must run: phony targets
// are always stale, file-backed targets are stale when the output is
// missing or any input is newer than it.
func (o *Orchestrator) isStale(t *target.Target) (bool, error) {
	if t.Phony || t.Output == "" {
		return true, nil
	}
	out, err := o.FS.Stat(t.Output)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	for _, dep := range t.Prereqs {
		mt, ok, err := o.inputModTime(dep)
		if err != nil {
			return false, err
		}
		if ok && mt.After(out.ModTime()) {
			return true, nil
		}
	}
	return false, nil
}

// inputModTime returns the newest modification time contributed by a
// prerequisite. A prerequisite naming a registered target contributes
// its output file's timestamp; anything else is treated as a file path
// or glob pattern.
func (o *Orchestrator) inputModTime(dep string) (time.Time, bool, error) {
	if t, ok := o.Targets[dep]; ok {
		if t.Output == "" {
			return time.Time{}, false, nil
		}
		dep = t.Output
	}
	matches, err := o.FS.DoublestarGlob(dep)
	if err != nil {
		return time.Time{}, false, errors.Wrapf(err, "expanding glob pattern %s", dep)
	}
	var newest time.Time
	for _, match := range matches {
		info, err := o.FS.Stat(match)
		if err != nil {
			return time.Time{}, false, err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest, !newest.IsZero(), nil
}

func (o *Orchestrator) execute(t *target.Target) error {
	switch {
	case t.Tool != "":
		return o.runTool(t)
	case t.Cmd != "":
		return o.runCmd(t)
	case t.CopyDest != "":
		return o.runCopy(t)
	case len(t.Removes) > 0:
		return o.runRemove(t)
	}
	return nil // aggregate target, prerequisites were its only effect
}

func (o *Orchestrator) runTool(t *target.Target) error {
	path, err := o.Runner.LookPath(t.Tool)
	if err != nil {
		return &TargetError{
			Target: t.Name,
			Kind:   ToolNotFound,
			Err:    errors.Wrapf(err, "cannot resolve %s", t.Tool),
		}
	}
	code, err := o.Runner.Run(t.Dir, path, t.ToolArgs, o.prefixed(t.Name, o.Stdout), o.prefixed(t.Name, o.Stderr))
	if err != nil {
		return &TargetError{Target: t.Name, Kind: CompileError, ExitCode: code, Err: err}
	}
	return nil
}

func (o *Orchestrator) runCmd(t *target.Target) error {
	code, err := o.Runner.Run(t.Dir, "sh", []string{"-c", t.Cmd}, o.prefixed(t.Name, o.Stdout), o.prefixed(t.Name, o.Stderr))
	if err != nil {
		return &TargetError{Target: t.Name, Kind: BuildFailed, ExitCode: code, Err: err}
	}
	return nil
}

func (o *Orchestrator) runCopy(t *target.Target) error {
	info, err := o.FS.Stat(t.CopyDest)
	if err != nil || !info.IsDir() {
		return &TargetError{
			Target: t.Name,
			Kind:   DestinationUnavailable,
			Err:    errors.Errorf("destination %s is not a mounted directory", t.CopyDest),
		}
	}

	// Probe writability before touching any artifact so a read-only
	// mount results in zero copies.
	probe := filepath.Join(t.CopyDest, ".mpymake-probe")
	if err := o.FS.WriteFile(probe, nil, 0644); err != nil {
		return &TargetError{
			Target: t.Name,
			Kind:   DestinationUnavailable,
			Err:    errors.Wrapf(err, "destination %s is not writable", t.CopyDest),
		}
	}
	o.FS.Remove(probe)

	for _, src := range t.Copies {
		data, err := o.FS.ReadFile(src)
		if err != nil {
			return errors.Wrapf(err, "reading artifact %s", src)
		}
		dst := filepath.Join(t.CopyDest, filepath.Base(src))
		if err := o.FS.WriteFile(dst, data, 0644); err != nil {
			return &TargetError{Target: t.Name, Kind: DestinationUnavailable, Err: err}
		}
		fmt.Fprintf(o.Stdout, "[%s] copied %s -> %s\n", t.Name, src, dst)
	}
	return nil
}

func (o *Orchestrator) runRemove(t *target.Target) error {
	for _, path := range t.Removes {
		if err := o.FS.RemoveAll(path); err != nil {
			return errors.Wrapf(err, "removing %s", path)
		}
		fmt.Fprintf(o.Stdout, "[%s] removed %s\n", t.Name, path)
	}
	return nil
}

func (o *Orchestrator) prefixed(name string, w io.Writer) io.Writer {
	return &lineWriter{name: name, w: w, status: o.Status}
}

// lineWriter prefixes each complete output line with the target name and
// mirrors it into the status manager for the live UI.
type lineWriter struct {
	name   string
	w      io.Writer
	status StatusManager
	buf    bytes.Buffer
}

func (lw *lineWriter) Write(p []byte) (int, error) {
	lw.buf.Write(p)
	for {
		line, err := lw.buf.ReadString('\n')
		if err != nil {
			lw.buf.WriteString(line) // keep the partial line buffered
			break
		}
		line = strings.TrimRight(line, "\n")
		fmt.Fprintf(lw.w, "[%s] %s\n", lw.name, line)
		lw.status.AppendLog(lw.name, line)
	}
	return len(p), nil
}
