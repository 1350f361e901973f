package executor

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ZacxDev/mpymake/fs/mock"
	"github.com/ZacxDev/mpymake/target"
	"github.com/pkg/errors"
)

type runnerCall struct {
	dir  string
	name string
	args []string
}

// fakeRunner implements CommandRunner for testing
type fakeRunner struct {
	lookPathErr map[string]error
	exitCodes   map[string]int
	onRun       func(runnerCall)
	calls       []runnerCall
}

func (r *fakeRunner) LookPath(file string) (string, error) {
	if err, ok := r.lookPathErr[file]; ok {
		return "", err
	}
	return file, nil
}

func (r *fakeRunner) Run(dir, name string, args []string, stdout, stderr io.Writer) (int, error) {
	call := runnerCall{dir: dir, name: name, args: args}
	r.calls = append(r.calls, call)
	if r.onRun != nil {
		r.onRun(call)
	}
	if code, ok := r.exitCodes[name]; ok && code != 0 {
		return code, errors.Errorf("exit status %d", code)
	}
	return 0, nil
}

func newTestOrchestrator(targets map[string]*target.Target, patterns []target.PatternRule, fsys *mock.MockFileSystem, runner *fakeRunner) *Orchestrator {
	o := New(targets, patterns, fsys, runner)
	o.Stdout = &bytes.Buffer{}
	o.Stderr = &bytes.Buffer{}
	return o
}

func phonyCmd(name string, deps ...string) *target.Target {
	return &target.Target{Name: name, Phony: true, Cmd: name, Prereqs: deps}
}

func TestDiamondPrereqsRunOnceInOrder(t *testing.T) {
	targets := map[string]*target.Target{
		"a": phonyCmd("a", "b", "c"),
		"b": phonyCmd("b", "d"),
		"c": phonyCmd("c", "d"),
		"d": phonyCmd("d"),
	}
	runner := &fakeRunner{}
	o := newTestOrchestrator(targets, nil, mock.NewMockFileSystem(), runner)

	if err := o.Run("a"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var got []string
	for _, call := range runner.calls {
		if call.name != "sh" || len(call.args) != 2 {
			t.Fatalf("unexpected call: %+v", call)
		}
		got = append(got, call.args[1])
	}

	want := []string{"d", "b", "c", "a"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestUpToDateTargetDoesNothing(t *testing.T) {
	fsys := mock.NewMockFileSystem()
	fsys.Touch("driver.py", time.Unix(100, 0))
	fsys.Touch("driver.mpy", time.Unix(200, 0))

	runner := &fakeRunner{}
	patterns := []target.PatternRule{{OutSuffix: ".mpy", SrcSuffix: ".py", Tool: "mpy-cross"}}
	o := newTestOrchestrator(nil, patterns, fsys, runner)

	if err := o.Run("driver.mpy"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected no commands for an up-to-date target, got %d", len(runner.calls))
	}
	if !strings.Contains(o.Stdout.(*bytes.Buffer).String(), "up to date") {
		t.Error("expected an up-to-date report")
	}
}

func TestMissingOutputAlwaysRuns(t *testing.T) {
	fsys := mock.NewMockFileSystem()
	fsys.Touch("driver.py", time.Unix(100, 0))

	runner := &fakeRunner{}
	patterns := []target.PatternRule{{OutSuffix: ".mpy", SrcSuffix: ".py", Tool: "mpy-cross"}}
	o := newTestOrchestrator(nil, patterns, fsys, runner)

	if err := o.Run("driver.mpy"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected one compile, got %d", len(runner.calls))
	}
	if runner.calls[0].name != "mpy-cross" || runner.calls[0].args[0] != "driver.py" {
		t.Errorf("unexpected compile invocation: %+v", runner.calls[0])
	}
}

func TestOnlyStaleArtifactRecompiles(t *testing.T) {
	fsys := mock.NewMockFileSystem()
	fsys.Touch("grove_vision_ai_v2.py", time.Unix(100, 0))
	fsys.Touch("grove_vision_ai_v2.mpy", time.Unix(200, 0))
	fsys.Touch("examples/human_follower.py", time.Unix(400, 0))
	fsys.Touch("examples/human_follower.mpy", time.Unix(300, 0))

	targets := map[string]*target.Target{
		"compile": {
			Name:    "compile",
			Phony:   true,
			Prereqs: []string{"grove_vision_ai_v2.mpy", "examples/human_follower.mpy"},
		},
	}
	runner := &fakeRunner{}
	patterns := []target.PatternRule{{OutSuffix: ".mpy", SrcSuffix: ".py", Tool: "mpy-cross"}}
	o := newTestOrchestrator(targets, patterns, fsys, runner)

	if err := o.Run("compile"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("expected exactly one compile, got %d", len(runner.calls))
	}
	if runner.calls[0].args[0] != "examples/human_follower.py" {
		t.Errorf("expected the stale example to recompile, got %+v", runner.calls[0])
	}

	info, err := fsys.Stat("grove_vision_ai_v2.mpy")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.ModTime().Equal(time.Unix(200, 0)) {
		t.Error("fresh artifact was touched")
	}
}

func TestSyncUnmountedDestination(t *testing.T) {
	fsys := mock.NewMockFileSystem()
	fsys.Touch("driver.mpy", time.Unix(100, 0))

	targets := map[string]*target.Target{
		"sync": {
			Name:     "sync",
			Phony:    true,
			Copies:   []string{"driver.mpy"},
			CopyDest: "/Volumes/CIRCUITPY",
		},
	}
	runner := &fakeRunner{}
	o := newTestOrchestrator(targets, nil, fsys, runner)

	err := o.Run("sync")
	if !IsKind(err, DestinationUnavailable) {
		t.Fatalf("expected DestinationUnavailable, got %v", err)
	}
	for name := range fsys.Files {
		if strings.HasPrefix(name, "/Volumes/CIRCUITPY/") {
			t.Errorf("file copied despite unavailable destination: %s", name)
		}
	}
}

func TestSyncReadOnlyDestinationCopiesNothing(t *testing.T) {
	fsys := mock.NewMockFileSystem()
	fsys.Touch("driver.mpy", time.Unix(100, 0))
	fsys.AddDir("/Volumes/CIRCUITPY")
	fsys.ReadOnly["/Volumes/CIRCUITPY"] = true

	targets := map[string]*target.Target{
		"sync": {
			Name:     "sync",
			Phony:    true,
			Copies:   []string{"driver.mpy"},
			CopyDest: "/Volumes/CIRCUITPY",
		},
	}
	o := newTestOrchestrator(targets, nil, fsys, &fakeRunner{})

	err := o.Run("sync")
	if !IsKind(err, DestinationUnavailable) {
		t.Fatalf("expected DestinationUnavailable, got %v", err)
	}
	if _, ok := fsys.Files["/Volumes/CIRCUITPY/driver.mpy"]; ok {
		t.Error("artifact copied despite read-only destination")
	}
}

func TestSyncCopiesArtifacts(t *testing.T) {
	fsys := mock.NewMockFileSystem()
	fsys.WriteFile("examples/human_follower.mpy", []byte("bytecode"), 0644)
	fsys.AddDir("/Volumes/CIRCUITPY")

	targets := map[string]*target.Target{
		"sync": {
			Name:     "sync",
			Phony:    true,
			Copies:   []string{"examples/human_follower.mpy"},
			CopyDest: "/Volumes/CIRCUITPY",
		},
	}
	o := newTestOrchestrator(targets, nil, fsys, &fakeRunner{})

	if err := o.Run("sync"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := fsys.ReadFile("/Volumes/CIRCUITPY/human_follower.mpy")
	if err != nil {
		t.Fatalf("artifact was not copied: %v", err)
	}
	if string(data) != "bytecode" {
		t.Errorf("unexpected copied content: %q", data)
	}
}

func TestCompileErrorKeepsPreviousArtifact(t *testing.T) {
	fsys := mock.NewMockFileSystem()
	fsys.Touch("driver.mpy", time.Unix(100, 0))
	fsys.Touch("driver.py", time.Unix(200, 0))

	runner := &fakeRunner{exitCodes: map[string]int{"mpy-cross": 1}}
	patterns := []target.PatternRule{{OutSuffix: ".mpy", SrcSuffix: ".py", Tool: "mpy-cross"}}
	o := newTestOrchestrator(nil, patterns, fsys, runner)

	err := o.Run("driver.mpy")
	if !IsKind(err, CompileError) {
		t.Fatalf("expected CompileError, got %v", err)
	}

	var te *TargetError
	if !errors.As(err, &te) {
		t.Fatalf("expected a TargetError, got %T", err)
	}
	if te.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", te.ExitCode)
	}
	if te.Target != "driver.mpy" {
		t.Errorf("expected failing target name in error, got %q", te.Target)
	}

	info, err := fsys.Stat("driver.mpy")
	if err != nil {
		t.Fatalf("previous artifact is gone: %v", err)
	}
	if !info.ModTime().Equal(time.Unix(100, 0)) {
		t.Error("previous artifact was overwritten")
	}
}

func TestToolNotFound(t *testing.T) {
	fsys := mock.NewMockFileSystem()
	fsys.Touch("driver.py", time.Unix(100, 0))

	runner := &fakeRunner{lookPathErr: map[string]error{"mpy-cross": errors.New("executable file not found")}}
	patterns := []target.PatternRule{{OutSuffix: ".mpy", SrcSuffix: ".py", Tool: "mpy-cross"}}
	o := newTestOrchestrator(nil, patterns, fsys, runner)

	if err := o.Run("driver.mpy"); !IsKind(err, ToolNotFound) {
		t.Fatalf("expected ToolNotFound, got %v", err)
	}
}

func TestPatternWithoutSource(t *testing.T) {
	patterns := []target.PatternRule{{OutSuffix: ".mpy", SrcSuffix: ".py", Tool: "mpy-cross"}}
	o := newTestOrchestrator(nil, patterns, mock.NewMockFileSystem(), &fakeRunner{})

	if err := o.Run("missing.mpy"); !IsKind(err, SourceNotFound) {
		t.Fatalf("expected SourceNotFound, got %v", err)
	}
}

func TestDocsFailureIsBuildFailed(t *testing.T) {
	targets := map[string]*target.Target{
		"docs": {Name: "docs", Phony: true, Dir: "docs", Cmd: "sphinx-build -E -W -b html . _build/html"},
	}
	runner := &fakeRunner{exitCodes: map[string]int{"sh": 2}}
	o := newTestOrchestrator(targets, nil, mock.NewMockFileSystem(), runner)

	err := o.Run("docs")
	if !IsKind(err, BuildFailed) {
		t.Fatalf("expected BuildFailed, got %v", err)
	}
	if runner.calls[0].dir != "docs" {
		t.Errorf("docs must run inside the docs directory, got %q", runner.calls[0].dir)
	}
}

func TestPrereqFailureAbortsChain(t *testing.T) {
	targets := map[string]*target.Target{
		"a": phonyCmd("a", "b", "c"),
		"b": phonyCmd("b"),
		"c": phonyCmd("c"),
	}
	runner := &fakeRunner{}
	runner.onRun = func(call runnerCall) {
		if call.args[1] == "b" {
			runner.exitCodes = map[string]int{"sh": 1}
		}
	}
	o := newTestOrchestrator(targets, nil, mock.NewMockFileSystem(), runner)

	if err := o.Run("a"); !IsKind(err, BuildFailed) {
		t.Fatalf("expected BuildFailed, got %v", err)
	}
	if len(runner.calls) != 1 {
		t.Errorf("expected no targets after the first failure, got %d calls", len(runner.calls))
	}
}

func TestDryRunExecutesNothing(t *testing.T) {
	fsys := mock.NewMockFileSystem()
	fsys.Touch("driver.py", time.Unix(100, 0))

	runner := &fakeRunner{}
	patterns := []target.PatternRule{{OutSuffix: ".mpy", SrcSuffix: ".py", Tool: "mpy-cross"}}
	o := newTestOrchestrator(nil, patterns, fsys, runner)
	o.DryRun = true

	if err := o.Run("driver.mpy"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("dry run must not execute actions, got %d calls", len(runner.calls))
	}
	if !strings.Contains(o.Stdout.(*bytes.Buffer).String(), "would run") {
		t.Error("expected a would-run report")
	}
}

func TestCleanRemovesArtifacts(t *testing.T) {
	fsys := mock.NewMockFileSystem()
	fsys.Touch("driver.mpy", time.Unix(100, 0))
	fsys.Touch("docs/_build/html/index.html", time.Unix(100, 0))

	targets := map[string]*target.Target{
		"clean": {Name: "clean", Phony: true, Removes: []string{"driver.mpy", "docs/_build"}},
	}
	o := newTestOrchestrator(targets, nil, fsys, &fakeRunner{})

	if err := o.Run("clean"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, ok := fsys.Files["driver.mpy"]; ok {
		t.Error("artifact not removed")
	}
	if _, ok := fsys.Files["docs/_build/html/index.html"]; ok {
		t.Error("docs tree not removed")
	}
}
