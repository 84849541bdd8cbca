// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnableCmds  map[string]bool // "bin arg1 arg2" -> whether RunSilent succeeds
	runFunc       func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunStreamed(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	if m.runFunc != nil {
		return m.runFunc(ctx, name, args, stdout, stderr)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name: "neither available",
			exec: &mockExecutor{
				availableBins: map[string]bool{},
				runnableCmds:  map[string]bool{},
			},
			wantErr: true,
		},
		{
			name: "docker on PATH but info fails, podman works",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(tt.exec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), "no container runtime available") {
					t.Errorf("error should mention no runtime available, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rt.Name() != tt.wantName {
				t.Errorf("got runtime %q, want %q", rt.Name(), tt.wantName)
			}
		})
	}
}

func TestNamedRuntime(t *testing.T) {
	both := &mockExecutor{
		availableBins: map[string]bool{"docker": true, "podman": true},
		runnableCmds:  map[string]bool{"docker info": true, "podman info": true},
	}

	rt, err := namedRuntime(both, "podman")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.Name() != "podman" {
		t.Errorf("got %q, want podman", rt.Name())
	}

	rt, err = namedRuntime(both, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.Name() != "docker" {
		t.Errorf("empty name should detect docker first, got %q", rt.Name())
	}

	if _, err := namedRuntime(both, "containerd"); err == nil {
		t.Error("expected error for unknown runtime")
	}

	dockerOnly := &mockExecutor{
		availableBins: map[string]bool{"docker": true},
		runnableCmds:  map[string]bool{"docker info": true},
	}
	if _, err := namedRuntime(dockerOnly, "podman"); err == nil {
		t.Error("expected error when the named runtime is unavailable")
	}
}

func TestImageExists(t *testing.T) {
	const image = "quay.io/biocontainers/bismark:0.24.2"
	tests := []struct {
		name    string
		mkRT    func(*mockExecutor) Runtime
		cmds    map[string]bool
		wantErr bool
	}{
		{
			name: "docker image exists",
			mkRT: func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			cmds: map[string]bool{"docker image inspect " + image: true},
		},
		{
			name:    "docker image not found",
			mkRT:    func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			cmds:    map[string]bool{},
			wantErr: true,
		},
		{
			name: "podman image exists",
			mkRT: func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			cmds: map[string]bool{"podman image exists " + image: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := tt.mkRT(&mockExecutor{runnableCmds: tt.cmds})
			err := rt.ImageExists(image)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), image) {
					t.Errorf("error should mention image name, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRunArgs(t *testing.T) {
	spec := Spec{
		Image: "bismark:test",
		Mounts: []Mount{
			{Host: "/data", Container: "/data", ReadOnly: true},
			{Host: "/scratch/run1", Container: "/work"},
		},
		Workdir: "/work",
		Args:    []string{"bismark", "--genome", "/data/genome", "-N", "1", "reads.fq"},
	}
	want := "run --rm -v /data:/data:ro -v /scratch/run1:/work -w /work bismark:test bismark --genome /data/genome -N 1 reads.fq"
	if got := strings.Join(runArgs(spec), " "); got != want {
		t.Errorf("runArgs =\n  %s\nwant\n  %s", got, want)
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		mkRT    func(*mockExecutor) Runtime
		run     func(context.Context, string, []string, io.Writer, io.Writer) error
		ctx     func() context.Context
		wantOut string
		wantErr string
	}{
		{
			name: "docker run streams stdout and stderr",
			mkRT: func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			run: func(_ context.Context, name string, args []string, stdout, stderr io.Writer) error {
				if name != "docker" {
					return errors.New("expected docker binary")
				}
				_, _ = io.WriteString(stdout, strings.Join(args[len(args)-2:], " "))
				_, _ = io.WriteString(stderr, "log line")
				return nil
			},
			wantOut: "bismark --version",
		},
		{
			name: "run failure returns wrapped error",
			mkRT: func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			run: func(context.Context, string, []string, io.Writer, io.Writer) error {
				return errors.New("container exited with code 1")
			},
			wantErr: "exited with code 1",
		},
		{
			name: "cancelled context reported",
			mkRT: func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			run: func(context.Context, string, []string, io.Writer, io.Writer) error {
				return errors.New("signal: killed")
			},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErr: "context canceled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := tt.mkRT(&mockExecutor{runFunc: tt.run})
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}
			var out, errOut bytes.Buffer
			err := rt.Run(ctx, Spec{Image: "bismark:test", Args: []string{"bismark", "--version"}}, &out, &errOut)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q should contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := out.String(); got != tt.wantOut {
				t.Errorf("got output %q, want %q", got, tt.wantOut)
			}
			if errOut.String() != "log line" {
				t.Errorf("stderr not streamed, got %q", errOut.String())
			}
		})
	}
}

func TestRunRequiresImage(t *testing.T) {
	rt := newDockerRuntime(&mockExecutor{})
	if err := rt.Run(context.Background(), Spec{}, nil, nil); err == nil {
		t.Fatal("expected error for empty image")
	}
}
