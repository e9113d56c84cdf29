package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
)

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init",
		"storage:init-database",
		"storage:init-blobs",
		"redis:init-client",
		"auth:init-manager",
		"journal:init-service",
		"recorder:init-service",
	}
	if len(steps) != len(want) {
		t.Fatalf("unexpected step count: got %d want %d", len(steps), len(want))
	}
	for i, step := range steps {
		if step.ID != want[i] {
			t.Fatalf("step %d mismatch: got %s want %s", i, step.ID, want[i])
		}
	}
}

func TestInitGraphDependenciesSatisfied(t *testing.T) {
	steps := InitGraph()
	seen := make(map[string]bool, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if !seen[dep] {
				t.Fatalf("step %s depends on %s which has not run yet", step.ID, dep)
			}
		}
		seen[step.ID] = true
	}
}

func TestExecuteInitSteps(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("VOICENOTE_SQLITE_PATH", filepath.Join(tmp, "voicenote.db"))

	state := &appState{}
	steps := InitGraph()
	// Point the on-disk stores at the test directory before they run.
	steps[0].Execute = func(ctx context.Context, s *appState) error {
		if err := loadConfigStep(ctx, s); err != nil {
			return err
		}
		s.config.Log.Dir = filepath.Join(tmp, "logs")
		s.config.Storage.BlobDir = filepath.Join(tmp, "audio")
		return nil
	}

	if err := executeInitSteps(context.Background(), steps, state); err != nil {
		t.Fatalf("executeInitSteps failed: %v", err)
	}
	defer state.logger.Close()
	defer state.recorder.Close()

	if state.config == nil {
		t.Fatal("config is nil after init")
	}
	if state.db == nil {
		t.Fatal("database is nil after init")
	}
	if state.blobs == nil {
		t.Fatal("blob store is nil after init")
	}
	if state.journal == nil {
		t.Fatal("journal service is nil after init")
	}
	if state.recorder == nil {
		t.Fatal("recorder service is nil after init")
	}
	// Auth defaults to disabled, so no manager is built.
	if state.authManager != nil {
		t.Fatal("auth manager built with auth disabled")
	}
}

func TestExecuteInitStepsRejectsUnmetDependency(t *testing.T) {
	steps := []initStep{
		{
			ID:        "b",
			DependsOn: []string{"a"},
			Execute:   func(context.Context, *appState) error { return nil },
		},
	}
	if err := executeInitSteps(context.Background(), steps, &appState{}); err == nil {
		t.Fatal("expected error for unmet dependency")
	}
}
