package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"streamclean/internal/api"
	"streamclean/internal/config"
	"streamclean/internal/testsupport"
)

type cliTestEnv struct {
	backend    *testsupport.Backend
	configPath string
	home       string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvBaseURL, "")
	t.Chdir(t.TempDir())

	configPath := filepath.Join(home, "streamclean.toml")
	content := "[paths]\nstate_dir = " + quote(filepath.Join(home, "state")) +
		"\nlog_dir = " + quote(filepath.Join(home, "logs")) +
		"\n\n[logging]\nlevel = \"error\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	backend := testsupport.NewBackend(t)
	backend.SetTree(api.DirectoryNode{RelPath: "/", Name: "media", Children: []api.DirectoryNode{
		{RelPath: "/movies", Name: "movies", Children: []api.DirectoryNode{
			{RelPath: "/movies/classics", Name: "classics", Children: []api.DirectoryNode{}},
		}},
		{RelPath: "/tv", Name: "tv", Children: []api.DirectoryNode{}},
	}})
	backend.SetList("/", api.DirectoryContent{Files: []api.MediaFile{}, Languages: []string{}})
	backend.SetList("/movies", api.DirectoryContent{
		Files: []api.MediaFile{
			{
				RelPath:         "/movies/a.mkv",
				Name:            "a.mkv",
				AudioStreams:    []api.Stream{{ID: 1, Language: "eng"}, {ID: 2, Language: "fre"}},
				SubtitleStreams: []api.Stream{{ID: 3, Language: "eng"}},
			},
			{
				RelPath:         "/movies/b.mkv",
				Name:            "b.mkv",
				AudioStreams:    []api.Stream{{ID: 1, Language: "fre"}},
				SubtitleStreams: []api.Stream{},
			},
		},
		Languages: []string{"eng", "fre"},
	})

	return &cliTestEnv{backend: backend, configPath: configPath, home: home}
}

func quote(s string) string {
	return "'" + s + "'"
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath, "--server", e.backend.URL()}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// runAsync starts a command and returns a function that waits for it.
func (e *cliTestEnv) runAsync(t *testing.T, args ...string) func() (string, error) {
	t.Helper()
	var (
		wg     sync.WaitGroup
		stdout string
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		stdout, _, runErr = e.run(t, args...)
	}()
	return func() (string, error) {
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatalf("command %v did not finish", args)
		}
		return stdout, runErr
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
