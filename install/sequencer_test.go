package install

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/n1ntencube/CubicLauncher/auth"
	"github.com/n1ntencube/CubicLauncher/events"
	"github.com/n1ntencube/CubicLauncher/fetch"
	"github.com/n1ntencube/CubicLauncher/internal/lockset"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) named(name events.Name) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []events.Event
	for _, evt := range r.events {
		if evt.Name() == name {
			out = append(out, evt)
		}
	}

	return out
}

type fakeRunner struct {
	code  int
	calls [][]string
	onRun func()
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (int, error) {
	f.calls = append(f.calls, append([]string{dir, name}, args...))
	if f.onRun != nil {
		f.onRun()
	}

	return f.code, nil
}

var (
	clientBytes = bytes.Repeat([]byte("client"), 2048)
	forgeBytes  = []byte("forge universal")
)

func gameServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/mc/game/version_manifest.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"latest":{"release":"1.12.2"},"versions":[{"id":"1.12.2","type":"release","url":"%s/v1/1.12.2.json"}]}`, srv.URL)
	})
	mux.HandleFunc("/v1/1.12.2.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"id":"1.12.2",
			"mainClass":"net.minecraft.client.main.Main",
			"minecraftArguments":"--username ${auth_player_name}",
			"assetIndex":{"id":"1.12","url":"%[1]s/assets/1.12.json"},
			"downloads":{"client":{"url":"%[1]s/objects/client.jar"}},
			"libraries":[
				{"name":"com.example:good:1","downloads":{"artifact":{"path":"com/example/good/1/good-1.jar","url":"%[1]s/libs/good.jar"}}},
				{"name":"com.example:gone:1","downloads":{"artifact":{"path":"com/example/gone/1/gone-1.jar","url":"%[1]s/libs/gone.jar"}}},
				{"name":"com.example:osx:1","rules":[{"action":"allow","os":{"name":"osx"}}],"downloads":{"artifact":{"path":"com/example/osx/1/osx-1.jar","url":"%[1]s/libs/osx.jar"}}},
				{"name":"com.example:escape:1","downloads":{"artifact":{"path":"../escape-1.jar","url":"%[1]s/libs/escape.jar"}}},
				{"name":"com.example:natives-only:1"}
			]
		}`, srv.URL)
	})
	mux.HandleFunc("/objects/client.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(clientBytes)))
		_, _ = w.Write(clientBytes)
	})
	mux.HandleFunc("/libs/good.jar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("good"))
	})
	mux.HandleFunc("/libs/osx.jar", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("osx-only library requested on linux")
	})
	mux.HandleFunc("/libs/escape.jar", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("library outside the libraries dir requested")
	})
	mux.HandleFunc("/forge/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(forgeBytes)
	})
	mux.HandleFunc("/mods/a.jar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mod a"))
	})
	mux.HandleFunc("/mods/b.jar", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/mods/c.jar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mod c"))
	})
	mux.HandleFunc("/redirect/c.jar", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/mods/c.jar", http.StatusFound)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newTestSequencer(t *testing.T, srv *httptest.Server, mutate func(*Config)) (*Sequencer, *recorder) {
	t.Helper()

	rec := &recorder{}
	cfg := Config{
		GameDir:     t.TempDir(),
		ManifestURL: srv.URL + "/mc/game/version_manifest.json",
		Runtime: RuntimeConfig{
			LookPath: func(string) (string, error) { return "/usr/bin/java", nil },
		},
		ModLoader: ModLoaderConfig{
			Enabled:     true,
			ArtifactURL: srv.URL + "/forge/forge-{mc}-{loader}.jar",
		},
		Fetcher: fetch.New(fetch.Config{HTTPClient: srv.Client()}),
		Runner:  &fakeRunner{},
		Events:  rec,
		GOOS:    "linux",
		GOARCH:  "amd64",
	}

	if mutate != nil {
		mutate(&cfg)
	}

	s, err := NewSequencer(cfg)
	if err != nil {
		t.Fatalf("new sequencer: %v", err)
	}

	return s, rec
}

func collect(reports *[]Progress) Sink {
	var mu sync.Mutex
	return func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		*reports = append(*reports, p)
	}
}

func assertMonotonic(t *testing.T, reports []Progress) {
	t.Helper()

	for i := 1; i < len(reports); i++ {
		if reports[i].Percent < reports[i-1].Percent {
			t.Fatalf("progress went backward at %d: %.2f -> %.2f (%s)", i, reports[i-1].Percent, reports[i].Percent, reports[i].Status)
		}
	}
}

func TestRunInstallsEverything(t *testing.T) {
	srv := gameServer(t)
	s, rec := newTestSequencer(t, srv, nil)
	layout := s.Layout()

	var reports []Progress
	id := auth.Identity{
		Profile:       auth.GameProfile{ID: "0123abcd", Name: "Steve"},
		Authorization: auth.GameAuthorization{AccessToken: "mc-token"},
	}

	lc, err := s.Run(context.Background(), Request{
		ModURLs:  []string{srv.URL + "/mods/a.jar", srv.URL + "/redirect/c.jar"},
		Identity: id,
		Progress: collect(&reports),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, p := range []string{
		layout.ClientJar("1.12.2"),
		layout.ClientDescriptor("1.12.2"),
		library(t, layout, "com/example/good/1/good-1.jar"),
		layout.ModLoaderJar("1.12.2", DefaultModLoaderVersion),
		layout.ModLoaderDescriptor("1.12.2"),
		filepath.Join(layout.ModsDir(), "a.jar"),
		filepath.Join(layout.ModsDir(), "c.jar"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s: %v", p, err)
		}
	}

	if _, err := os.Stat(library(t, layout, "com/example/osx/1/osx-1.jar")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("osx library should not be installed on linux")
	}

	if _, err := os.Stat(filepath.Join(layout.Root, "escape-1.jar")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("library escaped the libraries dir")
	}

	skipped := rec.named(events.EventLibrarySkipped)
	if len(skipped) != 2 {
		t.Fatalf("expected two skipped library events, got %#v", skipped)
	}
	if !strings.Contains(skipped[0].(events.LibrarySkipped).Path, "gone-1.jar") {
		t.Fatalf("expected gone library skipped first, got %#v", skipped[0])
	}
	if err := skipped[1].(events.LibrarySkipped).Err; !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected unsafe path skip, got %v", err)
	}

	assertMonotonic(t, reports)
	last := reports[len(reports)-1]
	if last.Percent != 100 || last.Stage != StageDone {
		t.Fatalf("expected final 100%% done report, got %#v", last)
	}

	if len(rec.named(events.EventInstallCompleted)) != 1 {
		t.Fatalf("expected install completed event")
	}

	if !lc.ModLoader || lc.MainClass != modLoaderMainClass {
		t.Fatalf("expected mod loader launch config, got %#v", lc)
	}

	cp := strings.Join(lc.Classpath, "|")
	if !strings.Contains(cp, "good-1.jar") || strings.Contains(cp, "gone-1.jar") || !strings.HasSuffix(cp, "1.12.2.jar") {
		t.Fatalf("unexpected classpath %s", cp)
	}

	if lc.JavaPath != "/usr/bin/java" {
		t.Fatalf("unexpected java path %s", lc.JavaPath)
	}
}

func TestRunRefusesBusyGameDir(t *testing.T) {
	srv := gameServer(t)
	locks := lockset.New()
	s, rec := newTestSequencer(t, srv, func(c *Config) { c.Locks = locks })

	release := locks.Lock(s.Layout().Root)
	if _, err := s.Run(context.Background(), Request{}); !errors.Is(err, ErrInstallRunning) {
		t.Fatalf("expected ErrInstallRunning, got %v", err)
	}
	if len(rec.named(events.EventInstallFailed)) != 0 {
		t.Fatalf("busy game dir should not report a failed install")
	}
	release()

	if _, err := s.Run(context.Background(), Request{}); err != nil {
		t.Fatalf("run after release: %v", err)
	}
}

func TestRunModFailureNamesMod(t *testing.T) {
	srv := gameServer(t)
	s, rec := newTestSequencer(t, srv, nil)

	var reports []Progress
	_, err := s.Run(context.Background(), Request{
		ModURLs:  []string{srv.URL + "/mods/a.jar", srv.URL + "/mods/b.jar"},
		Progress: collect(&reports),
	})

	var me *ModError
	if !errors.As(err, &me) || me.Name != "b.jar" {
		t.Fatalf("expected ModError for b.jar, got %v", err)
	}

	if !strings.Contains(err.Error(), "b.jar") {
		t.Fatalf("error should name the mod: %v", err)
	}

	if fetch.Status(err) != http.StatusInternalServerError {
		t.Fatalf("expected wrapped 500, got %d", fetch.Status(err))
	}

	mods := s.Layout().ModsDir()
	if _, err := os.Stat(filepath.Join(mods, "a.jar")); err != nil {
		t.Fatalf("a.jar should be installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(mods, "b.jar")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("b.jar should be absent, stat err=%v", err)
	}

	assertMonotonic(t, reports)
	if last := reports[len(reports)-1]; last.Status != "error" {
		t.Fatalf("expected trailing error report, got %#v", last)
	}

	failed := rec.named(events.EventInstallFailed)
	if len(failed) != 1 || failed[0].(events.InstallFailed).Stage != string(StageMods) {
		t.Fatalf("expected one failure event in mods stage, got %#v", failed)
	}
}

func TestRunVersionNotFound(t *testing.T) {
	srv := gameServer(t)
	s, _ := newTestSequencer(t, srv, func(c *Config) { c.Version = "0.0.1" })

	_, err := s.Run(context.Background(), Request{})

	var vnf *VersionNotFoundError
	if !errors.As(err, &vnf) || vnf.Version != "0.0.1" {
		t.Fatalf("expected VersionNotFoundError, got %v", err)
	}
}

func TestRunUnsupportedPlatform(t *testing.T) {
	srv := gameServer(t)
	s, _ := newTestSequencer(t, srv, func(c *Config) {
		c.GOOS, c.GOARCH = "plan9", "386"
		c.Runtime.LookPath = func(string) (string, error) { return "", os.ErrNotExist }
	})

	_, err := s.Run(context.Background(), Request{})
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func jreArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range []struct {
		name string
		body string
	}{
		{"jdk8u402-b06-jre/release", "JAVA_VERSION=1.8"},
		{"jdk8u402-b06-jre/bin/java", "#!/bin/sh\n"},
	} {
		_ = tw.WriteHeader(&tar.Header{Name: e.name, Mode: 0o755, Size: int64(len(e.body)), Typeflag: tar.TypeReg})
		_, _ = tw.Write([]byte(e.body))
	}
	_ = tw.Close()
	_ = gz.Close()

	return buf.Bytes()
}

func TestEnsureRuntimeDownloadsAndExtracts(t *testing.T) {
	payload := jreArchive(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/latest" {
			http.Redirect(w, r, "/jre.tar.gz", http.StatusTemporaryRedirect)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	s, _ := newTestSequencer(t, srv, func(c *Config) {
		c.Runtime.LookPath = func(string) (string, error) { return "", os.ErrNotExist }
		c.Runtime.URLs = map[string]string{"linux/amd64": srv.URL + "/latest"}
	})

	path, err := s.EnsureRuntime(context.Background(), nil)
	if err != nil {
		t.Fatalf("ensure runtime: %v", err)
	}

	want := filepath.Join(s.Layout().RuntimeDir(), "jre", "jdk8u402-b06-jre", "bin", "java")
	if path != want {
		t.Fatalf("java path = %s, want %s", path, want)
	}

	// second call finds the extracted runtime without downloading
	srv.Close()
	again, err := s.EnsureRuntime(context.Background(), nil)
	if err != nil || again != want {
		t.Fatalf("expected cached runtime, got %s %v", again, err)
	}
}

func TestEnsureRuntimeBadArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	s, _ := newTestSequencer(t, srv, func(c *Config) {
		c.Runtime.LookPath = func(string) (string, error) { return "", os.ErrNotExist }
		c.Runtime.URLs = map[string]string{"linux/amd64": srv.URL + "/jre"}
	})

	_, err := s.EnsureRuntime(context.Background(), nil)

	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestModLoaderInstallerExitCode(t *testing.T) {
	srv := gameServer(t)
	runner := &fakeRunner{code: 3}
	s, _ := newTestSequencer(t, srv, func(c *Config) {
		c.ModLoader.RunInstaller = true
		c.ModLoader.InstallerURL = srv.URL + "/forge/installer.jar"
		c.Runner = runner
	})

	_, err := s.Run(context.Background(), Request{})

	var ie *InstallerError
	if !errors.As(err, &ie) || ie.ExitCode != 3 {
		t.Fatalf("expected InstallerError exit 3, got %v", err)
	}

	if len(runner.calls) != 1 || runner.calls[0][1] != "/usr/bin/java" || runner.calls[0][2] != "-jar" {
		t.Fatalf("unexpected installer invocation %#v", runner.calls)
	}
}

func TestModLoaderInstallerSuccess(t *testing.T) {
	srv := gameServer(t)
	runner := &fakeRunner{}
	s, _ := newTestSequencer(t, srv, func(c *Config) {
		c.ModLoader.RunInstaller = true
		c.ModLoader.InstallerURL = srv.URL + "/forge/installer.jar"
		c.Runner = runner
	})

	jar := s.Layout().ModLoaderJar("1.12.2", DefaultModLoaderVersion)
	runner.onRun = func() {
		_ = os.MkdirAll(filepath.Dir(jar), 0o755)
		_ = os.WriteFile(jar, forgeBytes, 0o644)
	}

	lc, err := s.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !lc.ModLoader {
		t.Fatalf("expected mod loader in launch config")
	}

	raw, err := os.ReadFile(s.Layout().ModLoaderDescriptor("1.12.2"))
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"inheritsFrom": "1.12.2"`)) {
		t.Fatalf("descriptor should inherit from base version: %s", raw)
	}
}

func TestRunSkipsPresentArtifacts(t *testing.T) {
	srv := gameServer(t)
	s, _ := newTestSequencer(t, srv, func(c *Config) { c.ModLoader.Enabled = false })

	jar := s.Layout().ClientJar("1.12.2")
	if err := os.MkdirAll(filepath.Dir(jar), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jar, []byte("already here"), 0o644); err != nil {
		t.Fatal(err)
	}

	lc, err := s.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got, _ := os.ReadFile(jar)
	if string(got) != "already here" {
		t.Fatalf("existing client jar was replaced")
	}

	if lc.ModLoader || lc.MainClass != vanillaMainClass {
		t.Fatalf("expected vanilla launch config, got %#v", lc)
	}
}

func TestTrackerNeverMovesBackward(t *testing.T) {
	var reports []Progress
	tr := newTracker(collect(&reports))

	tr.report(StageClient, "a", 0.5, "")
	tr.report(StageRuntime, "b", 1, "")
	tr.report(StageMods, "c", 0, "x.jar")
	tr.report(StageDone, "complete", 1, "")

	want := []float64{30, 30, 60, 100}
	for i, p := range reports {
		if p.Percent != want[i] {
			t.Fatalf("report %d = %.1f, want %.1f", i, p.Percent, want[i])
		}
	}
}

func library(t *testing.T, layout Layout, path string) string {
	t.Helper()

	p, err := layout.Library(path)
	if err != nil {
		t.Fatalf("library %s: %v", path, err)
	}

	return p
}

func TestLayoutLibraryStaysInside(t *testing.T) {
	layout := Layout{Root: t.TempDir()}

	for _, p := range []string{"", "..", "../x.jar", "a/../../x.jar", "/etc/x.jar", "../../../etc/x.jar"} {
		if _, err := layout.Library(p); !errors.Is(err, ErrUnsafePath) {
			t.Fatalf("Library(%q): expected ErrUnsafePath, got %v", p, err)
		}
	}

	got := library(t, layout, "a/../b/c.jar")
	if want := filepath.Join(layout.LibrariesDir(), "b", "c.jar"); got != want {
		t.Fatalf("Library = %s, want %s", got, want)
	}
}

func TestModName(t *testing.T) {
	cases := map[string]string{
		"http://x/a.jar":                   "a.jar",
		"https://cdn.example/m/b.jar?x=1":  "b.jar",
		"http://x/":                        "mod-1.jar",
		"http://x":                         "mod-1.jar",
		"://bad":                           "mod-1.jar",
		"http://x/mods/..%5C..%5Cevil.jar": "mod-1.jar",
		"http://x/mods/a%2F..%2Fb.jar":     "b.jar",
		"http://x/mods/..":                 "mod-1.jar",
		"http://x/download":                "mod-1.jar",
	}

	for in, want := range cases {
		if got := ModName(in, 0); got != want {
			t.Fatalf("ModName(%q) = %q, want %q", in, got, want)
		}
	}
}
