package archive

import (
	"archive/tar"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

type entry struct {
	name string
	body string
	mode int64
}

func writeZip(t *testing.T, path string, entries []entry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		_, _ = w.Write([]byte(e.body))
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

func writeTarGz(t *testing.T, path string, entries []entry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		mode := e.mode
		if mode == 0 {
			mode = 0o644
		}

		if err := tw.WriteHeader(&tar.Header{Name: e.name, Mode: mode, Size: int64(len(e.body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		_, _ = tw.Write([]byte(e.body))
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}

	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
}

func TestExtractTarGzAndFindJava(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "jre.bin")
	writeTarGz(t, archivePath, []entry{
		{name: "jdk8u402-b06-jre/release", body: "JAVA_VERSION=\"1.8.0_402\""},
		{name: "jdk8u402-b06-jre/bin/java", body: "#!/bin/sh\n", mode: 0o755},
		{name: "jdk8u402-b06-jre/lib/tools/bin/java", body: "decoy", mode: 0o755},
	})

	format, err := Detect(archivePath)
	if err != nil || format != FormatTarGz {
		t.Fatalf("expected tar.gz, got %v %v", format, err)
	}

	dest := filepath.Join(dir, "runtime")
	if err := Extract(archivePath, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}

	java, err := FindExecutable(dest, "java")
	if err != nil {
		t.Fatalf("find java: %v", err)
	}

	if java != filepath.Join(dest, "jdk8u402-b06-jre", "bin", "java") {
		t.Fatalf("unexpected java path: %s", java)
	}

	info, err := os.Stat(java)
	if err != nil || info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("expected executable bit, mode=%v err=%v", info.Mode(), err)
	}
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "jre.zip")
	writeZip(t, archivePath, []entry{
		{name: "jre/bin/java.exe", body: "MZ"},
	})

	dest := filepath.Join(dir, "out")
	if err := Extract(archivePath, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}

	if _, err := FindExecutable(dest, "java.exe"); err != nil {
		t.Fatalf("find java.exe: %v", err)
	}
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")
	writeZip(t, archivePath, []entry{{name: "../../evil.txt", body: "x"}})

	err := Extract(archivePath, filepath.Join(dir, "out"))
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got %v", err)
	}
}

func TestExtractUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "not-an-archive")
	if err := os.WriteFile(p, []byte("<html>oops</html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Extract(p, filepath.Join(dir, "out")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}
