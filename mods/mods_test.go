package mods

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
)

func TestListAndRemove(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()

	for _, name := range []string{"b.jar", "a.JAR", "notes.txt", "c.jar.part"} {
		is.NoErr(os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	is.NoErr(os.Mkdir(filepath.Join(dir, "sub.jar"), 0o755))

	list, err := List(dir)
	is.NoErr(err)
	is.Equal(len(list), 2)
	is.Equal(list[0].Name, "a.JAR")
	is.Equal(list[1].Name, "b.jar")
	is.Equal(list[1].Size, int64(len("b.jar")))

	is.NoErr(Remove(dir, "b.jar"))
	is.True(errors.Is(Remove(dir, "b.jar"), ErrNotFound))

	list, err = List(dir)
	is.NoErr(err)
	is.Equal(len(list), 1)
}

func TestRemoveRejectsUnsafeNames(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()

	for _, name := range []string{"", "../x.jar", "sub/x.jar", `..\x.jar`, "notes.txt", ".."} {
		is.True(!ValidName(name))
		is.True(errors.Is(Remove(dir, name), ErrInvalidName))
	}

	is.True(ValidName("a.JAR"))
}

func TestListMissingDir(t *testing.T) {
	is := is.New(t)

	list, err := List(filepath.Join(t.TempDir(), "nope"))
	is.NoErr(err)
	is.Equal(len(list), 0)
}

func TestCatalog(t *testing.T) {
	is := is.New(t)

	c := NewCatalog(nil)
	summaries := c.List()
	is.Equal(len(summaries), 3)
	is.Equal(summaries[0].ID, "skyblock")

	c = NewCatalog([]Pack{{ID: "tech", Name: "Tech", Mods: []string{"http://x/a.jar", "http://x/b.jar"}}})
	p, ok := c.Get("tech")
	is.True(ok)
	is.Equal(len(p.Mods), 2)

	_, ok = c.Get("vanilla")
	is.True(!ok)
}
