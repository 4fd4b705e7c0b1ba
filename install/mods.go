package install

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/n1ntencube/CubicLauncher/fetch"
	"github.com/n1ntencube/CubicLauncher/logging"
	"github.com/n1ntencube/CubicLauncher/mods"
)

// ModName derives the file name a mod URL is stored under: the last path
// segment, or mod-<n>.jar when that segment is not a name mods.Remove
// would accept.
func ModName(rawURL string, index int) string {
	fallback := fmt.Sprintf("mod-%d.jar", index+1)

	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}

	name := path.Base(u.Path)
	if !mods.ValidName(name) {
		return fallback
	}

	return name
}

// ensureMods downloads every mod in order. The first failure stops the batch.
func (r *run) ensureMods(ctx context.Context, urls []string) error {
	n := len(urls)
	if n == 0 {
		r.progress.report(StageMods, "no-mods", 1, "")
		return nil
	}

	dir := r.s.layout.ModsDir()
	for i, u := range urls {
		name := ModName(u, i)
		status := fmt.Sprintf("downloading-mod-%d", i+1)
		r.progress.report(StageMods, status, float64(i)/float64(n), name)

		r.s.log.Info("downloading mod", logging.F("mod", name), logging.F("index", i+1), logging.F("count", n))
		err := r.s.fetch.Download(ctx, u, filepath.Join(dir, name), func(p fetch.Progress) {
			r.progress.report(StageMods, status, (float64(i)+p.Percent/100)/float64(n), name)
		})
		if err != nil {
			return &ModError{Name: name, URL: u, Err: err}
		}

		r.mods = append(r.mods, name)
	}

	r.progress.report(StageMods, "mods-ready", 1, "")

	return nil
}
