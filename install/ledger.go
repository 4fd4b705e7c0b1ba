package install

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Ledger records artifacts whose sha1 has been verified so later runs can
// trust them without rehashing.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

func (l *Ledger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS "installed_artifacts" (
	"path"       TEXT   NOT NULL PRIMARY KEY,
	"sha1"       TEXT   NOT NULL,
	"size"       BIGINT NOT NULL,
	"verifiedAt" BIGINT NOT NULL
);`)
	return errors.Wrap(err, "ledger: migrate")
}

func (l *Ledger) Record(ctx context.Context, path, sum string, size int64) error {
	_, err := l.db.ExecContext(ctx, `
INSERT INTO "installed_artifacts" ("path", "sha1", "size", "verifiedAt") VALUES (?, ?, ?, ?)
ON CONFLICT ("path") DO UPDATE SET "sha1" = excluded."sha1", "size" = excluded."size", "verifiedAt" = excluded."verifiedAt"`,
		path, strings.ToLower(sum), size, l.now().UnixMilli())
	return errors.WithStack(err)
}

func (l *Ledger) Forget(ctx context.Context, path string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM "installed_artifacts" WHERE "path" = ?`, path)
	return errors.WithStack(err)
}

func (l *Ledger) lookup(ctx context.Context, path string) (sum string, size int64, ok bool, err error) {
	row := l.db.QueryRowContext(ctx, `SELECT "sha1", "size" FROM "installed_artifacts" WHERE "path" = ?`, path)
	err = row.Scan(&sum, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, errors.WithStack(err)
	}

	return sum, size, true, nil
}

// Present reports whether path holds an artifact matching sum. A ledger row
// with the same sha1 and size is trusted; otherwise the file is rehashed and
// recorded on a match.
func (l *Ledger) Present(ctx context.Context, path, sum string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.WithStack(err)
	}

	sum = strings.ToLower(sum)
	known, size, ok, err := l.lookup(ctx, path)
	if err != nil {
		return false, err
	}
	if ok && known == sum && size == info.Size() {
		return true, nil
	}

	got, err := fileSHA1(path)
	if err != nil {
		return false, err
	}
	if got != sum {
		return false, nil
	}

	return true, l.Record(ctx, path, sum, info.Size())
}

func fileSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.WithStack(err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
