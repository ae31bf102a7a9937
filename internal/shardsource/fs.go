package shardsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
)

// Dir reads shards from a local copy of the shard tree.
type Dir struct {
	root string
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Name() string { return "fs" }

func (d *Dir) Fetch(ctx context.Context, ref shard.Ref) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := Path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", ref, apperrors.ErrShardNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}
	return data, nil
}

// Walk calls fn for every shard file under the root, in lexical order.
func (d *Dir) Walk(fn func(ref shard.Ref) error) error {
	return filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		ref, ok := RefForPath(filepath.ToSlash(rel))
		if !ok {
			return nil
		}
		return fn(ref)
	})
}
