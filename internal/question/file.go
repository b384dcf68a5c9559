package question

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/victornm/blindtest/internal/errors"
	"github.com/victornm/blindtest/internal/game"
)

var setName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileSource reads question sets from <Dir>/<set>.json.
type FileSource struct {
	Dir string
}

func (s FileSource) Load(_ context.Context, set string) ([]game.Question, error) {
	if !setName.MatchString(set) {
		return nil, errors.New(errors.CodePrecondition,
			errors.WithReason("invalid_question_set"),
			errors.WithMessagef("invalid question set name %q", set))
	}

	f, err := os.Open(filepath.Join(s.Dir, set+".json"))
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, ErrSetNotFound.With(errors.WithMessagef("question set %q not found", set))
	}
	if err != nil {
		return nil, fmt.Errorf("open question set %s: %w", set, err)
	}
	defer f.Close()

	return Parse(f)
}

// Chain tries each source in turn until one knows the set.
type Chain []Source

func (c Chain) Load(ctx context.Context, set string) ([]game.Question, error) {
	for _, s := range c {
		qs, err := s.Load(ctx, set)
		if stderrors.Is(err, ErrSetNotFound) {
			continue
		}

		return qs, err
	}

	return nil, ErrSetNotFound.With(errors.WithMessagef("question set %q not found", set))
}
