package cache

import (
	"errors"
	"fmt"

	"github.com/chazu/lslc/compiler"
	"github.com/chazu/lslc/compiler/hash"
	"github.com/chazu/lslc/pkg/image"
)

// KeyFor computes the cache key of compiling script with opts.
func KeyFor(script *compiler.Script, opts compiler.Options) (Key, error) {
	backend, memory := "lso", opts.Memory
	if opts.Backend != nil {
		backend = opts.Backend.Name()
	}
	if backend == "lso" && memory == 0 {
		memory = image.DefaultMemory
	}
	sum, err := hash.HashCompile(hash.Inputs{
		Script:     script,
		Library:    opts.Library,
		Privileged: opts.Privileged,
		Backend:    backend,
		Memory:     memory,
	})
	if err != nil {
		return Key{}, err
	}
	return Key(sum), nil
}

// Compile returns the cached result for script when there is one and compiles
// and stores it otherwise. Cached diagnostics are replayed to
// opts.Diagnostics. A hit carries no Program. Failed compiles are not cached.
func (c *Cache) Compile(script *compiler.Script, opts compiler.Options) (*compiler.Result, bool, error) {
	key, err := KeyFor(script, opts)
	if err != nil {
		return nil, false, err
	}

	e, err := c.Get(key)
	switch {
	case err == nil:
		log.Debugf("hit %s", key)
		if opts.Diagnostics != nil {
			for _, d := range e.Diagnostics {
				fmt.Fprintln(opts.Diagnostics, d)
			}
		}
		return &compiler.Result{
			ID:          e.CompileID,
			Output:      e.Output,
			Backend:     e.Backend,
			Diagnostics: e.Diagnostics,
			Warnings:    e.Warnings,
		}, true, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	log.Debugf("miss %s", key)
	res, err := compiler.Compile(script, opts)
	if err != nil {
		return nil, false, err
	}
	err = c.Put(&Entry{
		Key:         key,
		Backend:     res.Backend,
		CompileID:   res.ID,
		Output:      res.Output,
		Warnings:    res.Warnings,
		Diagnostics: res.Diagnostics,
	})
	if err != nil {
		return nil, false, err
	}
	return res, false, nil
}
