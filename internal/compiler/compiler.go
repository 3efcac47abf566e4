// Package compiler turns the secondary source languages of the playground
// into what the preview can run: SCSS into CSS and TypeScript into
// JavaScript.
//
// Both transforms are total. A compilation failure is logged and the input is
// returned unchanged, so a half-typed edit never blanks the preview.
// Whitespace-only input compiles to the empty string.
package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/logging"
	"github.com/evanw/esbuild/pkg/api"
)

// Kind identifies the transform applied to a source text.
type Kind string

const (
	KindStyles Kind = "scss"
	KindScript Kind = "typescript"
)

// Options configures a Compiler.
type Options struct {
	CacheEntries int
	CacheTTL     time.Duration
	ScriptTarget string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		CacheEntries: 256,
		CacheTTL:     10 * time.Minute,
		ScriptTarget: "es2020",
	}
}

// Compiler runs the style and script transforms behind a result cache.
type Compiler struct {
	logger logging.Logger
	cache  *Cache
	target api.Target
}

// New creates a compiler. A nil logger discards failure logs.
func New(opts Options, logger logging.Logger) (*Compiler, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	target, err := ParseTarget(opts.ScriptTarget)
	if err != nil {
		return nil, err
	}
	if opts.CacheEntries <= 0 {
		opts.CacheEntries = DefaultOptions().CacheEntries
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultOptions().CacheTTL
	}

	return &Compiler{
		logger: logger.WithComponent("compiler"),
		cache:  NewCache(opts.CacheEntries, opts.CacheTTL),
		target: target,
	}, nil
}

var defaultCompiler = &Compiler{
	logger: logging.NewNopLogger(),
	cache:  NewCache(64, time.Minute),
	target: api.ES2020,
}

// CompileStyles compiles SCSS with a shared, silent compiler.
func CompileStyles(scss string) string {
	return defaultCompiler.CompileStyles(scss)
}

// CompileScript compiles TypeScript with a shared, silent compiler.
func CompileScript(ts string) string {
	return defaultCompiler.CompileScript(ts)
}

// CompileStyles compiles SCSS text to CSS.
func (c *Compiler) CompileStyles(scss string) string {
	return c.compile(KindStyles, scss, compileSCSS)
}

// CompileScript compiles TypeScript text to JavaScript.
func (c *Compiler) CompileScript(ts string) string {
	return c.compile(KindScript, ts, func(src string) (string, error) {
		return compileTypeScript(src, c.target)
	})
}

// Stats reports cache effectiveness.
func (c *Compiler) Stats() CacheStats {
	return c.cache.Stats()
}

// maxLoggedSource caps how much of a failing source goes into the log.
const maxLoggedSource = 120

func (c *Compiler) compile(kind Kind, src string, fn func(string) (string, error)) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}

	key := cacheKey(kind, src)
	if out, ok := c.cache.Get(key); ok {
		return out
	}

	start := time.Now()
	out, err := safeRun(fn, src)
	if err != nil {
		c.logger.Warn(context.Background(),
			errors.NewCompilationError(errors.ErrCodeCompileFailed, string(kind)+" compilation failed", err),
			"Compilation failed, passing source through",
			"kind", kind,
			"bytes", len(src),
			"source", logging.Truncate(src, maxLoggedSource),
		)
		return src
	}

	c.cache.Set(key, out)
	c.logger.Debug(context.Background(), "Compiled source",
		"kind", kind,
		"bytes_in", len(src),
		"bytes_out", len(out),
		"duration", time.Since(start).String(),
	)
	return out
}

// safeRun converts a panic inside a transform into an error.
func safeRun(fn func(string) (string, error), src string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform panicked: %v", r)
		}
	}()
	return fn(src)
}

func cacheKey(kind Kind, src string) string {
	sum := sha256.Sum256([]byte(src))
	return string(kind) + ":" + hex.EncodeToString(sum[:])
}
