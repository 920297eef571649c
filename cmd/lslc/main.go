// lslc compiles LSL syntax trees into LSO bytecode images or IL text.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/lslc/compiler"
	"github.com/chazu/lslc/manifest"
	"github.com/chazu/lslc/pkg/cache"
	"github.com/chazu/lslc/pkg/il"
	"github.com/chazu/lslc/pkg/image"
)

var log = commonlog.GetLogger("lslc")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options collects the command line.
type options struct {
	verbosity  int
	output     string
	asm        string
	pretty     string
	il         string
	symbols    string
	backend    string
	memory     int
	privileged bool
	library    string
	cache      string
	noCache    bool
	prune      time.Duration
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "dump" {
		return runDump(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("lslc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.IntVar(&o.verbosity, "v", 0, "Log verbosity (1 info, 2 debug)")
	fs.StringVar(&o.output, "o", "", "Output file (default: input name with .lso or .il)")
	fs.StringVar(&o.asm, "S", "", "Write an assembly listing to this file")
	fs.StringVar(&o.pretty, "pretty", "", "Write reconstructed source to this file")
	fs.StringVar(&o.il, "il", "", "Write IL text to this file")
	fs.StringVar(&o.symbols, "symbols", "", "Write the symbol table listing to this file")
	fs.StringVar(&o.backend, "backend", "", "Backend: lso or il (default from lslc.toml, else lso)")
	fs.IntVar(&o.memory, "memory", 0, "Image size in bytes (default from lslc.toml, else 16384)")
	fs.BoolVar(&o.privileged, "privileged", false, "Allow privileged library functions")
	fs.StringVar(&o.library, "library", "", "Library table (TOML)")
	fs.StringVar(&o.cache, "cache", "", "Compile cache database")
	fs.BoolVar(&o.noCache, "no-cache", false, "Disable the compile cache")
	fs.DurationVar(&o.prune, "prune", 0, "Remove cache entries older than this and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: lslc [options] tree.cbor...\n")
		fmt.Fprintf(stderr, "       lslc dump image.lso\n\n")
		fmt.Fprintf(stderr, "Compiles CBOR-encoded LSL syntax trees.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		fmt.Fprintf(stderr, "  LSLC_MEMORY, LSLC_PRIVILEGED, LSLC_BACKEND, LSLC_CACHE override lslc.toml\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	commonlog.Configure(o.verbosity, nil)

	m, err := loadManifest(&o, fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	store, err := openCache(m)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if store != nil {
		defer store.Close()
	}

	if o.prune > 0 {
		if store == nil {
			fmt.Fprintln(stderr, "Error: -prune needs a cache")
			return 1
		}
		n, err := store.Prune(time.Now().Add(-o.prune))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Removed %d cache entries\n", n)
		return 0
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		fs.Usage()
		return 2
	}
	if len(inputs) > 1 && o.output != "" {
		fmt.Fprintln(stderr, "Error: -o needs a single input")
		return 2
	}

	status := 0
	for _, in := range inputs {
		if err := compileFile(in, m, &o, store, stdout, stderr); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", in, err)
			status = 1
		}
	}
	return status
}

// loadManifest finds lslc.toml, applies environment overrides and then the
// flags that were set explicitly.
func loadManifest(o *options, fs *flag.FlagSet) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	if m == nil {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		m = manifest.Default(wd)
	}
	if err := m.ApplyEnv(); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			m.Compile.Backend = o.backend
		case "memory":
			m.Compile.Memory = o.memory
		case "privileged":
			m.Compile.Privileged = o.privileged
		case "library":
			m.Library.File, _ = filepath.Abs(o.library)
		case "cache":
			m.Cache.Enabled = true
			m.Cache.Path, _ = filepath.Abs(o.cache)
		}
	})
	if o.noCache {
		m.Cache.Enabled = false
	}
	return m, m.Validate()
}

func openCache(m *manifest.Manifest) (*cache.Cache, error) {
	if !m.Cache.Enabled {
		return nil, nil
	}
	path := m.CachePath()
	if path == "" {
		var err error
		if path, err = cache.DefaultPath(); err != nil {
			return nil, err
		}
	}
	c, err := cache.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	log.Infof("using cache %s", path)
	return c, nil
}

func compileFile(path string, m *manifest.Manifest, o *options, store *cache.Cache, stdout, stderr io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	script, err := compiler.UnmarshalScript(data)
	if err != nil {
		return err
	}

	opts, err := m.CompileOptions()
	if err != nil {
		return err
	}
	opts.Diagnostics = stderr

	// A separate IL listing next to an image needs the program, and the symbol
	// listing needs the analyzed tree. A cache hit carries neither.
	ilPath := pick(o.il, m.OutputPath("il"))
	wantProgram := ilPath != "" && m.Compile.Backend != "il"
	symPath := pick(o.symbols, m.OutputPath("symbols"))

	var res *compiler.Result
	if store != nil && !wantProgram && symPath == "" {
		var hit bool
		res, hit, err = store.Compile(script, opts)
		if hit {
			log.Infof("%s: cached", path)
		}
	} else {
		res, err = compiler.Compile(script, opts)
	}
	var failed *compiler.FailedError
	if errors.As(err, &failed) {
		return fmt.Errorf("%d error(s)", failed.Errors)
	}
	if err != nil {
		return err
	}

	out := pick(o.output, m.OutputPath("image"))
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + "." + res.Backend
	}
	if err := writeFile(out, res.Output); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s -> %s (%d bytes, %d warning(s))\n", path, out, len(res.Output), res.Warnings)

	if asm := pick(o.asm, m.OutputPath("asm")); asm != "" {
		listing, err := assembly(res)
		if err != nil {
			return err
		}
		if err := writeFile(asm, []byte(listing)); err != nil {
			return err
		}
	}
	if pretty := pick(o.pretty, m.OutputPath("pretty")); pretty != "" {
		if err := writeFile(pretty, []byte(compiler.Format(script))); err != nil {
			return err
		}
	}
	if symPath != "" {
		if err := writeFile(symPath, []byte(compiler.Symbols(script))); err != nil {
			return err
		}
	}
	if wantProgram {
		text, err := il.Generate(res.Program)
		if err != nil {
			return err
		}
		if err := writeFile(ilPath, []byte(text)); err != nil {
			return err
		}
	}
	return nil
}

// assembly renders the listing for the -S output: the decoded image for the
// bytecode backend, the IR otherwise.
func assembly(res *compiler.Result) (string, error) {
	if res.Backend == "lso" {
		img, err := image.Read(res.Output)
		if err != nil {
			return "", err
		}
		return img.Dump(), nil
	}
	if res.Program == nil {
		return string(res.Output), nil
	}
	return res.Program.Listing(), nil
}

func pick(flagValue, configured string) string {
	if flagValue != "" {
		return flagValue
	}
	return configured
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// runDump prints the decoded contents of image files.
func runDump(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: lslc dump image.lso...")
		return 2
	}
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		img, err := image.Read(data)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			return 1
		}
		fmt.Fprintf(stdout, "; %s\n%s", path, img.Dump())
	}
	return 0
}
