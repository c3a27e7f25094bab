package cli

import (
	"errors"
	"flag"
	"io"
)

const versionString = "1.0.0"
const defaultConfigPath = "./pymeta.toml"

type cliOptions struct {
	configPath string
	filename   string
	format     string
	compact    bool
	summary    bool
	scanDir    string
	watchDir   string
	strict     bool
	dbPath     string
	callers    string
	defs       string
	show       string
	verbose    bool
	version    bool
	args       []string
}

func parseOptions(args []string, output io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("pymeta", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.StringVar(&opts.filename, "filename", "", "Name reported in syntax errors for stdin input")
	fs.StringVar(&opts.format, "format", "", "Output format: json, yaml or tsv (overrides config)")
	fs.BoolVar(&opts.compact, "compact", false, "Write JSON without indentation")
	fs.BoolVar(&opts.summary, "summary", false, "Print an analysis summary to stderr")
	fs.StringVar(&opts.scanDir, "scan", "", "Extract every Python file below this directory")
	fs.StringVar(&opts.watchDir, "watch", "", "Scan this directory and re-extract files as they change")
	fs.BoolVar(&opts.strict, "strict", false, "Exit non-zero when any scanned file fails")
	fs.StringVar(&opts.dbPath, "db", "", "Index database path (enables the index)")
	fs.StringVar(&opts.callers, "callers", "", "Print indexed call sites of a callee and exit")
	fs.StringVar(&opts.defs, "defs", "", "Print indexed definitions of a qualified name and exit")
	fs.StringVar(&opts.show, "show", "", "Print the indexed document of a scanned file and exit")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	if len(opts.args) > 0 {
		return cliOptions{}, errors.New("unexpected positional arguments; source is read from stdin")
	}
	return opts, nil
}

// validateModes rejects combinations of mutually exclusive modes.
func validateModes(opts cliOptions) error {
	modes := 0
	for _, set := range []bool{opts.scanDir != "", opts.watchDir != "", opts.callers != "", opts.defs != "", opts.show != ""} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return errors.New("-scan, -watch, -callers, -defs and -show cannot be combined")
	}
	if opts.strict && opts.scanDir == "" {
		return errors.New("-strict requires -scan")
	}
	return nil
}
