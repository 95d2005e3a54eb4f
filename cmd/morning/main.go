package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/alecthomas/repr"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	llvmgen "github.com/morning-lang/morningllvm/pkg/gen/llvm"
	"github.com/morning-lang/morningllvm/pkg/lint"
	"github.com/morning-lang/morningllvm/pkg/logger"
	"github.com/morning-lang/morningllvm/pkg/sexp"
)

// Minimum LLVM toolchain the emitted IR is known to work with.
var requiredTools = map[string]string{
	"opt":     "11.0.0",
	"clang++": "11.0.0",
}

func readProgram(c *cli.Context) (string, error) {
	if expression := c.String("expression"); expression != "" {
		return expression, nil
	}

	filename := c.String("file")
	if filename == "" {
		return "", errors.New("no input specified (use -e or -f)")
	}

	code, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("cannot read source file: %w", err)
	}
	if len(code) == 0 {
		return "", fmt.Errorf("file %q is empty", filename)
	}
	return string(code), nil
}

func isValidOutputName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, `/\:*?"<>|`)
}

// checkTools verifies the external pipeline is present and recent
// enough. Callers run it after the IR file is written and before opt
// and clang++ are invoked.
func checkTools() error {
	for tool, minimum := range requiredTools {
		path, err := exec.LookPath(tool)
		if err != nil {
			return fmt.Errorf("required utility %q not found, please install it", tool)
		}

		out, err := exec.Command(path, "--version").Output()
		if err != nil {
			logger.Warnf("Could not query %s version: %s", tool, err)
			continue
		}

		version := extractVersion(string(out))
		if version == nil {
			logger.Warnf("Could not parse %s version output", tool)
			continue
		}

		min := semver.MustParse(minimum)
		if version.LessThan(min) {
			return fmt.Errorf("%s %s is older than the required %s", tool, version, minimum)
		}
	}
	return nil
}

func extractVersion(out string) *semver.Version {
	for _, field := range strings.Fields(out) {
		if v, err := semver.NewVersion(field); err == nil {
			return v
		}
	}
	return nil
}

func emitIR(c *cli.Context, outputBase string) error {
	program, err := readProgram(c)
	if err != nil {
		return err
	}

	if c.Bool("dump-ast") {
		ast, err := sexp.Parse("[scope " + program + "]")
		if err != nil {
			return err
		}
		repr.Println(ast)
	}

	return llvmgen.New().Execute(program, outputBase)
}

func runCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// compileIR runs the external pipeline over <base>.ll: opt -O3 first,
// then clang++ to a binary.
func compileIR(outputBase string) error {
	llFile := outputBase + ".ll"
	optFile := outputBase + "-opt.ll"

	if info, err := os.Stat(llFile); err != nil || info.Size() == 0 {
		return errors.New("IR generation failed, no output file")
	}

	logger.Infof("Optimizing code...")
	if err := runCommand("opt", llFile, "-O3", "-S", "-o", optFile); err != nil {
		return fmt.Errorf("code optimization failed: %w", err)
	}

	logger.Infof("Compiling optimized code...")
	if err := runCommand("clang++", "-O3", optFile, "-o", outputBase); err != nil {
		return fmt.Errorf("binary compilation failed: %w", err)
	}

	if info, err := os.Stat(outputBase); err != nil || info.Size() == 0 {
		return fmt.Errorf("binary file %q not created", outputBase)
	}
	return nil
}

func cleanupTempFiles(outputBase string) {
	for _, path := range []string{outputBase + ".ll", outputBase + "-opt.ll"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("Could not remove file %q", path)
		}
	}
}

func build(c *cli.Context, outputBase string) error {
	if !isValidOutputName(filepath.Base(outputBase)) {
		return fmt.Errorf("invalid output name: %s", outputBase)
	}

	if err := emitIR(c, outputBase); err != nil {
		return err
	}

	if c.Bool("emit-ir") {
		logger.Infof("IR code saved: %s.ll", outputBase)
		return nil
	}

	if err := checkTools(); err != nil {
		return err
	}

	if err := compileIR(outputBase); err != nil {
		logger.Errorf("Compilation failed, temporary files retained for debugging")
		return err
	}

	if c.Bool("keep") {
		logger.Infof("IR code saved: %s.ll", outputBase)
	} else {
		cleanupTempFiles(outputBase)
	}

	logger.Infof("Successfully compiled to %s", outputBase)
	return nil
}

func runOnce(c *cli.Context) error {
	// Each run gets its own scratch base so concurrent runs never
	// trample each other's artifacts.
	tmpBase := filepath.Join(os.TempDir(), "morning-"+uuid.NewString())

	if err := emitIR(c, tmpBase); err != nil {
		return err
	}
	if err := checkTools(); err != nil {
		return err
	}
	if err := compileIR(tmpBase); err != nil {
		return err
	}
	defer func() {
		cleanupTempFiles(tmpBase)
		os.Remove(tmpBase)
	}()

	cmd := exec.Command(tmpBase)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// watchAndRun re-runs the program every time its source file changes.
func watchAndRun(c *cli.Context) error {
	filename := c.String("file")
	if filename == "" {
		return errors.New("--watch requires a source file (-f)")
	}

	if err := runOnce(c); err != nil {
		logger.Errorf("%s", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file, which
	// would drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(filename)); err != nil {
		return err
	}

	logger.Infof("Watching %s for changes...", filename)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(filename) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Infof("Change detected, re-running %s", filename)
			if err := runOnce(c); err != nil {
				logger.Errorf("%s", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("Watcher error: %s", err)
		}
	}
}

func launchLint(filename, configPath string) error {
	code, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("file %q not found", filename)
	}

	if syntaxErrors := lint.CheckSyntax(string(code)); len(syntaxErrors) > 0 {
		logger.Errorf("Syntax errors in %s:", filename)
		for _, e := range syntaxErrors {
			logger.Errorf("  %s", e)
		}
		return cli.Exit("", 1)
	}

	config, err := lint.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("cannot read lint config: %w", err)
	}

	ast, err := sexp.Parse("[scope " + string(code) + "]")
	if err != nil {
		return err
	}

	issues := lint.New(config).Lint(ast)
	if len(issues) == 0 {
		logger.Infof("No lint issues found in %s", filename)
		return nil
	}

	logger.Warnf("Lint issues in %s:", filename)
	for _, issue := range issues {
		logger.Warnf("  %s", issue)
	}
	return cli.Exit("", 2)
}

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "expression",
			Aliases: []string{"e"},
			Usage:   "Expression to compile",
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "File to compile",
		},
		&cli.BoolFlag{
			Name:  "dump-ast",
			Usage: "Print the parsed expression tree before lowering",
		},
	}
}

func main() {
	app := &cli.App{
		Name:  "morning",
		Usage: "Compiler for the Morning programming language.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable NOTE and DEBUG diagnostics",
			},
		},
		Before: func(c *cli.Context) error {
			logger.Verbose = c.Bool("verbose")
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Compiles the provided source to an executable.",
				Flags: append(inputFlags(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   "out",
						Usage:   "Output binary name",
					},
					&cli.BoolFlag{
						Name:    "keep",
						Aliases: []string{"k"},
						Usage:   "Keep temporary files",
					},
					&cli.BoolFlag{
						Name:  "emit-ir",
						Usage: "Stop after writing the .ll file",
					},
				),
				Action: func(c *cli.Context) error {
					return build(c, c.String("output"))
				},
			},
			{
				Name:  "run",
				Usage: "Builds and immediately runs the provided source.",
				Flags: append(inputFlags(),
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Re-run whenever the source file changes",
					},
				),
				Action: func(c *cli.Context) error {
					if c.Bool("watch") {
						return watchAndRun(c)
					}
					return runOnce(c)
				},
			},
			{
				Name:      "lint",
				Usage:     "Checks the provided source for style issues.",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Value: lint.ConfigFileName,
						Usage: "Lint configuration file",
					},
				},
				Action: func(c *cli.Context) error {
					filename := c.Args().First()
					if filename == "" {
						return errors.New("source file not provided")
					}
					return launchLint(filename, c.String("config"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}
