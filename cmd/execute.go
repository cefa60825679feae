package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/ComedicChimera/olive"

	"github.com/paiml/depyler-sub004/common"
	"github.com/paiml/depyler-sub004/config"
	"github.com/paiml/depyler-sub004/generate"
	"github.com/paiml/depyler-sub004/lower"
	"github.com/paiml/depyler-sub004/report"
)

// Execute is the main entry point for the `pyrs` CLI utility.
func Execute() {
	// set up the argument parser and all its extended commands and arguments
	cli := olive.NewCLI("pyrs", "pyrs transpiles Python HIR into Rust", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the log level", false, []string{"silent", "error", "warn", "verbose"})
	logLvlArg.SetDefaultValue("verbose")

	transpileCmd := cli.AddSubcommand("transpile", "transpile HIR files into Rust", true)
	transpileCmd.AddPrimaryArg("path", "the HIR file or directory to transpile", true)
	transpileCmd.AddStringArg("output", "o", "the path of the generated file", false)
	transpileCmd.AddSelectorArg("mode", "m", "the async translation mode", false, []string{"async", "realtime"})
	transpileCmd.AddFlag("trace", "t", "write the lowering decisions next to each generated file")
	transpileCmd.AddFlag("watch", "w", "transpile the file again whenever it changes")

	depsCmd := cli.AddSubcommand("deps", "print the Cargo dependencies of HIR files", true)
	depsCmd.AddPrimaryArg("path", "the HIR file or directory to analyze", true)
	depsCmd.AddSelectorArg("mode", "m", "the async translation mode", false, []string{"async", "realtime"})
	depsCmd.AddFlag("manifest", "mf", "print a complete Cargo manifest")

	initCmd := cli.AddSubcommand("init", "create a project configuration in the working directory", true)
	initCmd.AddPrimaryArg("name", "the project name", true)

	cli.AddSubcommand("version", "print the pyrs version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.ReportFatal(err.Error())
	}

	report.InitReporter(report.ParseLogLevel(result.Arguments["loglevel"].(string)))

	// process the inputed command line
	ok := true
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "transpile":
		ok = execTranspileCommand(subResult)
	case "deps":
		ok = execDepsCommand(subResult)
	case "init":
		ok = execInitCommand(subResult)
	case "version":
		report.DisplayInfoMessage("pyrs Version", common.PyrsVersion)
	}

	if !ok {
		os.Exit(1)
	}
}

// execTranspileCommand executes the transpile subcommand and handles all
// errors.
func execTranspileCommand(result *olive.ArgParseResult) bool {
	path, _ := result.PrimaryArg()

	proj := loadProject(path, result)
	if result.HasFlag("trace") {
		proj.Trace = true
	}

	t := NewTranspiler(proj)
	if outArg, ok := result.Arguments["output"]; ok {
		t.outPath = outArg.(string)
	}

	report.ReportHeader(proj.Mode.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if result.HasFlag("watch") {
		if err := t.Watch(ctx, path); err != nil {
			report.ReportStdError(path, err)
			return false
		}

		return true
	}

	files, err := collectFiles(path)
	if err != nil {
		report.ReportStdError(path, err)
		return false
	}

	if t.outPath != "" && len(files) > 1 {
		report.ReportFatal("an output path can only be given when transpiling a single file")
	}

	report.ReportBeginPhase("Transpiling")
	ok := t.Run(ctx, files)
	report.ReportEndPhase()
	report.ReportFinished(len(files))

	return ok
}

// execDepsCommand executes the deps subcommand: it lowers the files without
// writing them and prints the crates they need.
func execDepsCommand(result *olive.ArgParseResult) bool {
	path, _ := result.PrimaryArg()

	proj := loadProject(path, result)

	files, err := collectFiles(path)
	if err != nil {
		report.ReportStdError(path, err)
		return false
	}

	t := NewTranspiler(proj)
	t.dryRun = true
	if !t.Run(context.Background(), files) {
		return false
	}

	crates, warnings, err := t.Crates()
	if err != nil {
		report.ReportStdError(path, err)
		return false
	}

	for _, w := range warnings {
		report.ReportCompileWarning("", path, nil, "%s", w)
	}

	var text string
	if result.HasFlag("manifest") {
		text, err = generate.Manifest(proj.Name, crates)
	} else {
		text, err = generate.DependencyTable(crates)
	}

	if err != nil {
		report.ReportStdError(path, err)
		return false
	}

	fmt.Print(text)
	return true
}

// execInitCommand executes the init subcommand.
func execInitCommand(result *olive.ArgParseResult) bool {
	name, _ := result.PrimaryArg()

	workDir, err := os.Getwd()
	if err != nil {
		report.ReportStdError("", err)
		return false
	}

	if err := config.Init(workDir, name); err != nil {
		report.ReportStdError(workDir, err)
		return false
	}

	report.DisplayInfoMessage("Created", common.ConfigFileName)
	return true
}

// -----------------------------------------------------------------------------

// loadProject loads the configuration governing path and applies the mode
// given on the command line.
func loadProject(path string, result *olive.ArgParseResult) *config.Project {
	proj, err := config.Find(path)
	if err != nil {
		report.ReportFatal("error loading configuration: %s", err.Error())
	}

	if modeArg, ok := result.Arguments["mode"]; ok {
		// the selector only admits known modes
		proj.Mode, _ = lower.ParseMode(modeArg.(string))
	}

	return proj
}
