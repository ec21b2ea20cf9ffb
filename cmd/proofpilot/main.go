/*
Package main implements the proofpilot debug binary.

proofpilot drives an interactive compiler (one that supports holes, case
splitting and proof search) as a long-lived subprocess, speaking a
MessagePack request/reply protocol over its stdin/stdout. The real consumer
of this module is an editor plugin linking the pkg/ packages; this binary
exists to exercise the full stack by hand.

# Usage

Start the REPL against the configured compiler and a source file:

	ppilot Main.idr

Use a custom compiler binary and enable debug logging:

	ppilot -compiler /path/to/idris -d Main.idr

# Configuration

Runtime configuration lives in a TOML file, created with defaults on first
run:

	[compiler]
	path = "idris"
	args = ["--ide-mode"]

	[session]
	snippet_expansion = true

	[completion]
	limit = 24
	cache_ttl_ms = 2000

# REPL commands

Inside the REPL, `:goto` moves the cursor, `:t` queries a type, `:split`,
`:clause`, `:missing`, `:with` and `:search` run the point commands,
`:refine`/`:refinec`/`:refiner` run the three metavariable refinement
variants, and `:complete` lists candidates for the identifier at the cursor.
Buffer edits only ever happen after the compiler confirms a command, and the
file on disk only changes on `:save`.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/proofpilot-dev/proofpilot/internal/cli"
	"github.com/proofpilot-dev/proofpilot/pkg/config"
	"github.com/proofpilot-dev/proofpilot/pkg/dispatch"
	"github.com/proofpilot-dev/proofpilot/pkg/editbuf"
	"github.com/proofpilot-dev/proofpilot/pkg/interact"
	"github.com/proofpilot-dev/proofpilot/pkg/session"
	"github.com/proofpilot-dev/proofpilot/pkg/transport"
)

const (
	Version = "0.3.0"
	AppName = "proofpilot"
	gh      = "https://github.com/proofpilot-dev/proofpilot"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main wires the stack together; the packages do the work.
func main() {
	sigHandler()

	showVersion := flag.Bool("version", false, "Show current version")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	configPath := flag.String("config", "", "Path to config.toml")
	compilerPath := flag.String("compiler", "", "Compiler binary (overrides config)")
	plain := flag.Bool("plain", false, "Insert results verbatim, no snippet fields")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}
	log.SetOutput(os.Stderr)

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.GetDefaultConfigPath(); err != nil {
			log.Warnf("Failed to determine config path: %v. Using built-in defaults...", err)
		}
	}
	cfg, err := config.InitConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(path))

	if *compilerPath != "" {
		cfg.Compiler.Path = *compilerPath
	}

	tr := transport.NewProc(cfg.Compiler.Path, cfg.Compiler.Args...)
	disp := dispatch.New(tr)
	defer disp.Close()

	reader := bufio.NewReader(os.Stdin)
	ui := cli.NewTermUI(reader)
	sess := session.New(disp, nil, func(text string) { ui.Message(text) })

	var exp editbuf.Expander = editbuf.SnippetExpander{}
	if *plain || !cfg.Session.SnippetExpansion {
		exp = editbuf.PlainExpander{}
	}
	client := interact.NewClient(sess, disp, ui, editbuf.NewMediator(exp), interact.Options{
		CompletionLimit: cfg.Completion.Limit,
		CompletionTTL:   time.Duration(cfg.Completion.CacheTTLMs) * time.Millisecond,
	})
	defer client.Close()

	repl := cli.NewREPL(client, sess, ui, reader, cfg.CLI.ShowTiming)
	if file := flag.Arg(0); file != "" {
		if err := repl.Open(file); err != nil {
			log.Fatalf("opening %s: %v", file, err)
		}
	}
	if err := repl.Start(); err != nil {
		log.Fatalf("REPL error: %v", err)
	}
}

func printVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[ proofpilot ] Interactive compiler commands for your editor")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("use -h or --help to see available options")
	logger.Print("Github Repo", "gh", gh)
}
