// Brainfuck CLI - run programs, explore them interactively, or start the
// session server / LSP.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"

	"github.com/HanzPo/brainfuck/config"
	"github.com/HanzPo/brainfuck/library"
	"github.com/HanzPo/brainfuck/server"
	"github.com/HanzPo/brainfuck/vm"

	_ "github.com/tliron/commonlog/simple"
)

const historyFile = ".bf_history"

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	expr := flag.String("e", "", "Run an inline program")
	memSize := flag.Int("m", 0, "Tape size in cells (overrides brainfuck.toml)")
	serveMode := flag.Bool("serve", false, "Start session server (Connect HTTP/JSON)")
	servePort := flag.Int("port", 0, "Session server port (used with --serve)")
	lspMode := flag.Bool("lsp", false, "Start LSP server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bf [options] [program.bf]\n\n")
		fmt.Fprintf(os.Stderr, "Runs Brainfuck programs on a wrapping 30000-cell tape.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bf hello.bf            # Run a program file\n")
		fmt.Fprintf(os.Stderr, "  bf -e '++[>+<-]>.'     # Run inline source\n")
		fmt.Fprintf(os.Stderr, "  bf -i                  # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  bf --serve --port 8080 # Start session server\n")
		fmt.Fprintf(os.Stderr, "  bf --lsp               # Start LSP on stdio\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *memSize > 0 {
		cfg.Interpreter.MemorySize = *memSize
	}

	switch {
	case *lspMode:
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP server: %v\n", err)
			os.Exit(1)
		}

	case *serveMode:
		serve(cfg, *servePort)

	case *interactive:
		repl(cfg)

	case *expr != "":
		if err := runSource(cfg, "(inline)", *expr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case flag.NArg() > 0:
		path := flag.Arg(0)
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
			os.Exit(1)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := runSource(cfg, name, string(source)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}

// serve opens the library and starts the session server.
func serve(cfg *config.Config, port int) {
	lib, err := library.Open(cfg.Library.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening library: %v\n", err)
		os.Exit(1)
	}
	defer lib.Close()

	addr := cfg.Server.Listen
	if port > 0 {
		addr = fmt.Sprintf(":%d", port)
	}

	srv := server.New(server.WithLibrary(lib))
	defer srv.Stop()

	if err := srv.ListenAndServe(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server: %v\n", err)
		os.Exit(1)
	}
}

// runSource executes a program with stdout as the output sink and a
// stdin prompt as the input source, then records the run if the library
// is reachable.
func runSource(cfg *config.Config, name, source string) error {
	stdin := bufio.NewReader(os.Stdin)
	var output strings.Builder

	in, err := vm.New(source,
		vm.WithMemorySize(cfg.Interpreter.MemorySize),
		vm.WithOutputSink(func(ch byte) {
			output.WriteByte(ch)
			os.Stdout.Write([]byte{ch})
		}),
		vm.WithInputSource(func(ctx context.Context) (string, error) {
			fmt.Print("\ninput> ")
			line, err := stdin.ReadString('\n')
			if err != nil {
				return "", err
			}
			return line, nil
		}))
	if err != nil {
		return err
	}

	start := time.Now()
	if err := in.Run(context.Background()); err != nil {
		return err
	}
	duration := time.Since(start)

	// Run history is best-effort; a missing library never fails a run.
	if lib, err := library.Open(cfg.Library.Path); err == nil {
		_ = lib.RecordRun(name, output.String(), duration)
		_ = lib.Close()
	}
	return nil
}

// repl reads programs line by line and executes each one, with commands
// for inspecting state and the program library.
func repl(cfg *config.Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
		os.Exit(1)
	}
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	// Load history (best-effort)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	lib, libErr := library.Open(cfg.Library.Path)
	if libErr != nil {
		fmt.Fprintf(os.Stderr, "library unavailable: %v\n", libErr)
	} else {
		defer lib.Close()
	}

	fmt.Println("Brainfuck REPL. Enter a program, or :help for commands.")

	var last *vm.Interpreter
	var lastSource string

	for {
		line, err := ln.Prompt("bf> ")
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		if strings.HasPrefix(line, ":") {
			if quit := replCommand(lib, line, last, &lastSource); quit {
				return
			}
			if !strings.HasPrefix(line, ":load") {
				continue
			}
			// :load falls through with lastSource set, so it runs below.
			line = lastSource
			if line == "" {
				continue
			}
		}

		in, err := vm.New(line,
			vm.WithMemorySize(cfg.Interpreter.MemorySize),
			vm.WithOutputSink(func(ch byte) { os.Stdout.Write([]byte{ch}) }),
			vm.WithInputSource(func(ctx context.Context) (string, error) {
				text, err := ln.Prompt("input> ")
				if err != nil {
					return "", err
				}
				return text + "\n", nil
			}))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		if err := in.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println()
		last = in
		lastSource = line
	}
}

// replCommand handles ':'-prefixed REPL commands. Returns true to quit.
func replCommand(lib *library.Library, line string, last *vm.Interpreter, lastSource *string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":q", ":quit":
		return true

	case ":help":
		fmt.Println("  :state        show pointer, counter and output of the last run")
		fmt.Println("  :save NAME    store the last program in the library")
		fmt.Println("  :load NAME    load a program from the library and run it")
		fmt.Println("  :list         list stored programs")
		fmt.Println("  :q            quit")

	case ":state":
		if last == nil {
			fmt.Println("nothing has run yet")
			break
		}
		state := last.State()
		fmt.Printf("pointer=%d counter=%d output=%q\n",
			state.Pointer, state.ProgramCounter, state.Output)

	case ":save":
		if lib == nil || len(fields) < 2 || *lastSource == "" {
			fmt.Println("usage: :save NAME (after running a program)")
			break
		}
		if err := lib.Save(fields[1], *lastSource); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}

	case ":load":
		if lib == nil || len(fields) < 2 {
			fmt.Println("usage: :load NAME")
			*lastSource = ""
			break
		}
		program, err := lib.Get(fields[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			*lastSource = ""
			break
		}
		*lastSource = program.Source

	case ":list":
		if lib == nil {
			fmt.Println("library unavailable")
			break
		}
		programs, err := lib.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		for _, p := range programs {
			fmt.Printf("  %-20s %d chars\n", p.Name, len(p.Source))
		}

	default:
		fmt.Printf("unknown command %s (try :help)\n", fields[0])
	}
	return false
}
