// kvconf loads, validates and renders store configuration.
//
// Usage:
//
//	kvconf [options] <command>
//
// Commands:
//
//	check     Validate the configuration and print the derived paths
//	render    Print the native options of both engines in OPTIONS format
//	dump      Print the effective configuration document
//	serve     Serve the effective configuration over HTTP
//
// Examples:
//
//	kvconf -config tikv.toml check
//	kvconf -config tikv.toml -write render
//	kvconf -config tikv.yaml -format toml dump
//	kvconf -config tikv.toml -addr :9180 serve
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aalhour/kvconf"
	"github.com/aalhour/kvconf/config"
	"github.com/aalhour/kvconf/internal/vfs"
)

var (
	configPath = flag.String("config", "", "Configuration file (.toml, .yaml or .yml); defaults apply when empty")
	format     = flag.String("format", "", "Output format for dump (toml or yaml); defaults to the input format")
	addr       = flag.String("addr", ":9180", "Listen address for serve")
	write      = flag.Bool("write", false, "render: also write OPTIONS files into the engine directories")
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := cfg.OpenLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	config.SetLogger(logger)
	defer func() { _ = closeLog() }()

	switch args[0] {
	case "check":
		err = cmdCheck(os.Stdout, cfg)
	case "render":
		err = cmdRender(os.Stdout, cfg, *write)
	case "dump":
		err = cmdDump(os.Stdout, cfg, *configPath, *format)
	case "serve":
		err = cmdServe(cfg, *addr)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		_ = closeLog()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: kvconf [options] <command>")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  check     Validate the configuration and print the derived paths")
	fmt.Fprintln(os.Stderr, "  render    Print the native options of both engines in OPTIONS format")
	fmt.Fprintln(os.Stderr, "  dump      Print the effective configuration document")
	fmt.Fprintln(os.Stderr, "  serve     Serve the effective configuration over HTTP")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Options:")
	flag.PrintDefaults()
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadOrDefault(path)
}

func cmdCheck(w io.Writer, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(w, "kv engine:   %s\n", cfg.KVDBPath())
	fmt.Fprintf(w, "raft engine: %s\n", cfg.Raftstore.RaftDBPath)
	if cfg.RocksDB.BackupDir != "" {
		fmt.Fprintf(w, "backup:      %s\n", cfg.RocksDB.BackupDir)
	}
	fmt.Fprintf(w, "store addr:  %s\n", cfg.Server.StoreAddr())
	fmt.Fprintf(w, "election:    %s\n", cfg.Raftstore.ElectionTimeout())
	return nil
}

// engine is one built engine: its native options and where they belong.
type engine struct {
	name string
	path string
	db   *kvconf.DBOptions
	cfs  []kvconf.CFOptions
}

func buildEngines(cfg *config.Config) ([]engine, error) {
	kvDB, err := cfg.RocksDB.BuildOpt()
	if err != nil {
		return nil, fmt.Errorf("build kv options: %w", err)
	}
	raftDB, err := cfg.RaftDB.BuildOpt()
	if err != nil {
		return nil, fmt.Errorf("build raft options: %w", err)
	}
	return []engine{
		{name: "kv", path: cfg.KVDBPath(), db: kvDB, cfs: cfg.RocksDB.BuildCFOpts()},
		{name: "raft", path: cfg.Raftstore.RaftDBPath, db: raftDB, cfs: cfg.RaftDB.BuildCFOpts()},
	}, nil
}

func cmdRender(w io.Writer, cfg *config.Config, persist bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	engines, err := buildEngines(cfg)
	if err != nil {
		return err
	}

	for _, e := range engines {
		sum, err := kvconf.Fingerprint(e.db, e.cfs)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "# engine=%s path=%s fingerprint=%016x\n", e.name, e.path, sum)
		if err := kvconf.RenderOptions(w, e.db, e.cfs); err != nil {
			return err
		}
		if !persist {
			continue
		}
		path, err := writeOptions(vfs.Default(), e)
		if err != nil {
			return fmt.Errorf("write %s options: %w", e.name, err)
		}
		fmt.Fprintf(w, "# wrote %s\n", path)
	}
	return nil
}

// writeOptions writes the next OPTIONS file into the engine directory.
func writeOptions(fs vfs.FS, e engine) (string, error) {
	var next uint64 = 1
	if latest, err := kvconf.GetLatestOptionsFile(fs, e.path); err == nil {
		num, err := strconv.ParseUint(strings.TrimPrefix(filepath.Base(latest), kvconf.OptionsFilePrefix), 10, 64)
		if err != nil {
			return "", err
		}
		next = num + 1
	}
	path, err := kvconf.WriteOptionsFile(fs, e.path, next, e.db, e.cfs)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := verifyOptions(f, e.cfs); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return path, nil
}

// verifyOptions checks that an OPTIONS file carries the db section and one
// section per column family.
func verifyOptions(r io.Reader, cfs []kvconf.CFOptions) error {
	parsed, err := kvconf.ParseOptionsFile(r)
	if err != nil {
		return err
	}
	if _, ok := parsed["DBOptions"]; !ok {
		return errors.New("missing [DBOptions] section")
	}
	for _, cf := range cfs {
		section := fmt.Sprintf("CFOptions %q", cf.Name)
		if _, ok := parsed[section]; !ok {
			return fmt.Errorf("missing [%s] section", section)
		}
	}
	return nil
}

func cmdDump(w io.Writer, cfg *config.Config, path, name string) error {
	f := config.FormatFromPath(path)
	if name != "" {
		var err error
		if f, err = config.ParseFormat(name); err != nil {
			return err
		}
	}
	return cfg.Dump(w, f)
}

func cmdServe(cfg *config.Config, listen string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           newRouter(cfg),
		ReadHeaderTimeout: time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(os.Stderr, "serving configuration on %s\n", listen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
