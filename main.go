package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/origami-state/osm/config"
	"github.com/origami-state/osm/diag"
	"github.com/origami-state/osm/diag/status"
	"github.com/origami-state/osm/diag/telemetry"
	"github.com/origami-state/osm/log"
	"github.com/origami-state/osm/storage"
	"github.com/origami-state/osm/store"
	"gopkg.in/yaml.v3"
)

const (
	exitOk = iota
	exitFailure
)

var version = "dev"

var out io.Writer = os.Stdout

func main() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	os.Exit(run(sigChan))
}

func run(closeSignal chan os.Signal) int {
	logger := log.NewLogger(os.Stderr, os.Stderr, log.Warn)
	var configFile string
	flag.StringVar(&configFile, "c", "", "path to the configuration file")
	flag.Usage = usage
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		return exitFailure
	}

	conf, err := config.LoadConfigFromFileAndEnvironment(configFile)
	if err != nil {
		logger.Errorf("%s", err)
		return exitFailure
	}
	err = conf.Validate()
	if err != nil {
		logger.Errorf("%s", err)
		return exitFailure
	}

	logger = logger.WithLevel(conf.Log.GetLevel())

	args := flag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	if !validArgs(cmd, args) {
		usage()
		return exitFailure
	}

	initial, err := loadInitialShape(conf.Store.InitialFile)
	if err != nil {
		logger.Errorf("%s", err)
		return exitFailure
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryReporter := telemetry.NewReporter(&conf.Diag, version, logger)
	defer telemetryReporter.Shutdown()
	statusReporter := status.NewReporter(&conf.Storage)

	var rw storage.External
	if conf.Storage.IsSet() {
		rw, err = storage.SetupStorage(ctx, &conf.Storage, telemetryReporter, logger.WithLevel(conf.Storage.Log.GetLevel()))
		if err != nil {
			logger.Errorf("%s", err)
			return exitFailure
		}
		defer rw.Shutdown()
	}

	opts := []store.Option{
		store.WithLogger(logger.WithLevel(conf.Store.Log.GetLevel())),
		store.WithTelemetry(telemetryReporter),
		store.WithStatus(statusReporter),
		store.WithPersistTimeout(conf.Store.GetPersistTimeout()),
	}
	if conf.Store.Name != "" {
		opts = append(opts, store.WithName(conf.Store.Name))
	} else {
		logger.Warnf("no store name configured, changes are not persisted")
	}
	if rw != nil {
		opts = append(opts, store.WithStorage(status.InterceptStorage(statusReporter, rw)))
	}
	if conf.Store.SkipUnchanged {
		opts = append(opts, store.WithSkipUnchanged(store.DeepEqual))
	}
	st, err := store.New(ctx, initial, opts...)
	if err != nil {
		logger.Errorf("%s", err)
		return exitFailure
	}

	switch cmd {
	case "get":
		v, err := st.Read(args[0])
		if err != nil {
			logger.Errorf("%s", err)
			return exitFailure
		}
		return printJson(v, logger)
	case "set":
		var v any
		if err = json.Unmarshal([]byte(args[1]), &v); err != nil {
			logger.Errorf("invalid JSON value: %s", err)
			return exitFailure
		}
		res, err := st.Update(args[0], func(any) any { return v })
		if err != nil {
			logger.Errorf("%s", err)
			return exitFailure
		}
		return printJson(res, logger)
	case "dump":
		return printJson(st.Snapshot(), logger)
	}

	logger.Reportf("service starting...")
	errorChan := make(chan error)
	var diagServer *diag.Server
	if conf.Diag.Enabled && (conf.Diag.IsMetricsEnabled() || conf.Diag.IsStatusEnabled()) {
		diagServer = diag.NewServer(&conf.Diag, telemetryReporter, statusReporter, []*store.Store{st}, logger, errorChan)
		diagServer.Listen()
	}

	select {
	case <-closeSignal:
		if diagServer != nil {
			diagServer.Shutdown()
		}
		return exitOk
	case err = <-errorChan:
		logger.Errorf("%s", err)
		return exitFailure
	}
}

func validArgs(cmd string, args []string) bool {
	switch cmd {
	case "get":
		return len(args) == 1
	case "set":
		return len(args) == 2
	case "dump", "serve":
		return len(args) == 0
	}
	return false
}

// loadInitialShape reads the initial store content from a JSON or YAML file.
func loadInitialShape(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read initial state file %s: %s", path, err)
	}
	var shape map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &shape)
	default:
		err = json.Unmarshal(data, &shape)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse initial state file %s: %s", path, err)
	}
	if shape == nil {
		shape = map[string]any{}
	}
	return shape, nil
}

func printJson(v any, logger log.Logger) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Errorf("failed to serialize value: %s", err)
		return exitFailure
	}
	_, _ = fmt.Fprintln(out, string(data))
	return exitOk
}

func usage() {
	_, _ = fmt.Fprintf(flag.CommandLine.Output(), "usage: osm [-c config.yml] [get PATH | set PATH JSON | dump | serve]\n")
	flag.PrintDefaults()
}
