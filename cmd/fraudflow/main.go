package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "embed"

	"github.com/tigerroll/fraudflow/internal/app"
	"github.com/tigerroll/fraudflow/internal/dashboard"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// embeddedConfig embeds the application's YAML configuration file.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func usage() {
	fmt.Fprintf(os.Stderr, "usage: fraudflow <%s> [flags]\n", strings.Join(app.Modes, "|"))
}

// parseOptions reads the mode and its flags from args.
func parseOptions(args []string) (app.Options, error) {
	if len(args) == 0 {
		return app.Options{}, fmt.Errorf("missing mode")
	}
	opts := app.Options{Mode: args[0]}

	fs := flag.NewFlagSet(opts.Mode, flag.ContinueOnError)
	inputPath := fs.String("input", "", "path of the JSON execution input, or '-' for stdin")
	fs.StringVar(&opts.IndexRequestType, "type", dashboard.RequestCreate, "index request type: Create, Update or Delete")
	requestPath := fs.String("request", "", "path of the JSON index request; the default index when empty")
	fs.StringVar(&opts.RunID, "id", "", "run ID to show")
	fs.StringVar(&opts.PipelineName, "pipeline", "", "pipeline whose recent runs are listed")
	fs.IntVar(&opts.Limit, "limit", 20, "maximum number of runs listed")
	if err := fs.Parse(args[1:]); err != nil {
		return opts, err
	}

	var err error
	if opts.Input, err = readSource(*inputPath); err != nil {
		return opts, err
	}
	if opts.IndexRequest, err = readSource(*requestPath); err != nil {
		return opts, err
	}
	return opts, nil
}

func readSource(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, nil
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(path)
	}
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		usage()
		logger.Fatalf("Invalid arguments: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Stopping...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	if err := app.RunApplication(ctx, envFilePath, embeddedConfig, opts); err != nil {
		logger.Fatalf("%v", err)
	}
	os.Exit(0)
}
