package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"

	"github.com/odev-ai/pdfproc/server"
	"github.com/odev-ai/pdfproc/worker"
)

const (
	ProgramName   = "PDFPROC"
	Version       = "v0.1.0"
	RepositoryUrl = "github.com/odev-ai/pdfproc"
)

type serveCmd struct {
	Config string `arg:"--config,-c" default:"pdfproc.yaml" help:"path to config file"`
}

type workerCmd struct {
	Config string `arg:"--config,-c" default:"pdfproc.yaml" help:"path to config file"`
}

type args struct {
	Server *serveCmd  `arg:"subcommand:serve" help:"start the HTTP server"`
	Worker *workerCmd `arg:"subcommand:work" help:"start the processing worker"`
}

func (args) Version() string {
	return fmt.Sprintf("%s %s", ProgramName, Version)
}

func (args) Epilogue() string {
	return fmt.Sprintf("For more information visit %s", RepositoryUrl)
}

func main() {
	var args args

	p, err := arg.NewParser(arg.Config{Program: strings.ToLower(ProgramName)}, &args)
	if err != nil {
		log.Fatalf("there was an error in the definition of the Go struct: %v", err)
	}
	p.MustParse(os.Args[1:])

	if p.Subcommand() == nil {
		p.WriteUsage(os.Stdout)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	// env vars may come from a local .env during development
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded environment from .env")
	}

	switch cmd := p.Subcommand().(type) {
	case *serveCmd:
		err = startServer(cmd)
	case *workerCmd:
		err = startWorker(cmd)
	default:
		p.FailSubcommand("unrecognized command", p.SubcommandNames()...)
	}

	if err != nil {
		slog.Error("exited with error", "err", err)
		os.Exit(1)
	}
}

func startServer(cmd *serveCmd) error {
	conf, err := ReadConfig(cmd.Config)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	sc := server.DefaultConfig()
	sc.ListenHost = conf.Server.ListenHost
	sc.ListenPort = conf.Server.ListenPort
	sc.FrontendURL = conf.Server.FrontendURL
	sc.EnableDebug = conf.Server.EnableDebug
	sc.RedisAddr = conf.Transport.Addr
	sc.RedisUsername = conf.Transport.Username
	sc.RedisPassword = conf.Transport.Password
	sc.RedisDB = conf.Transport.DB
	sc.Embedder = conf.Embedder
	sc.Vector = conf.vectorConfig()

	srv := server.New(sc)
	return srv.Serve()
}

func startWorker(cmd *workerCmd) error {
	conf, err := ReadConfig(cmd.Config)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	wc := worker.DefaultConfig()
	wc.RedisAddr = conf.Transport.Addr
	wc.RedisUsername = conf.Transport.Username
	wc.RedisPassword = conf.Transport.Password
	wc.RedisDB = conf.Transport.DB
	wc.Concurrency = conf.Worker.Workers
	wc.Embedder = conf.Embedder
	wc.Vector = conf.vectorConfig()

	w := worker.New(wc)
	return w.Start()
}
