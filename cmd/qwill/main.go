package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	cfgpkg "github.com/qwill/qwill/internal/config"
	logpkg "github.com/qwill/qwill/internal/logger"
	"github.com/qwill/qwill/internal/metrics"
	"github.com/qwill/qwill/internal/pagination"
	"github.com/qwill/qwill/internal/server"
	"github.com/qwill/qwill/internal/storage"
	"github.com/qwill/qwill/pkg/api"
)

func main() {
	var (
		inputFile  string
		outputFile string
		pageSize   string
		font       string
		verbose    bool
		serve      bool
		addr       string
	)

	flag.StringVar(&inputFile, "input", "", "Input file (docx, pdf, html or txt)")
	flag.StringVar(&outputFile, "output", "", "Output file (pdf, docx, html or txt)")
	flag.StringVar(&pageSize, "page", "", "Page size: letter, legal, a4 or a5")
	flag.StringVar(&font, "font", "", "Document font family")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP API")
	flag.StringVar(&addr, "addr", "", "Listen address for -serve")
	flag.Parse()

	cfg, err := cfgpkg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if pageSize != "" {
		cfg.Page.Size = strings.ToLower(pageSize)
	}
	if font != "" {
		cfg.Page.Font = font
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	if _, ok := pagination.LookupPageSize(cfg.Page.Size); !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown page size %q\n", cfg.Page.Size)
		os.Exit(1)
	}
	options, err := api.FromConfig(cfg.Page)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if serve {
		if err := runServer(cfg, options); err != nil {
			log.Error().Err(err).Msg("server failed")
			logpkg.Close()
			os.Exit(1)
		}
		return
	}

	if inputFile == "" {
		fmt.Println("Error: input file is required")
		flag.Usage()
		os.Exit(1)
	}
	if outputFile == "" {
		outputFile = defaultOutput(inputFile)
	}

	if err := convert(inputFile, outputFile, options); err != nil {
		fmt.Printf("Error converting file: %v\n", err)
		logpkg.Close()
		os.Exit(1)
	}
	if verbose {
		fmt.Printf("Successfully converted %s to %s\n", inputFile, outputFile)
	}
}

// defaultOutput is the input path with a .pdf extension, or .docx for PDF
// input.
func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	out := input[:len(input)-len(ext)] + ".pdf"
	if strings.EqualFold(ext, ".pdf") {
		out = input[:len(input)-len(ext)] + ".docx"
	}
	return out
}

func convert(input, output string, options api.Options) error {
	editor := api.NewWithOptions(options)
	defer editor.Close()

	if err := editor.ImportFile(context.Background(), input); err != nil {
		return err
	}
	log.Info().Int("pages", len(editor.Pages())).Str("title", editor.Title()).Msg("paginated document")
	return editor.ExportFile(output)
}

func runServer(cfg cfgpkg.Config, options api.Options) error {
	ctx := context.Background()
	backend, err := storage.Open(ctx, cfg.Storage.URL)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if cfg.Storage.Key != "" {
		backend = storage.NewEncrypted(backend, cfg.Storage.Key)
	}
	metrics.Init()

	srv := server.New(server.Dependencies{
		Storage:       backend,
		Options:       options,
		AutosaveDelay: cfg.Storage.AutosaveDelay,
	})
	httpServer := &http.Server{Addr: cfg.HTTP.Addr, Handler: srv.Handler()}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("storage", cfg.Storage.URL).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-stop:
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	if err := srv.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to save open documents")
	}
	log.Info().Msg("shutdown complete")
	return nil
}
