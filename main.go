package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"landing_copy_studio/config"
	"landing_copy_studio/document"
	"landing_copy_studio/generator"
	"landing_copy_studio/logging"
	"landing_copy_studio/server"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "landing_copy_studio",
		Usage: "Generate landing-page copy section by section with an LLM",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.json (optional; LCS_* environment variables override it)",
				EnvVars: []string{"LCS_CONFIG"},
			},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides config)"},
			&cli.StringFlag{Name: "log-format", Usage: "console or json (overrides config)"},
			&cli.StringFlag{Name: "log-file", Usage: "rotating log file (overrides config)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (overrides config server_addr)"},
				},
				Action: serveCommand,
			},
			{
				Name:  "draft",
				Usage: "Generate a whole landing page from a YAML brief, approving one variation per section",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "brief", Aliases: []string{"b"}, Usage: "path to the YAML brief", Required: true},
					&cli.StringFlag{Name: "pick", Value: "A", Usage: "variation approved for sections without their own pick (A, B or C)"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "output format (text, markdown, html)"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the page to this file instead of stdout"},
				},
				Action: draftCommand,
			},
			{
				Name:  "suggest",
				Usage: "Suggest keywords for a brief",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Usage: "brief text", Required: true},
					&cli.StringFlag{Name: "platform", Value: "landing", Usage: "target platform"},
				},
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, strings.Join(generator.SuggestKeywords(c.String("prompt"), c.String("platform")), ", "))
					return nil
				},
			},
		},
	}
}

// setup loads and validates the config and builds the logger.
func setup(c *cli.Context) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, nil, err
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if v := c.String("log-file"); v != "" {
		cfg.Log.File = v
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func buildAgent(cfg config.Config, logger *zap.Logger) (*generator.Agent, error) {
	llm, err := buildLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}
	return generator.NewAgent(llm, logger)
}

func buildLLM(cfg config.LLMConfig) (generator.LLMClient, error) {
	settings := &generator.LLMSettings{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		MaxTokens: cfg.MaxTokens,
	}
	switch cfg.Provider {
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "gemini", "deepseek":
		// both expose OpenAI-compatible chat endpoints
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider %s requires base_url (OpenAI-compatible endpoint)", cfg.Provider)
		}
		return generator.NewOpenAILLMFromConfig(settings)
	case "mock":
		return generator.MockLLM{}, nil
	case "":
		return nil, errors.New("llm config missing; set llm.provider/model/api_key in config or LCS_LLM_* variables")
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}

func serveCommand(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	agent, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}
	srv, err := server.New(agent, document.NewFileExtractor(cfg.MaxUploadBytes(), logger), server.Options{
		SessionTTL:        cfg.SessionTTL.Std(),
		GenerationTimeout: cfg.GenerationTimeout.Std(),
		MaxUploadBytes:    cfg.MaxUploadBytes(),
	}, logger)
	if err != nil {
		return err
	}

	listen := cfg.ServerAddr
	if addr := c.String("addr"); addr != "" {
		listen = addr
	}
	httpServer := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting web server", zap.String("addr", listen), zap.String("provider", cfg.LLM.Provider), zap.String("model", cfg.LLM.Model))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	srv.Wait()
	return nil
}
