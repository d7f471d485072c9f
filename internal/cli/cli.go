// Package cli implements Fisher's command line interface: "fisher run"
// starts the webhook receiver, "fisher validate" loads a hooks directory
// and reports parse errors without starting anything.
package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/fisher/internal/hooks"
	"github.com/ChuLiYu/fisher/internal/httpapi"
	"github.com/ChuLiYu/fisher/internal/metrics"
	"github.com/ChuLiYu/fisher/internal/scheduler"
)

var log = slog.Default()

// FileConfig is the optional YAML layer "fisher run" accepts via
// --config; any flag given on the command line overrides the
// corresponding field here.
type FileConfig struct {
	Bind        string `yaml:"bind"`
	Jobs        int    `yaml:"jobs"`
	NoHealth    bool   `yaml:"no_health"`
	ProxyHops   int    `yaml:"proxy_hops"`
	MetricsPort int    `yaml:"metrics_port"`
}

// BuildCLI constructs the "fisher" root command and its subcommands.
func BuildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:     "fisher",
		Short:   "Fisher: a lightweight webhook receiver",
		Long:    "Fisher authenticates incoming webhooks against per-hook provider rules and runs the matching script in a bounded worker pool.",
		Version: "0.1.0",
	}

	root.AddCommand(buildRunCommand())
	root.AddCommand(buildValidateCommand())

	return root
}

func buildRunCommand() *cobra.Command {
	var (
		configFile  string
		bind        string
		jobs        int
		noHealth    bool
		proxyHops   int
		metricsPort int
	)

	cmd := &cobra.Command{
		Use:   "run <hooks-dir>",
		Short: "Load hooks from a directory and start serving webhooks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := FileConfig{Bind: bind, Jobs: jobs, NoHealth: noHealth, ProxyHops: proxyHops, MetricsPort: metricsPort}
			if configFile != "" {
				fileCfg, err := loadConfig(configFile)
				if err != nil {
					return err
				}
				cfg = mergeConfig(fileCfg, cmd, bind, jobs, noHealth, proxyHops, metricsPort)
			}
			return runServer(args[0], cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "optional YAML config file layered under the flags below")
	cmd.Flags().StringVarP(&bind, "bind", "b", "127.0.0.1:8000", "address to bind the HTTP front-end to")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 1, "maximum number of concurrent hook executions")
	cmd.Flags().BoolVar(&noHealth, "no-health", false, "disable the /health endpoint")
	cmd.Flags().IntVar(&proxyHops, "proxy-hops", 0, "number of trusted X-Forwarded-For hops to peel for client IP")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "port to expose /metrics on (0 disables metrics)")

	return cmd
}

// mergeConfig layers cmd's explicitly-set flags over fileCfg: a flag the
// user actually passed wins, otherwise the file's value is kept.
func mergeConfig(fileCfg FileConfig, cmd *cobra.Command, bind string, jobs int, noHealth bool, proxyHops, metricsPort int) FileConfig {
	merged := fileCfg
	if cmd.Flags().Changed("bind") {
		merged.Bind = bind
	}
	if cmd.Flags().Changed("jobs") {
		merged.Jobs = jobs
	}
	if cmd.Flags().Changed("no-health") {
		merged.NoHealth = noHealth
	}
	if cmd.Flags().Changed("proxy-hops") {
		merged.ProxyHops = proxyHops
	}
	if cmd.Flags().Changed("metrics-port") {
		merged.MetricsPort = metricsPort
	}
	if merged.Bind == "" {
		merged.Bind = "127.0.0.1:8000"
	}
	if merged.Jobs == 0 {
		merged.Jobs = 1
	}
	return merged
}

func loadConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("cli: reading config %s: %w", path, err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("cli: parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func runServer(hooksDir string, cfg FileConfig) error {
	repo, err := hooks.Load(hooksDir)
	if err != nil {
		return fmt.Errorf("cli: loading hooks: %w", err)
	}
	log.Info("loaded hooks", "dir", hooksDir, "count", len(repo.Names()))

	var collector *metrics.Collector
	if cfg.MetricsPort > 0 {
		collector = metrics.NewCollector()
	}

	manager, err := scheduler.Start(cfg.Jobs, repo, collector)
	if err != nil {
		return fmt.Errorf("cli: starting scheduler: %w", err)
	}

	if cfg.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			log.Info("metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, metrics.Handler()); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	server := httpapi.NewServer(repo, manager.Input(), httpapi.Config{
		EnableHealth: !cfg.NoHealth,
		ProxyHops:    cfg.ProxyHops,
	}, collector)

	httpServer := &http.Server{Addr: cfg.Bind, Handler: server}
	go func() {
		log.Info("fisher listening", "addr", cfg.Bind, "jobs", cfg.Jobs, "health", !cfg.NoHealth)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	manager.Stop()
	return nil
}

func buildValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <hooks-dir>",
		Short: "Load a hooks directory and report parse errors without starting a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateHooks(args[0])
		},
	}
	return cmd
}

func validateHooks(dir string) error {
	repo, err := hooks.Load(dir)
	if err != nil {
		return fmt.Errorf("cli: loading hooks: %w", err)
	}

	for _, name := range repo.Names() {
		hook, _ := repo.Get(name)
		fmt.Printf("%s (%s)\n", hook.Name, hook.Exec)
		for _, hp := range hook.Providers {
			fmt.Printf("  - %s\n", hp.Provider.Kind())
		}
	}
	fmt.Printf("%d hooks loaded\n", len(repo.Names()))
	return nil
}
