package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nao1215/netprobe/internal/browser"
	"github.com/nao1215/netprobe/internal/command"
	"github.com/nao1215/netprobe/internal/config"
	"github.com/nao1215/netprobe/internal/protocol"
	"github.com/nao1215/netprobe/internal/quantum"
	"github.com/nao1215/netprobe/internal/transport"
)

// environment holds the collaborators probes run against: the dialer,
// the shared HTTP client, command processors and the quantum analyzer,
// bundled in a protocol factory.
type environment struct {
	factory    *protocol.Factory
	client     *http.Client
	processors *command.Registry
	tor        *transport.EmbeddedTor
	logger     *slog.Logger
}

// newEnvironment wires every probe collaborator described by cfg. Progress
// of a Tor bootstrap is printed to out. The caller must call close.
func newEnvironment(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*environment, error) {
	env := &environment{logger: logger}

	dialer, err := env.newDialer(ctx, cfg, out)
	if err != nil {
		env.close()
		return nil, err
	}

	env.client = transport.NewHTTPClient(dialer, transport.HTTPOptions{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		UserAgent:          cfg.UserAgent,
	})

	env.processors, err = buildProcessors(cfg, env.client, logger)
	if err != nil {
		env.close()
		return nil, err
	}

	analyzer, err := buildAnalyzer(cfg, logger)
	if err != nil {
		env.close()
		return nil, err
	}

	env.factory = protocol.NewFactory(
		protocol.WithDialer(dialer),
		protocol.WithHTTPClient(env.client),
		protocol.WithBrowser(browser.NewHTTPHost(env.client)),
		protocol.WithProcessors(env.processors),
		protocol.WithAnalyzer(analyzer),
		protocol.WithLogger(logger),
	)
	return env, nil
}

// newDialer returns the dialer of TCP based probes: a checked SOCKS5
// proxy, an embedded Tor daemon, or a direct dialer.
func (e *environment) newDialer(ctx context.Context, cfg *config.Config, out io.Writer) (transport.Dialer, error) {
	switch {
	case cfg.ProxyAddress != "":
		status := transport.CheckConnection(ctx, cfg.ProxyAddress, "")
		if err := status.Err(); err != nil {
			return nil, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
				status, cfg.ProxyAddress, err)
		}
		d, err := transport.NewSOCKS5Dialer(cfg.ProxyAddress, "", "")
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy dialer: %w", err)
		}
		e.logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return d, nil

	case cfg.UseEmbeddedTor:
		return e.startEmbeddedTor(ctx, cfg, out)

	default:
		return transport.Direct, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago and returns
// a dialer bound to its SOCKS port.
func (e *environment) startEmbeddedTor(ctx context.Context, cfg *config.Config, out io.Writer) (transport.Dialer, error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := tor.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	e.tor = tor

	e.logger.Info("embedded Tor daemon started",
		"socksAddr", tor.SocksAddr(),
		"controlAddr", tor.ControlAddr(),
	)
	fmt.Fprintf(out, "Embedded Tor daemon started successfully!\nSOCKS proxy: %s\n\n", tor.SocksAddr())

	d, err := tor.Dialer()
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor dialer: %w", err)
	}

	status := transport.CheckConnection(ctx, tor.SocksAddr(), "")
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("embedded Tor proxy check failed: %s: %w", status, err)
	}
	return d, nil
}

// close stops the embedded Tor daemon, if any.
func (e *environment) close() {
	if e.tor == nil {
		return
	}
	e.logger.Info("stopping embedded Tor daemon...")
	if err := e.tor.Stop(); err != nil {
		e.logger.Error("failed to stop embedded Tor", "error", err)
	}
	e.tor = nil
}

// buildProcessors registers the built-in crawl and keep-alive processors
// and every external command of the configuration file. A configured
// command replaces the built-in processor of the same name.
func buildProcessors(cfg *config.Config, client *http.Client, logger *slog.Logger) (*command.Registry, error) {
	reg := command.NewRegistry()

	builtin := map[string]command.Processor{
		command.NameCrawl:     command.NewCrawlProcessor(client, cfg.File.Crawl.SpiderOptions(cfg.UserAgent)...),
		command.NameKeepAlive: command.NewKeepAliveProcessor(client, config.DefaultKeepAliveInterval),
	}
	for name, p := range builtin {
		if err := reg.Register(name, p); err != nil {
			return nil, err
		}
	}

	for name, pc := range cfg.File.Processors {
		opts := append(pc.ExecOptions(), command.WithExecLogger(logger))
		if err := reg.Register(name, command.NewExecProcessor(pc.Binary, opts...)); err != nil {
			return nil, fmt.Errorf("processor %q: %w", name, err)
		}
		logger.Debug("registered command processor", "name", name, "binary", pc.Binary)
	}
	return reg, nil
}

// buildAnalyzer creates the quantum analyzer with the configured group
// table, algorithm lists and openssl binary.
func buildAnalyzer(cfg *config.Config, logger *slog.Logger) (*quantum.Analyzer, error) {
	opts := []quantum.AnalyzerOption{quantum.WithLogger(logger)}

	table, err := cfg.File.Quantum.GroupTableFile()
	if err != nil {
		return nil, fmt.Errorf("failed to load quantum group table: %w", err)
	}
	if table != nil {
		opts = append(opts, quantum.WithGroupTable(table))
	}

	if cfg.OpenSSLBinary != "" {
		runner := quantum.NewOpenSSLRunner(quantum.WithOpenSSLBinary(cfg.OpenSSLBinary))
		opts = append(opts, quantum.WithHandshakeRunner(runner))
	}

	opts = append(opts, cfg.File.Quantum.AnalyzerOptions()...)
	a := quantum.NewAnalyzer(opts...)
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("quantum configuration error: %w", err)
	}
	return a, nil
}
