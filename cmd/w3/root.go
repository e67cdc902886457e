package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"w3client/application/inet/system"
	"w3client/application/w3"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	config  string
	agent   string
	proxy   string
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "w3",
		Short:         "Fetch and upload resources over HTTP, HTTPS and FTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&flags.agent, "agent", "", "User-Agent to send")
	root.PersistentFlags().StringVar(&flags.proxy, "proxy", "", "SOCKS5 proxy as host:port")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log debug output")

	root.AddCommand(newGetCmd(flags))
	root.AddCommand(newPostCmd(flags))
	root.AddCommand(newFTPCmd(flags))

	return root
}

// newClient builds a blocking client on the system stack.
func newClient(flags *globalFlags) (*w3.Client, error) {
	cfg, err := LoadConfig(flags.config)
	if err != nil {
		return nil, err
	}
	if flags.agent != "" {
		cfg.Agent = flags.agent
	}
	if flags.proxy != "" {
		cfg.Proxy = &ProxyConfig{Address: flags.proxy}
	}

	level := slog.LevelInfo
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	stack, err := system.New(logger, cfg.StackOptions())
	if err != nil {
		return nil, errors.Wrap(err, "creating stack")
	}

	client, err := w3.New(stack, logger, clock.New(), cfg.ClientOptions())
	if err != nil {
		return nil, errors.Wrap(err, "creating client")
	}
	return client, nil
}

// splitPair splits name=value.
func splitPair(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", "", errors.Errorf("expected name=value, got %q", s)
	}
	return name, value, nil
}

func connect(ctx context.Context, client *w3.Client, rawURL string) (w3.URLParts, error) {
	parts := w3.ParseURL(rawURL)
	if err := client.Connect(ctx, rawURL, "", ""); err != nil {
		return parts, err
	}
	return parts, nil
}
