package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newFTPCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ftp",
		Short: "Transfer files over FTP",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get URL LOCAL",
		Short: "Download the file at URL to LOCAL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd.Context(), flags, args[0], func(ctx context.Context, t transfer, path string) error {
				return t.GetFile(ctx, path, args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "put LOCAL URL",
		Short: "Upload LOCAL to the file at URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd.Context(), flags, args[1], func(ctx context.Context, t transfer, path string) error {
				return t.PutFile(ctx, path, args[0])
			})
		},
	})

	return cmd
}

type transfer interface {
	GetFile(ctx context.Context, uri, dest string) error
	PutFile(ctx context.Context, uri, src string) error
}

func runTransfer(ctx context.Context, flags *globalFlags, rawURL string, run func(context.Context, transfer, string) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(flags)
	if err != nil {
		return err
	}
	defer client.Close()

	parts, err := connect(ctx, client, rawURL)
	if err != nil {
		return err
	}
	return run(ctx, client, parts.Path)
}
