package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"w3client/application/w3"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type requestFlags struct {
	output    string
	referrer  string
	cookies   []string
	fields    []string
	files     []string
	multipart bool
	headers   bool
}

func (rf *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&rf.output, "output", "o", "", "write the body to a file instead of stdout")
	cmd.Flags().StringVar(&rf.referrer, "referrer", "", "Referer to send")
	cmd.Flags().StringArrayVar(&rf.cookies, "cookie", nil, "cookie as name=value, repeatable")
	cmd.Flags().BoolVarP(&rf.headers, "include", "i", false, "print the response head to stderr")
}

func newGetCmd(flags *globalFlags) *cobra.Command {
	rf := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Fetch a resource over HTTP or HTTPS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd.Context(), flags, rf, args[0], w3.MethodGet)
		},
	}
	rf.register(cmd)
	return cmd
}

func newPostCmd(flags *globalFlags) *cobra.Command {
	rf := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "post URL",
		Short: "Submit a form over HTTP or HTTPS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := w3.MethodPostURLEncoded
			if rf.multipart || len(rf.files) > 0 {
				method = w3.MethodPostMultipart
			}
			return runRequest(cmd.Context(), flags, rf, args[0], method)
		},
	}
	rf.register(cmd)
	cmd.Flags().StringArrayVarP(&rf.fields, "field", "F", nil, "form field as name=value, repeatable")
	cmd.Flags().StringArrayVar(&rf.files, "file", nil, "file field as name=path, repeatable; implies --multipart")
	cmd.Flags().BoolVar(&rf.multipart, "multipart", false, "send multipart/form-data")
	return cmd
}

func runRequest(ctx context.Context, flags *globalFlags, rf *requestFlags, rawURL string, method w3.Method) error {
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

	for _, c := range rf.cookies {
		name, value, err := splitPair(c)
		if err != nil {
			return errors.Wrap(err, "parsing cookie")
		}
		client.AddCookie(name, w3.Str(value))
	}
	for _, f := range rf.fields {
		name, value, err := splitPair(f)
		if err != nil {
			return errors.Wrap(err, "parsing field")
		}
		client.AddField(name, w3.Str(value))
	}
	for _, f := range rf.files {
		name, path, err := splitPair(f)
		if err != nil {
			return errors.Wrap(err, "parsing file field")
		}
		client.AddFileField(name, path)
	}

	if err := client.Issue(ctx, parts.Path, method, rf.referrer); err != nil {
		return err
	}

	if rf.headers {
		os.Stderr.Write(client.RawHeaders())
	}

	var out io.Writer = os.Stdout
	if rf.output != "" {
		f, err := os.Create(rf.output)
		if err != nil {
			return errors.Wrap(err, "creating output file")
		}
		defer f.Close()
		out = f
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := client.ReadBody(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return errors.Wrap(werr, "writing body")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	if code := client.StatusCode(); code >= 400 {
		return errors.Errorf("server answered %d", code)
	}
	return nil
}
