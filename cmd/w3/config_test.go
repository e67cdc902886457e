package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"w3client/application/w3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w3.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent: Tester/1.0
buffer_size: 1024
transfer_rate: 65536
dial_timeout: 5s
insecure_skip_verify: true
proxy:
  address: 127.0.0.1:1080
  user: me
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	opts := cfg.ClientOptions()
	assert.Equal(t, "Tester/1.0", opts.Agent)
	assert.Equal(t, 1024, opts.BufferSize)
	assert.Equal(t, 65536, opts.TransferRate)
	assert.Equal(t, w3.WaitForever, opts.CompletionTimeout)
	assert.NoError(t, opts.Validate())

	stackOpts := cfg.StackOptions()
	assert.Equal(t, 5*time.Second, stackOpts.DialTimeout)
	assert.Equal(t, 30*time.Second, stackOpts.FTPTimeout)
	require.NotNil(t, stackOpts.TLSConfig)
	assert.True(t, stackOpts.TLSConfig.InsecureSkipVerify)
	require.NotNil(t, stackOpts.Proxy)
	assert.Equal(t, "127.0.0.1:1080", stackOpts.Proxy.Address)
	assert.Equal(t, "me", stackOpts.Proxy.User)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, w3.DefaultOptions(), cfg.ClientOptions())
	assert.Nil(t, cfg.StackOptions().Proxy)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("buffer_size: [1"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestSplitPair(t *testing.T) {
	testcases := []struct {
		desc  string
		input string
		name  string
		value string
		err   bool
	}{
		{desc: "pair", input: "a=1", name: "a", value: "1"},
		{desc: "empty value", input: "a=", name: "a"},
		{desc: "value with equals", input: "q=x=y", name: "q", value: "x=y"},
		{desc: "no equals", input: "a", err: true},
		{desc: "no name", input: "=1", err: true},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			name, value, err := splitPair(tc.input)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.value, value)
		})
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"get", "post", "ftp"})
}
