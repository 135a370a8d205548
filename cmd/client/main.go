// Command client authorizes against an OAuth-protected MCP server and runs
// the tool request sequence: initialize, ping, tools/list, echo and
// get_user_info.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesprial/mcp-oauth-tools/internal/clientauth"
	"github.com/jamesprial/mcp-oauth-tools/internal/toolclient"
)

var version = "dev"

type options struct {
	serverURL    string
	clientID     string
	tokenDir     string
	message      string
	scopes       []string
	callbackPort int
	noBrowser    bool
	verbose      bool
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, errorMessage(err))
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "client",
		Short:         "Call the tools of an OAuth-protected MCP server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&opts.serverURL, "server-url", envOr("MCP_SERVER_URL", toolclient.DefaultServerURL), "MCP endpoint of the tool server")
	flags.StringVar(&opts.clientID, "client-id", os.Getenv("OAUTH_CLIENT_ID"), "OAuth client id; empty registers one dynamically")
	flags.StringVar(&opts.tokenDir, "token-dir", "", "token cache directory (default ~/"+clientauth.DefaultTokenDir+")")
	flags.StringVar(&opts.message, "message", toolclient.DefaultMessage, "message sent to the echo tool")
	flags.StringSliceVar(&opts.scopes, "scope", nil, "scopes to request (default: those the server advertises)")
	flags.IntVar(&opts.callbackPort, "callback-port", 0, "loopback port for the authorization redirect (0 picks one)")
	flags.BoolVar(&opts.noBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := clientauth.NewSession(ctx, clientauth.Config{
		ServerURL:    opts.serverURL,
		ClientID:     opts.clientID,
		TokenDir:     opts.tokenDir,
		Scopes:       opts.scopes,
		NoBrowser:    opts.noBrowser,
		CallbackPort: opts.callbackPort,
		Out:          stderr,
		Logger:       logger,
	})
	if err != nil {
		return &toolclient.StepError{Step: "authorize", Kind: toolclient.ErrAuthentication, Err: err}
	}

	runner := toolclient.NewRunner(toolclient.Config{
		ServerURL:     opts.serverURL,
		TokenSource:   session.TokenSource(),
		ClientVersion: version,
		Message:       opts.message,
		Out:           stdout,
		Logger:        logger,
	})
	_, err = runner.Run(ctx)
	return err
}

func errorMessage(err error) string {
	if toolclient.IsAuthError(err) {
		return "Authentication failed: " + err.Error()
	}
	return "Error: " + err.Error()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
