package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/gmail-sender/internal/google"
	"github.com/teemow/gmail-sender/internal/logging"
	"github.com/teemow/gmail-sender/internal/server"
)

// defaultAuthWait bounds how long the auth command waits for the consent.
const defaultAuthWait = 10 * time.Minute

func newAuthCmd() *cobra.Command {
	var (
		opts  options
		force bool
		wait  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize gmail-sender with a Google account",
		Long: `Run only the local authorization listener and wait for the Google
consent to complete. The credential is stored in the token file and picked
up by the next serve run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.loadEnv(cmd); err != nil {
				return err
			}
			if err := opts.validate(); err != nil {
				return err
			}
			return runAuth(cmd.Context(), cmd.ErrOrStderr(), &opts, force, wait)
		},
	}

	addOptionFlags(cmd, &opts)
	cmd.Flags().BoolVar(&force, "force", false, "Authorize again even if a credential is already stored")
	cmd.Flags().DurationVar(&wait, "timeout", defaultAuthWait, "How long to wait for the consent to complete")

	return cmd
}

func runAuth(ctx context.Context, out io.Writer, opts *options, force bool, wait time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.provider.Shutdown(context.Background()) }()

	if a.authorizer.State() == google.StateAuthenticated && !force {
		fmt.Fprintf(out, "Already authenticated. Credential stored at %s\n", a.store.Path())
		return nil
	}

	authServer, err := server.NewAuthServer(server.AuthServerConfig{
		Addr:       opts.AuthAddr,
		Authorizer: a.authorizer,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}
	if err := authServer.Listen(); err != nil {
		return err
	}
	go func() {
		if err := authServer.Serve(); err != nil {
			a.logger.Error("Authorization listener stopped", logging.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		_ = authServer.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(out, "To authenticate, visit: %s\n", a.authURL)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-a.authorizer.Done():
		fmt.Fprintf(out, "Authentication successful. Credential stored at %s\n", a.store.Path())
		return nil
	case <-timer.C:
		return fmt.Errorf("timed out after %s waiting for authorization", wait)
	case <-ctx.Done():
		return fmt.Errorf("authorization cancelled: %w", ctx.Err())
	}
}
