package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/showroom/schedule"
	"github.com/GoCodeAlone/showroom/server"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

// serveCmd runs the daily scheduler, and the HTTP API when enabled, until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the batch every day on the configured schedule",
	Long: `Runs the follow-up batch on schedule.cron until interrupted. With
server.enabled the REST API and event stream listen on server.addr.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

// passwdCmd hashes an admin password for server.admin_password_hash
var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Hash a password for server.admin_password_hash",
	Long:  `Reads a password from stdin and prints its bcrypt hash.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		sc := bufio.NewScanner(cmd.InOrStdin())
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return err
			}
			return errors.New("no password entered")
		}
		hash, err := server.HashPassword(strings.TrimRight(sc.Text(), "\r"))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

// tokenCmd mints an API token signed with server.jwt_secret
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token for scripts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Server.JWTSecret == "" {
			return errors.New("server.jwt_secret (or $SHOWROOM_JWT_SECRET) must be set to mint tokens")
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.Server.TokenTTL
		}
		token, err := server.SignToken(cfg.Server.JWTSecret, tokenSubject, ttl, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "showroom", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default server.token_ttl)")
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	s, err := schedule.NewScheduler(a.gate, schedule.Config{
		Spec:       cfg.Schedule.Cron,
		Location:   loc,
		RunOnStart: cfg.Schedule.RunOnStart,
		Timeout:    cfg.Schedule.Timeout,
	}, logger.Named("scheduler"))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, a.apiHandlers(), logger.Named("server"))
		detach := srv.AttachBus(a.bus)
		defer detach()

		g.Go(func() error {
			if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		})
		fmt.Fprintf(cmd.OutOrStdout(), "showroom API listening on %s\n", cfg.Server.Addr)
	}

	s.Start(gctx)
	fmt.Fprintf(cmd.OutOrStdout(), "showroom scheduler running (%s, next run %s)\n",
		cfg.Schedule.Cron, s.Next().Format("2006-01-02 15:04 MST"))

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err = g.Wait()
	fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
	s.Stop()
	return err
}
