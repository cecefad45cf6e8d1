package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pastebox/internal/log"
	"pastebox/internal/store"
	"pastebox/internal/web"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr          string
		purgeInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI",
		Example: strings.TrimSpace(`
# Serve on the configured address (default 127.0.0.1:5000)
pastebox serve

# Serve on all interfaces
pastebox serve --addr :8080
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				listenAddr = app.cfg.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			srv, err := web.NewServer(web.ServerConfig{
				Addr:        listenAddr,
				BaseURL:     app.cfg.BaseURL,
				SiteName:    app.cfg.SiteName,
				Motd:        app.cfg.Motd,
				MaxBodySize: app.cfg.MaxBodySize,
				Policy:      app.cfg.Policy(),
				Style:       app.cfg.HighlightStyle,
				ImageWidth:  app.cfg.ImageWidth,
			}, st)
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}

			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/"
			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"dir":       st.Dir,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Pastebox running at %s (dir=%s)\n", url, st.Dir)

			if purgeInterval > 0 {
				go purgeLoop(ctx, st, purgeInterval)
			}

			if err := srv.Serve(ctx, ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port; default: the addr config key)")
	cmd.Flags().DurationVar(&purgeInterval, "purge-interval", time.Hour, "How often to delete expired items (0 disables)")
	return cmd
}

func purgeLoop(ctx context.Context, st *store.Store, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			removed, err := st.Purge(ctx, now)
			if err != nil {
				log.WarningLog.Printf("purge: %v", err)
				continue
			}
			if len(removed) > 0 {
				log.InfoLog.Printf("purge: removed %d expired item(s)", len(removed))
			}
		}
	}
}
