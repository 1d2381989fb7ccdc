package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wrongjunior/eventfeed/internal/config"
	"github.com/wrongjunior/eventfeed/internal/domain"
	"github.com/wrongjunior/eventfeed/internal/format"
	"github.com/wrongjunior/eventfeed/internal/logger"
	"github.com/wrongjunior/eventfeed/internal/metrics"
	"github.com/wrongjunior/eventfeed/internal/render"
	"github.com/wrongjunior/eventfeed/internal/service"
	"github.com/wrongjunior/eventfeed/internal/transform"
	transportClient "github.com/wrongjunior/eventfeed/internal/transport/client"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "eventfeed-client",
		Short:        "Subscribe to the event feed and render it as an HTML list",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Render the feed into a page that updates on every event
  eventfeed-client --config client.yaml

  # Post a test event
  eventfeed-client post --event github-wiki --author https://github.com/mottosso`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return watch(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.AddCommand(newPostCmd(&configPath))
	return cmd
}

func watch(parent context.Context, cfg *config.Config, stdout io.Writer) error {
	log := logger.New(cfg.LogLevel, cfg.LogConsole)

	times, err := format.NewTimeFormatter(format.TimeMode(cfg.Widget.TimeMode), nil, nil)
	if err != nil {
		return err
	}
	renderer, err := render.NewRenderer(render.Layout(cfg.Widget.Layout), cfg.Widget.TemplatesDir)
	if err != nil {
		return err
	}
	list := render.NewList(cfg.Widget.Title)

	var sinks []render.Sink
	if cfg.Widget.Output != "" {
		page := render.PageFile{Path: cfg.Widget.Output, Renderer: renderer, List: list}
		// The empty page shows the loading indicator until the first record.
		if err := page.Write(); err != nil {
			return fmt.Errorf("write %s: %w", cfg.Widget.Output, err)
		}
		sinks = append(sinks, page)
	} else {
		sinks = append(sinks, render.FragmentWriter{W: stdout})
	}

	reg := prometheus.NewRegistry()
	subscriber := service.NewFeedSubscriber(
		transform.NewTransformer(times, cfg.Widget.Icons),
		renderer, list, log, metrics.NewWidget(reg), sinks...,
	)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Widget.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Widget.Listen,
			Handler:           pageRouter(renderer, list, reg, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Widget.Listen).Msg("Serving feed page")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Page server error")
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			srv.Shutdown(shutdownCtx)
		}()
	}

	events := make(chan domain.RawEvent, cfg.Widget.Buffer)
	ct := transportClient.NewClientTransport(cfg.ClientServerURL, cfg.Widget.Limit, events, log)
	ct.MaxBackoff = cfg.Widget.MaxBackoff
	go ct.Listen(ctx)

	subscriber.Run(ctx, events)

	rendered, _ := metrics.Total(reg, "eventfeed_widget_rendered_total")
	log.Info().Float64("rendered", rendered).Msg("Client stopped")
	return nil
}

func pageRouter(renderer *render.Renderer, list *render.List, reg prometheus.Gatherer, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := renderer.WritePage(w, list); err != nil {
			log.Error().Err(err).Msg("Page render failed")
		}
	})
	r.Handle("/metrics", metrics.Handler(reg))
	return r
}

func newPostCmd(configPath *string) *cobra.Command {
	var ev domain.RawEvent
	var body, target string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Append a raw event to the feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("body") {
				ev.Body = &body
			}
			if target == "" {
				target, err = eventsURL(cfg.ClientServerURL)
				if err != nil {
					return err
				}
			}
			return postEvent(cmd.Context(), target, ev, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&ev.Author, "author", "", "Author URL or path")
	f.StringVar(&ev.Target, "target", "", "Target URL or path")
	f.StringVar(&ev.Action, "action", "", "Action URL or path")
	f.StringVar(&ev.ActionURL, "action-url", "", "Action link")
	f.StringVar(&ev.Message, "message", "", "Message text")
	f.StringVar(&ev.Event, "event", "", "Event tag, e.g. github-wiki")
	f.StringVar(&body, "body", "", "Body text; its presence selects the large template")
	f.StringVar(&target, "url", "", "Feed events URL (default derived from client_server_url)")
	return cmd
}

// eventsURL turns the WebSocket subscription URL into the HTTP events URL.
func eventsURL(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = "/events"
	u.RawQuery = ""
	return u.String(), nil
}

func postEvent(ctx context.Context, target string, ev domain.RawEvent, out io.Writer) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("post event: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	_, err = out.Write(respBody)
	return err
}
