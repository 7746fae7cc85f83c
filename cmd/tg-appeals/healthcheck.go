package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
)

const defaultHealthURL = "http://127.0.0.1:8081/healthz"

func healthcheckCmd() *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Exit 0 when the health endpoint of a running bot reports ok",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				url = healthURL()
			}

			status, body, err := fasthttp.GetTimeout(nil, url, timeout)
			if err != nil {
				return fmt.Errorf("health check request failed: %w", err)
			}
			if status != fasthttp.StatusOK {
				return fmt.Errorf("unhealthy (status %d): %s", status, body)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "health endpoint, defaults to the configured listen port")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

// healthURL builds the local health endpoint from the configuration when it
// can be loaded.
func healthURL() string {
	cfg, err := loadConfig()
	if err != nil || cfg.Bot.HTTP.HealthPath == "" {
		return defaultHealthURL
	}
	return fmt.Sprintf("http://127.0.0.1:%s%s", cfg.Bot.HTTP.ListenPort, cfg.Bot.HTTP.HealthPath)
}
