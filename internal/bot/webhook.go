package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"tg-appeals/internal/handler"
	"tg-appeals/internal/logger"
)

// HealthCheck reports whether the service can do useful work.
type HealthCheck func(ctx context.Context) error

// WebServer serves health and debug pages and, in webhook mode, updates.
type WebServer struct {
	server   *http.Server
	mux      *http.ServeMux
	certFile string
	keyFile  string
}

// NewWebServer creates the HTTP server with health and debug endpoints.
// extraStatus is appended to the debug page when set.
func NewWebServer(listenPort, healthPath, debugPath string, health HealthCheck, extraStatus func(ctx context.Context) string) *WebServer {
	if listenPort == "" {
		listenPort = "8081"
		logger.Infof("Using default listen port: %s", listenPort)
	}

	mux := http.NewServeMux()

	if healthPath != "" {
		mux.HandleFunc(healthPath, func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()

			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			if health != nil {
				if err := health(ctx); err != nil {
					logger.Warningf("Health check failed: %v", err)
					w.WriteHeader(http.StatusServiceUnavailable)
					_, _ = fmt.Fprintf(w, "unhealthy: %v\n", err)
					return
				}
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok\n"))
		})
	}

	if debugPath != "" {
		mux.HandleFunc(debugPath, func(w http.ResponseWriter, r *http.Request) {
			logger.Infof("Debug endpoint accessed: %s %s", r.Method, r.URL.Path)

			response := "Appeals bot is running\n"
			response += handler.GetDetailedStatus() + "\n"
			if extraStatus != nil {
				response += extraStatus(r.Context())
			}

			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(response))
		})
	}

	return &WebServer{
		server: &http.Server{
			Addr:              "0.0.0.0:" + listenPort,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		mux: mux,
	}
}

// Start serves until Shutdown is called
func (ws *WebServer) Start() error {
	logger.Infof("Starting HTTP server on %s", ws.server.Addr)

	var err error
	if ws.certFile != "" && ws.keyFile != "" {
		logger.Infof("Using TLS with cert: %s, key: %s", ws.certFile, ws.keyFile)
		err = ws.server.ListenAndServeTLS(ws.certFile, ws.keyFile)
	} else {
		err = ws.server.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// webhookSecret derives a stable secret token from the bot token
func webhookSecret(token string) string {
	suffix := token
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	suffix = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, suffix)
	return "appeals_webhook_" + suffix
}

// SetupWebhook registers the webhook and mounts the update handler on ws
func SetupWebhook(ctx context.Context, bot *telego.Bot, ws *WebServer, webhookPoint, secretToken, certFile, keyFile string) (<-chan telego.Update, error) {
	if webhookPoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}

	// Validate HTTPS setup
	if (certFile == "" || keyFile == "") && !strings.HasPrefix(webhookPoint, "https://") {
		return nil, fmt.Errorf("HTTPS configuration required: set cert_file and key_file in config or use a HTTPS proxy")
	}

	parsedURL, err := url.Parse(webhookPoint)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}

	webhookPath := parsedURL.Path
	if webhookPath == "" {
		webhookPath = "/webhook"
		logger.Infof("No path specified in webhook endpoint, using default path: %s", webhookPath)
	}

	logger.Infof("Setting webhook to: %s", webhookPoint)
	err = bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            webhookPoint,
		AllowedUpdates: allowedUpdates,
		SecretToken:    secretToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook: %w", err)
	}

	webhookInfo, err := bot.GetWebhookInfo(ctx)
	if err != nil {
		logger.Warningf("Failed to get webhook info: %v", err)
	} else {
		logger.Infof("Webhook info: URL=%s, HasCustomCert=%v, PendingUpdateCount=%d",
			webhookInfo.URL, webhookInfo.HasCustomCertificate, webhookInfo.PendingUpdateCount)
		if webhookInfo.LastErrorDate > 0 {
			logger.Warningf("Webhook last error: [%d] %s", webhookInfo.LastErrorDate, webhookInfo.LastErrorMessage)
		}
	}

	ws.certFile = certFile
	ws.keyFile = keyFile

	updates, err := bot.UpdatesViaWebhook(ctx, telego.WebhookHTTPServeMux(ws.mux, webhookPath, secretToken))
	if err != nil {
		return nil, fmt.Errorf("failed to get updates channel: %w", err)
	}
	return updates, nil
}

// webhookStatus renders webhook details for the debug page
func webhookStatus(bot *telego.Bot) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		webhookInfo, err := bot.GetWebhookInfo(ctx)
		if err != nil {
			return fmt.Sprintf("\nError getting webhook info: %v\n", err)
		}

		response := "\nWebhook Info:\n"
		response += fmt.Sprintf("URL: %s\n", webhookInfo.URL)
		response += fmt.Sprintf("Custom Certificate: %v\n", webhookInfo.HasCustomCertificate)
		response += fmt.Sprintf("Pending Updates: %d\n", webhookInfo.PendingUpdateCount)
		if webhookInfo.LastErrorDate > 0 {
			errorTime := time.Unix(int64(webhookInfo.LastErrorDate), 0)
			response += fmt.Sprintf("Last Error: [%s] %s\n",
				errorTime.Format("2006-01-02 15:04:05"),
				webhookInfo.LastErrorMessage)
		}
		return response
	}
}
