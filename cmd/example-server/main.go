package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"visitor-tracker/internal/logger"
	"visitor-tracker/middleware/clientip"
	"visitor-tracker/middleware/ratelimit"
	"visitor-tracker/middleware/ratelimit/domain"
	"visitor-tracker/middleware/ratelimit/infra"
	"visitor-tracker/session"
	"visitor-tracker/visitlog"
	"visitor-tracker/visitlog/application"
	visitinfra "visitor-tracker/visitlog/infra"
)

func main() {
	// Exemplo: usando os middlewares direto no seu webserver (sem proxy e sem cobra)
	log, err := logger.New("info")
	if err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := infra.NewMemoryStore()
	store.StartJanitor(ctx)
	sessions := session.NewMemoryStore(30 * time.Minute)
	sessions.StartJanitor(ctx, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := http.Handler(mux)
	h = visitlog.Middleware(visitlog.Options{
		Service: application.Service{Log: visitinfra.NewFileLog("./logs/visitor.json")},
		OnError: func(r *http.Request, err error) { log.WithError(err).Error("visit log append failed") },
	})(h)
	h = ratelimit.Middleware(ratelimit.Options{
		Store:               store,
		Policy:              domain.Policy{Limit: 10, Window: time.Minute},
		KeyHeader:           "X-Api-Key", // ou vazio para usar IP
		AddRateLimitHeaders: true,
	})(h)
	h = session.Middleware(session.Options{Store: sessions})(h)
	h = clientip.Resolver{Sources: []clientip.Source{clientip.SourceRemoteAddr}}.Middleware(h)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server error")
	}
}
