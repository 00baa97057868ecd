package servehttp

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StartHTTPServer serves engine on addr until SIGINT or SIGTERM, then shuts
// down gracefully and runs onShutdown hooks in order.
func StartHTTPServer(engine *gin.Engine, addr string, onShutdown ...func()) {
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		logrus.Infof("http server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// will call os.Exit(1)
			logrus.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	// kill -9 sends SIGKILL, which can't be caught
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("[QUIT] shutdown signal has been received, the service will exit in 5 seconds.")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("[QUIT] http server shutdown failed: %v", err)
	} else {
		logrus.Info("[QUIT] http server is shutdown gracefully, new request will be rejected.")
	}
	for _, hook := range onShutdown {
		hook()
	}
	logrus.Info("[QUIT] service exiting")
}
