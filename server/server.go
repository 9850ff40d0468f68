package server

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/esm-dev/tsload/internal/config"
	"github.com/esm-dev/tsload/internal/loader"
	logx "github.com/ije/gox/log"
	"github.com/ije/rex"
)

// Serve serves the loader server on cfg.Port and blocks until the process
// receives an exit signal or the server fails.
func Serve(cfg *config.Config, hooks *loader.Hooks, logger *logx.Logger) (err error) {
	// add middlewares
	rex.Use(
		rex.Header("Server", "tsload"),
		rex.Logger(logger),
		router(hooks, logger),
	)

	// start server
	C := rex.Serve(rex.ServerConfig{
		Port: cfg.Port,
	})
	logger.Infof("Server is ready on http://localhost:%d", cfg.Port)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP)
	select {
	case <-c:
	case err = <-C:
		logger.Error(err)
	}

	logger.FlushBuffer()
	return
}
