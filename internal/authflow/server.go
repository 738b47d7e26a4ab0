// Package authflow hosts the one-shot localhost HTTP server that catches the
// browser redirect of the authorization-code login. It is an external
// collaborator of the core: only the CLI launches it, and only after the
// token lifecycle manager reported that interactive login is required.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownGrace = 3 * time.Second

type callback struct {
	code string
	err  error
}

// Server waits for a single OAuth redirect on a local port.
type Server struct {
	port   string
	logger *zap.Logger
}

// NewServer builds a callback server listening on the given port.
func NewServer(port string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{port: port, logger: logger}
}

// routes builds the callback handler. Only a redirect carrying the expected
// state can finish the wait; anything else gets a 400 and the server keeps
// serving, so a stray hit on the local port cannot kill the login flow.
func (s *Server) routes(expectedState string, results chan<- callback) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/callback", func(c *gin.Context) {
		if state := c.Query("state"); state != expectedState {
			s.logger.Warn("ignoring callback with unexpected state")
			c.String(http.StatusBadRequest, "State mismatch. You can close this tab.")
			return
		}
		if errParam := c.Query("error"); errParam != "" {
			c.String(http.StatusBadRequest, "Authorization failed: %s. You can close this tab.", errParam)
			deliver(results, callback{err: fmt.Errorf("authorization denied: %s", errParam)})
			return
		}
		code := c.Query("code")
		if code == "" {
			s.logger.Warn("ignoring callback without authorization code")
			c.String(http.StatusBadRequest, "Missing authorization code. You can close this tab.")
			return
		}
		c.String(http.StatusOK, "Login complete. You can close this tab and return to the terminal.")
		deliver(results, callback{code: code})
	})
	return engine
}

// deliver hands the terminal result over without blocking; after the first
// result the wait is over and later redirects are irrelevant.
func deliver(results chan<- callback, result callback) {
	select {
	case results <- result:
	default:
	}
}

// WaitForCode serves /callback until a redirect carrying the expected state
// arrives and returns its authorization code. The context bounds the whole
// wait.
func (s *Server) WaitForCode(ctx context.Context, expectedState string) (string, error) {
	results := make(chan callback, 1)

	srv := &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.routes(expectedState, results),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErrs := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrs <- err
		}
	}()

	s.logger.Info("waiting for authorization callback", zap.String("port", s.port))

	var result callback
	select {
	case result = <-results:
	case err := <-serveErrs:
		return "", fmt.Errorf("callback server failed: %w", err)
	case <-ctx.Done():
		result = callback{err: ctx.Err()}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return result.code, result.err
}
