package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"reelcraft/internal/gallery"
	"reelcraft/internal/logging"
	"reelcraft/internal/pipeline"
	"reelcraft/internal/services"
	"reelcraft/internal/videoapi"
)

// Pipeline is the part of pipeline.Machine the bridge drives.
type Pipeline interface {
	Snapshot() pipeline.State
	Busy() bool
	SetTitle(title string)
	SetChannelType(channelType string)
	SetVoiceChoice(voice string)
	SetOwnVoice(own bool)
	SetCustomVoice(upload *videoapi.Upload)
	SetVideoMode(ctx context.Context, tall bool)
	GoTo(step pipeline.Step) error
	Reset()
	Start(ctx context.Context) error
	Continue(ctx context.Context) error
	GenerateContent(ctx context.Context) error
	GenerateScripts(ctx context.Context) error
	GenerateImages(ctx context.Context) error
	ModifyImage(ctx context.Context, target, prompt string) error
	GenerateVoices(ctx context.Context) error
	Assemble(ctx context.Context) error
	AddMusic(ctx context.Context, opts pipeline.MusicOptions) error
	AddCaptions(ctx context.Context) error
	RefreshFinal(ctx context.Context) error
}

// Gallery is the part of gallery.Cache the bridge exposes.
type Gallery interface {
	Items() []gallery.Asset
	Refresh(ctx context.Context) ([]gallery.Asset, error)
	Rename(ctx context.Context, name, requested string) (string, error)
	Delete(ctx context.Context, name string) error
}

// Server serves the bridge API.
type Server struct {
	pipeline Pipeline
	gallery  Gallery
	token    string
	logger   *slog.Logger

	// scope bounds background transitions; cancelled by Shutdown.
	scope       context.Context
	cancelScope context.CancelFunc
	wg          sync.WaitGroup

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires a bearer token on every request.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "bridge")
		}
	}
}

// WithGallery exposes gallery routes. Without it they answer 404.
func WithGallery(g Gallery) Option {
	return func(s *Server) { s.gallery = g }
}

// New builds a Server around p.
func New(p Pipeline, opts ...Option) *Server {
	s := &Server{pipeline: p, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.scope, s.cancelScope = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		s.requestLogger,
		authMiddleware(s.token),
	)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/state", s.handleState)
	r.Patch("/api/state", s.handleSettings)
	r.Post("/api/pipeline/reset", s.handleReset)
	r.Post("/api/pipeline/goto", s.handleGoTo)
	r.Post("/api/pipeline/{action}", s.handleAction)

	r.Route("/api/gallery", func(r chi.Router) {
		r.Get("/", s.handleGalleryList)
		r.Post("/{name}/rename", s.handleGalleryRename)
		r.Delete("/{name}", s.handleGalleryDelete)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on bind until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("bridge listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("bridge listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Shutdown()
			return fmt.Errorf("bridge serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	s.Shutdown()
	return nil
}

// Shutdown cancels background transitions and waits for them to return.
func (s *Server) Shutdown() {
	s.cancelScope()
	s.wg.Wait()
}

// Wait blocks until background transitions have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("bridge request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps a classified error onto a status code.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	s.writeError(w, statusFor(err), services.Message(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrPrecondition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
