// Package fixtureapp serves a local task board that mirrors the markup of the
// hosted board, so checks can run without the external application.
package fixtureapp

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionCookie = "board_session"

// Options configure a fixture server.
type Options struct {
	Board      *Board
	Identifier string
	Password   string
}

// Server is the fixture board application.
type Server struct {
	board      *Board
	identifier string
	password   string
	templates  *pongo2.TemplateSet
	engine     *gin.Engine
	logger     *log.Logger

	mu       sync.RWMutex
	sessions map[string]string
}

// New builds the server. Missing options fall back to the embedded board and
// the admin / password123 account.
func New(opts Options) (*Server, error) {
	board := opts.Board
	if board == nil {
		var err error
		if board, err = DefaultBoard(); err != nil {
			return nil, err
		}
	}
	if opts.Identifier == "" {
		opts.Identifier = "admin"
	}
	if opts.Password == "" {
		opts.Password = "password123"
	}
	s := &Server{
		board:      board,
		identifier: opts.Identifier,
		password:   opts.Password,
		templates:  newTemplateSet(),
		logger:     log.New(os.Stderr, "[fixture] ", log.LstdFlags),
		sessions:   make(map[string]string),
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/", s.handleIndex)
	r.POST("/login", s.handleLogin)
	r.POST("/logout", s.handleLogout)

	board := r.Group("/board", s.requireSession)
	board.GET("/:slug", s.handleBoard)
	return r
}

// Handler exposes the router for httptest servers.
func (s *Server) Handler() http.Handler { return s.engine }

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Printf("serving board on http://%s/", ln.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) render(c *gin.Context, code int, name string, data pongo2.Context) {
	tmpl, err := s.templates.FromFile(name)
	if err != nil {
		c.String(http.StatusInternalServerError, "Template not found: %s", name)
		return
	}
	c.Status(code)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteWriter(data, c.Writer); err != nil {
		s.logger.Printf("render %s: %v", name, err)
	}
}

func (s *Server) session(c *gin.Context) (string, bool) {
	token, err := c.Cookie(sessionCookie)
	if err != nil || token == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.sessions[token]
	return user, ok
}

func (s *Server) requireSession(c *gin.Context) {
	if _, ok := s.session(c); !ok {
		c.Redirect(http.StatusSeeOther, "/")
		c.Abort()
		return
	}
	c.Next()
}

func (s *Server) handleIndex(c *gin.Context) {
	if _, ok := s.session(c); ok {
		c.Redirect(http.StatusSeeOther, "/board/"+s.board.Home().Slug)
		return
	}
	s.render(c, http.StatusOK, "login.html", pongo2.Context{})
}

func (s *Server) handleLogin(c *gin.Context) {
	identifier := c.PostForm("identifier")
	if identifier != s.identifier || c.PostForm("password") != s.password {
		s.render(c, http.StatusUnauthorized, "login.html", pongo2.Context{
			"error":      "Invalid username or password",
			"identifier": identifier,
		})
		return
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = identifier
	s.mu.Unlock()
	c.SetCookie(sessionCookie, token, 0, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/board/"+s.board.Home().Slug)
}

func (s *Server) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleBoard(c *gin.Context) {
	section, ok := s.board.Section(c.Param("slug"))
	if !ok {
		c.String(http.StatusNotFound, "Unknown board")
		return
	}
	s.render(c, http.StatusOK, "board.html", pongo2.Context{
		"section":  section,
		"sections": s.board.Sections,
	})
}
