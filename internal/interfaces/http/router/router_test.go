package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewRouter_Defaults(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup_VersionedPrefix(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	system := NewDomainGroup("system", "/system")
	system.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.Register(system)
	r.Setup()

	w := serve(engine, "GET", "/api/v1/system/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", w.Body.String())
}

func TestRouterSetup_EmptyVersionMountsUnderAPI(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion(""))

	payments := NewDomainGroup("payments", "/payments")
	payments.GET("/split/deploy", func(c *gin.Context) {
		c.String(http.StatusOK, "status")
	})
	r.Register(payments)
	r.Setup()

	w := serve(engine, "GET", "/api/payments/split/deploy")
	assert.Equal(t, http.StatusOK, w.Code)

	// The versioned spelling must not exist
	w = serve(engine, "GET", "/api/v1/payments/split/deploy")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDomainGroup_NameAndPrefix(t *testing.T) {
	g := NewDomainGroup("payments", "/payments")
	assert.Equal(t, "payments", g.Name())
	assert.Equal(t, "/payments", g.Prefix())
}

func TestDomainGroup_Methods(t *testing.T) {
	tests := []struct {
		method     string
		register   func(g *DomainGroup, h gin.HandlerFunc)
		path       string
		wantStatus int
	}{
		{
			method:     "GET",
			register:   func(g *DomainGroup, h gin.HandlerFunc) { g.GET("/deploy", h) },
			path:       "/api/payments/deploy",
			wantStatus: http.StatusOK,
		},
		{
			method:     "POST",
			register:   func(g *DomainGroup, h gin.HandlerFunc) { g.POST("/deploy", h) },
			path:       "/api/payments/deploy",
			wantStatus: http.StatusOK,
		},
		{
			method:     "PUT",
			register:   func(g *DomainGroup, h gin.HandlerFunc) { g.PUT("/deploy/:brand", h) },
			path:       "/api/payments/deploy/paynex",
			wantStatus: http.StatusOK,
		},
		{
			method:     "PATCH",
			register:   func(g *DomainGroup, h gin.HandlerFunc) { g.PATCH("/deploy/:brand", h) },
			path:       "/api/payments/deploy/paynex",
			wantStatus: http.StatusOK,
		},
		{
			method:     "DELETE",
			register:   func(g *DomainGroup, h gin.HandlerFunc) { g.DELETE("/deploy/:brand", h) },
			path:       "/api/payments/deploy/paynex",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			engine := gin.New()
			g := NewDomainGroup("payments", "/payments")
			tt.register(g, func(c *gin.Context) {
				c.String(http.StatusOK, "ok")
			})

			g.RegisterRoutes(engine.Group("/api"))

			w := serve(engine, tt.method, tt.path)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("payments", "/payments")
	g.Use(func(c *gin.Context) {
		c.Header("X-Group", "payments")
		c.Next()
	})
	g.GET("/deploy", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	g.RegisterRoutes(engine.Group("/api"))

	w := serve(engine, "GET", "/api/payments/deploy")
	assert.Equal(t, "payments", w.Header().Get("X-Group"))
}

func TestDomainGroup_Subgroups(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("payments", "/payments")

	split := g.Group("split", "/split")
	split.GET("/deploy", func(c *gin.Context) {
		c.String(http.StatusOK, "split status")
	})

	system := g.Group("system", "/system")
	system.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	g.RegisterRoutes(engine.Group("/api"))

	w := serve(engine, "GET", "/api/payments/split/deploy")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "split status", w.Body.String())

	w = serve(engine, "GET", "/api/payments/system/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", w.Body.String())
}

func TestRouter_MultipleGroups(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion(""))

	payments := NewDomainGroup("payments", "/payments")
	payments.GET("/split/deploy", func(c *gin.Context) {
		c.String(http.StatusOK, "split")
	})

	system := NewDomainGroup("system", "/system")
	system.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.Register(payments).Register(system)
	r.Setup()

	w := serve(engine, "GET", "/api/payments/split/deploy")
	assert.Equal(t, "split", w.Body.String())

	w = serve(engine, "GET", "/api/system/health")
	assert.Equal(t, "healthy", w.Body.String())
}

func TestDomainGroup_ChainedRegistration(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion(""))

	g := NewDomainGroup("payments", "/payments")
	g.GET("/split/deploy", func(c *gin.Context) { c.String(http.StatusOK, "get") }).
		POST("/split/deploy", func(c *gin.Context) { c.String(http.StatusOK, "post") }).
		DELETE("/split/deploy", func(c *gin.Context) { c.String(http.StatusOK, "delete") })

	r.Register(g).Setup()

	for _, method := range []string{"GET", "POST", "DELETE"} {
		w := serve(engine, method, "/api/payments/split/deploy")
		assert.Equal(t, http.StatusOK, w.Code, "%s should be routed", method)
	}
}
