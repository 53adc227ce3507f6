package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/models"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Wrap(errors.New("bad signature"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	return v.claims, nil
}

type observerStub struct {
	paths    []string
	statuses []int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.paths = append(o.paths, path)
	o.statuses = append(o.statuses, status)
}

func newRouter(role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := JWT(validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: role}})
	r.GET("/plans", auth, RequireRoles(PlanReaders...), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/plans", auth, RequireRoles(PlanEditors...), func(c *gin.Context) {
		if claims := CurrentClaims(c); claims == nil || claims.UserID != "u1" {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusCreated)
	})
	return r
}

func doRequest(r http.Handler, method, auth string) int {
	req := httptest.NewRequest(method, "/plans", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestJWTAndRoles(t *testing.T) {
	invigilator := newRouter(models.RoleInvigilator)
	assert.Equal(t, http.StatusUnauthorized, doRequest(invigilator, http.MethodGet, ""))
	assert.Equal(t, http.StatusUnauthorized, doRequest(invigilator, http.MethodGet, "Token good"))
	assert.Equal(t, http.StatusUnauthorized, doRequest(invigilator, http.MethodGet, "Bearer bad"))
	assert.Equal(t, http.StatusOK, doRequest(invigilator, http.MethodGet, "Bearer good"))
	assert.Equal(t, http.StatusForbidden, doRequest(invigilator, http.MethodPost, "Bearer good"))

	admin := newRouter(models.RoleAdmin)
	assert.Equal(t, http.StatusCreated, doRequest(admin, http.MethodPost, "bearer good"))
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/plans", RequireRoles(PlanReaders...), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, ""))
}

func TestMetricsLabelsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/plans/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/plans/42", "/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"/plans/:id", "unmatched"}, observer.paths)
	assert.Equal(t, []int{http.StatusOK, http.StatusNotFound}, observer.statuses)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, meta)
	assert.Equal(t, true, meta[cacheHitKey])
	assert.Contains(t, meta, processingKey)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ExtractMeta(c))
}
