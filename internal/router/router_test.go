package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/video-rental/internal/config"
	"github.com/iliyamo/video-rental/internal/database"
	"github.com/iliyamo/video-rental/internal/handler"
	"github.com/iliyamo/video-rental/internal/repository"
	"github.com/iliyamo/video-rental/internal/service"
)

const testSecret = "test-secret"

type testServer struct {
	t *testing.T
	e *echo.Echo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := database.Open(database.Options{
		Driver: database.DialectSQLite,
		Path:   filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	titles := repository.NewTitleRepo(store)
	customers := repository.NewCustomerRepo(store)
	rentals := repository.NewRentalRepo(store)
	query := repository.NewRentalQuery(store)
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 5, BcryptCost: bcrypt.MinCost}
	users := repository.NewUserRepo(store)
	_, err = users.EnsureManager(context.Background(), "boss@example.com", "correct-horse", bcrypt.MinCost)
	require.NoError(t, err)

	e := New(Handlers{
		Health:    &handler.HealthHandler{Store: store},
		Auth:      handler.NewAuthHandler(cfg, users, nil),
		Catalog:   handler.NewCatalogHandler(titles, nil),
		Customers: handler.NewCustomerHandler(customers, query, nil),
		Rentals:   handler.NewRentalHandler(service.NewLedger(store, titles, customers, rentals), rentals, query, nil),
	}, Options{JWTSecret: testSecret})
	return &testServer{t: t, e: e}
}

// do sends a JSON request and decodes the JSON response into out when given.
func (s *testServer) do(method, path, token string, body interface{}, out interface{}) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (s *testServer) register(email, role string) string {
	s.t.Helper()
	var resp struct {
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	code := s.do(http.MethodPost, "/v1/auth/register", "",
		map[string]string{"email": email, "password": "correct-horse", "role": role}, &resp)
	require.Equal(s.t, http.StatusCreated, code)
	require.NotEmpty(s.t, resp.Access.Token)
	return resp.Access.Token
}

// manager logs in as the account seeded by newTestServer.
func (s *testServer) manager() string {
	s.t.Helper()
	var resp struct {
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	code := s.do(http.MethodPost, "/v1/auth/login", "",
		map[string]string{"email": "boss@example.com", "password": "correct-horse"}, &resp)
	require.Equal(s.t, http.StatusOK, code)
	return resp.Access.Token
}

type idResp struct {
	ID uint64 `json:"id"`
}

type errResp struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func path(format string, id uint64) string {
	return format + strconv.FormatUint(id, 10)
}

func Test_Health(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil, nil))
}

func Test_Auth_RegisterLoginMe(t *testing.T) {
	s := newTestServer(t)
	s.register("Clerk@Example.com", "clerk")

	var login struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	code := s.do(http.MethodPost, "/v1/auth/login", "",
		map[string]string{"email": "clerk@example.com", "password": "correct-horse"}, &login)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CLERK", login.User.Role)

	var me struct {
		Email string `json:"email"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/me", login.Access.Token, nil, &me))
	assert.Equal(t, "clerk@example.com", me.Email)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/auth/login", "",
		map[string]string{"email": "clerk@example.com", "password": "wrong-password"}, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/auth/login", "",
		map[string]string{"email": "nobody@example.com", "password": "correct-horse"}, nil))
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/v1/auth/register", "",
		map[string]string{"email": "clerk@example.com", "password": "correct-horse"}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/auth/register", "",
		map[string]string{"email": "x@example.com", "password": "correct-horse", "role": "OWNER"}, nil))
}

func Test_Auth_ManagerRoleIsGrantedNotClaimed(t *testing.T) {
	s := newTestServer(t)

	var denied errResp
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/v1/auth/register", "",
		map[string]string{"email": "eve@example.com", "password": "correct-horse", "role": "manager"}, &denied))
	assert.NotEmpty(t, denied.Error)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/auth/login", "",
		map[string]string{"email": "eve@example.com", "password": "correct-horse"}, nil), "no account was created")

	clerk := s.register("clerk@example.com", "")
	var me struct {
		ID   uint64 `json:"id"`
		Role string `json:"role"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/me", clerk, nil, &me))
	assert.Equal(t, "CLERK", me.Role)

	promote := map[string]string{"role": "MANAGER"}
	rolePath := "/v1/staff/" + strconv.FormatUint(me.ID, 10) + "/role"
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, rolePath, clerk, promote, nil), "clerks cannot promote themselves")

	manager := s.manager()
	var promoted struct {
		Role string `json:"role"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, rolePath, manager, promote, &promoted))
	assert.Equal(t, "MANAGER", promoted.Role)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, rolePath, manager, map[string]string{"role": "OWNER"}, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/v1/staff/999/role", manager, promote, nil))

	var boss struct {
		ID uint64 `json:"id"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/me", manager, nil, &boss))
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPut, "/v1/staff/"+strconv.FormatUint(boss.ID, 10)+"/role",
		manager, map[string]string{"role": "CLERK"}, nil))

	var login struct {
		User struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/auth/login", "",
		map[string]string{"email": "clerk@example.com", "password": "correct-horse"}, &login))
	assert.Equal(t, "MANAGER", login.User.Role, "new tokens carry the granted role")
}

func Test_Writes_RequireStaffToken(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/titles", "",
		map[string]string{"name": "Alien"}, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/rentals", "bad-token",
		map[string]uint64{"customer_id": 1, "title_id": 1}, nil))

	clerk := s.register("clerk@example.com", "CLERK")
	var cust idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/customers", clerk,
		map[string]string{"name": "Ann", "contact": "ann@example.com"}, &cust))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, path("/v1/customers/", cust.ID), clerk, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/v1/ledger/check", clerk, nil, nil))

	manager := s.manager()
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path("/v1/customers/", cust.ID), manager, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path("/v1/customers/", cust.ID), "", nil, nil))
}

func Test_RentalFlow(t *testing.T) {
	s := newTestServer(t)
	clerk := s.register("clerk@example.com", "CLERK")
	manager := s.manager()

	var title idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/titles", clerk,
		map[string]interface{}{"name": "Inception", "category": "Sci-Fi", "year": 2010}, &title))
	var ann, bob idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/customers", clerk,
		map[string]string{"name": "Ann", "contact": "ann@example.com"}, &ann))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/customers", clerk,
		map[string]string{"name": "Bob", "contact": "bob@example.com"}, &bob))

	var rental idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/rentals", clerk,
		map[string]uint64{"customer_id": ann.ID, "title_id": title.ID}, &rental))

	var conflict errResp
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/v1/rentals", clerk,
		map[string]uint64{"customer_id": bob.ID, "title_id": title.ID}, &conflict))
	assert.Equal(t, "conflict", conflict.Kind)

	var avail struct {
		Items []idResp `json:"items"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/titles/available", "", nil, &avail))
	assert.Empty(t, avail.Items)

	var active struct {
		Items []struct {
			ID           uint64 `json:"id"`
			CustomerName string `json:"customer_name"`
			TitleName    string `json:"title_name"`
		} `json:"items"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/rentals/active", "", nil, &active))
	require.Len(t, active.Items, 1)
	assert.Equal(t, "Ann", active.Items[0].CustomerName)
	assert.Equal(t, "Inception", active.Items[0].TitleName)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodDelete, path("/v1/customers/", ann.ID), manager, nil, nil))

	returnPath := path("/v1/rentals/", rental.ID) + "/return"
	var ret struct {
		ID       uint64 `json:"id"`
		ClosedAt string `json:"closed_at"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, returnPath, clerk, nil, &ret))
	assert.Equal(t, rental.ID, ret.ID)
	assert.NotEmpty(t, ret.ClosedAt)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, returnPath, clerk, nil, nil))

	var history struct {
		Items []struct {
			ClosedAt *string `json:"closed_at"`
		} `json:"items"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, path("/v1/customers/", ann.ID)+"/rentals", "", nil, &history))
	require.Len(t, history.Items, 1)
	assert.NotNil(t, history.Items[0].ClosedAt)

	var check struct {
		Consistent bool `json:"consistent"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/ledger/check", manager, nil, &check))
	assert.True(t, check.Consistent)
}

func Test_RentalFlow_ValidationAndNotFound(t *testing.T) {
	s := newTestServer(t)
	clerk := s.register("clerk@example.com", "CLERK")

	var e errResp
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/titles", clerk,
		map[string]interface{}{"name": "Old", "year": 1850}, &e))
	assert.Equal(t, "validation", e.Kind)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/customers", clerk,
		map[string]string{"name": "Ann", "contact": "not-an-email"}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/rentals", clerk,
		map[string]uint64{"customer_id": 0, "title_id": 1}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/titles/abc", "", nil, nil))

	var cust idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/customers", clerk,
		map[string]string{"name": "Ann", "contact": "ann@example.com"}, &cust))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/v1/rentals", clerk,
		map[string]uint64{"customer_id": cust.ID, "title_id": 99}, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/titles/99", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/customers/99/rentals", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/v1/rentals/99/return", clerk, nil, nil))
}

func Test_ConcurrentRentalsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	clerk := s.register("clerk@example.com", "CLERK")

	var title, ann, bob idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/titles", clerk,
		map[string]string{"name": "Alien"}, &title))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/customers", clerk,
		map[string]string{"name": "Ann", "contact": "ann@example.com"}, &ann))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/customers", clerk,
		map[string]string{"name": "Bob", "contact": "bob@example.com"}, &bob))

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i, cust := range []uint64{ann.ID, bob.ID} {
		wg.Add(1)
		go func(i int, customerID uint64) {
			defer wg.Done()
			var buf bytes.Buffer
			_ = json.NewEncoder(&buf).Encode(map[string]uint64{"customer_id": customerID, "title_id": title.ID})
			req := httptest.NewRequest(http.MethodPost, "/v1/rentals", &buf)
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			req.Header.Set("Authorization", "Bearer "+clerk)
			rec := httptest.NewRecorder()
			s.e.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i, cust)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusCreated, http.StatusConflict}, codes)
}
