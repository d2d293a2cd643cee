package router

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/tinyapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/tinyapp/internal/ipchecker"
	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/mockstorage"
	"github.com/patric-chuzhbe/tinyapp/internal/session"
	"github.com/patric-chuzhbe/tinyapp/internal/view"
)

const (
	testShortURLBase  = "http://localhost:8080"
	testCookieName    = "tinyapp_session"
	testTrustedSubnet = "127.0.0.0/8"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type initOption func(*initOptions)

type initOptions struct {
	mockStorage   testStorage
	trustedSubnet string
}

func withMockStorage(db testStorage) initOption {
	return func(options *initOptions) {
		options.mockStorage = db
	}
}

func withTrustedSubnet(trustedSubnet string) initOption {
	return func(options *initOptions) {
		options.trustedSubnet = trustedSubnet
	}
}

type testStorage interface {
	storage
	Close() error
}

func setupTestRouter(t *testing.T, optionsProto ...initOption) (*httptest.Server, testStorage) {
	t.Helper()

	options := &initOptions{trustedSubnet: testTrustedSubnet}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := logger.Init("debug")
	require.NoError(t, err)

	var db testStorage
	if options.mockStorage != nil {
		db = options.mockStorage
	} else {
		db, err = memorystorage.New()
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	views, err := view.New()
	require.NoError(t, err)

	checker, err := ipchecker.New(options.trustedSubnet)
	require.NoError(t, err)

	sessions := session.New(db, testCookieName, testSigningKey, time.Hour)

	theRouter := New(db, testShortURLBase, sessions, views, checker)

	server := httptest.NewServer(theRouter)
	t.Cleanup(server.Close)

	return server, db
}

// newTestClient returns a resty client with its own cookie jar that does
// not follow redirects, so tests can assert Location headers.
func newTestClient(t *testing.T, baseURL string) *resty.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return resty.New().
		SetBaseURL(baseURL).
		SetCookieJar(jar).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}))
}

func register(t *testing.T, client *resty.Client, email, password string) *resty.Response {
	t.Helper()

	resp, err := client.R().
		SetFormData(map[string]string{"email": email, "password": password}).
		Post("/register")
	require.NoError(t, err)

	return resp
}

func login(t *testing.T, client *resty.Client, email, password string) *resty.Response {
	t.Helper()

	resp, err := client.R().
		SetFormData(map[string]string{"email": email, "password": password}).
		Post("/login")
	require.NoError(t, err)

	return resp
}

func createURL(t *testing.T, client *resty.Client, longURL string) string {
	t.Helper()

	resp, err := client.R().
		SetFormData(map[string]string{"longURL": longURL}).
		Post("/urls")
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode())

	location := resp.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/urls/"))

	return strings.TrimPrefix(location, "/urls/")
}

func TestGetRootRedirects(t *testing.T) {
	server, _ := setupTestRouter(t)
	client := newTestClient(t, server.URL)

	resp, err := client.R().Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/login", resp.Header().Get("Location"))

	register(t, client, "root@x.com", "pw1")

	resp, err = client.R().Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/urls", resp.Header().Get("Location"))
}

func TestRegisterEstablishesSession(t *testing.T) {
	server, db := setupTestRouter(t)
	client := newTestClient(t, server.URL)

	resp := register(t, client, "a@x.com", "pw1")
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/urls", resp.Header().Get("Location"))

	usr, found, err := db.FindUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, usr.ID)
	assert.NotEqual(t, "pw1", usr.PasswordHash, "the password should be stored hashed")

	resp, err = client.R().Get("/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestRegisterValidation(t *testing.T) {
	server, db := setupTestRouter(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "missing email", email: "", password: "pw1"},
		{name: "missing password", email: "b@x.com", password: ""},
		{name: "missing both", email: "", password: ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, server.URL)
			resp := register(t, client, test.email, test.password)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
			assert.Contains(t, resp.String(), "Email and password fields are required.")
		})
	}

	usersCount, err := db.GetNumberOfUsers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, usersCount)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	server, db := setupTestRouter(t)

	first := newTestClient(t, server.URL)
	resp := register(t, first, "dup@x.com", "pw1")
	require.Equal(t, http.StatusFound, resp.StatusCode())

	second := newTestClient(t, server.URL)
	resp = register(t, second, "dup@x.com", "pw2")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Contains(t, resp.String(), "Email is already registered.")

	usersCount, err := db.GetNumberOfUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), usersCount, "the user directory should be unchanged")
}

func TestLoginFlow(t *testing.T) {
	server, _ := setupTestRouter(t)

	registered := newTestClient(t, server.URL)
	register(t, registered, "a@x.com", "pw1")

	tests := []struct {
		name             string
		email            string
		password         string
		expectedCode     int
		expectedBody     string
		expectedLocation string
	}{
		{
			name:             "correct credentials",
			email:            "a@x.com",
			password:         "pw1",
			expectedCode:     http.StatusFound,
			expectedLocation: "/urls",
		},
		{
			name:         "wrong password",
			email:        "a@x.com",
			password:     "wrong",
			expectedCode: http.StatusForbidden,
			expectedBody: "Incorrect password.",
		},
		{
			name:         "unknown email",
			email:        "nobody@x.com",
			password:     "pw1",
			expectedCode: http.StatusForbidden,
			expectedBody: "Email not found.",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, server.URL)
			resp := login(t, client, test.email, test.password)
			assert.Equal(t, test.expectedCode, resp.StatusCode())
			if test.expectedBody != "" {
				assert.Contains(t, resp.String(), test.expectedBody)
			}
			if test.expectedLocation != "" {
				assert.Equal(t, test.expectedLocation, resp.Header().Get("Location"))
			}
		})
	}
}

func TestLoginAndRegisterPagesRedirectWhenAuthenticated(t *testing.T) {
	server, _ := setupTestRouter(t)
	client := newTestClient(t, server.URL)
	register(t, client, "a@x.com", "pw1")

	for _, path := range []string{"/login", "/register"} {
		resp, err := client.R().Get(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode())
		assert.Equal(t, "/urls", resp.Header().Get("Location"))
	}
}

func TestLogoutClearsSession(t *testing.T) {
	server, _ := setupTestRouter(t)
	client := newTestClient(t, server.URL)
	register(t, client, "a@x.com", "pw1")

	resp, err := client.R().Post("/logout")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/login", resp.Header().Get("Location"))

	resp, err = client.R().Get("/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/login", resp.Header().Get("Location"))
}

func TestAnonymousURLPagesRedirectToLogin(t *testing.T) {
	server, _ := setupTestRouter(t)
	client := newTestClient(t, server.URL)

	for _, path := range []string{"/urls", "/urls/new"} {
		resp, err := client.R().Get(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode())
		assert.Equal(t, "/login", resp.Header().Get("Location"))
	}

	resp, err := client.R().
		SetFormData(map[string]string{"longURL": "https://example.com"}).
		Post("/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/login", resp.Header().Get("Location"))
}

func TestCreateAndListURLs(t *testing.T) {
	server, db := setupTestRouter(t)

	owner := newTestClient(t, server.URL)
	register(t, owner, "owner@x.com", "pw1")

	shortKey := createURL(t, owner, "https://example.com")

	record, found, err := db.FindURLByShortKey(context.Background(), shortKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://example.com", record.LongURL)

	ownerUser, found, err := db.FindUserByEmail(context.Background(), "owner@x.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ownerUser.ID, record.OwnerUserID)

	resp, err := owner.R().Get("/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), shortKey)
	assert.Contains(t, resp.String(), "https://example.com")

	other := newTestClient(t, server.URL)
	register(t, other, "other@x.com", "pw2")

	otherUser, found, err := db.FindUserByEmail(context.Background(), "other@x.com")
	require.NoError(t, err)
	require.True(t, found)

	otherUrls, err := db.FindURLsByOwner(context.Background(), otherUser.ID)
	require.NoError(t, err)
	assert.Empty(t, otherUrls)

	resp, err = other.R().Get("/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.NotContains(t, resp.String(), shortKey)
}

func TestShowURLOwnershipGate(t *testing.T) {
	server, _ := setupTestRouter(t)

	owner := newTestClient(t, server.URL)
	register(t, owner, "owner@x.com", "pw1")
	shortKey := createURL(t, owner, "https://example.com")

	t.Run("owner sees the record", func(t *testing.T) {
		resp, err := owner.R().Get("/urls/" + shortKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Contains(t, resp.String(), "https://example.com")
	})

	t.Run("foreign user is denied", func(t *testing.T) {
		other := newTestClient(t, server.URL)
		register(t, other, "other@x.com", "pw2")

		resp, err := other.R().Get("/urls/" + shortKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode())
		assert.Contains(t, resp.String(), "Permission Denied")
	})

	t.Run("anonymous caller is sent to login", func(t *testing.T) {
		anonymous := newTestClient(t, server.URL)

		resp, err := anonymous.R().Get("/urls/" + shortKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode())
		assert.Equal(t, "/login", resp.Header().Get("Location"))
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		resp, err := owner.R().Get("/urls/nonexistent")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode())
		assert.Contains(t, resp.String(), "URL Not Found")
	})
}

func TestUpdateURL(t *testing.T) {
	server, db := setupTestRouter(t)

	owner := newTestClient(t, server.URL)
	register(t, owner, "owner@x.com", "pw1")
	shortKey := createURL(t, owner, "https://example.com")

	t.Run("owner updates the long URL", func(t *testing.T) {
		resp, err := owner.R().
			SetFormData(map[string]string{"longURL": "https://example.org"}).
			Post("/urls/" + shortKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode())
		assert.Equal(t, "/urls", resp.Header().Get("Location"))

		record, found, err := db.FindURLByShortKey(context.Background(), shortKey)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "https://example.org", record.LongURL)
	})

	t.Run("foreign user is denied and the record is unchanged", func(t *testing.T) {
		other := newTestClient(t, server.URL)
		register(t, other, "other@x.com", "pw2")

		resp, err := other.R().
			SetFormData(map[string]string{"longURL": "https://evil.example"}).
			Post("/urls/" + shortKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode())
		assert.Contains(t, resp.String(), "Permission Denied")

		record, _, err := db.FindURLByShortKey(context.Background(), shortKey)
		require.NoError(t, err)
		assert.Equal(t, "https://example.org", record.LongURL)
	})

	t.Run("anonymous caller gets not found", func(t *testing.T) {
		anonymous := newTestClient(t, server.URL)

		resp, err := anonymous.R().
			SetFormData(map[string]string{"longURL": "https://evil.example"}).
			Post("/urls/" + shortKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		resp, err := owner.R().
			SetFormData(map[string]string{"longURL": "https://example.net"}).
			Post("/urls/nonexistent")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	})
}

func TestDeleteURL(t *testing.T) {
	server, db := setupTestRouter(t)

	owner := newTestClient(t, server.URL)
	register(t, owner, "owner@x.com", "pw1")
	shortKey := createURL(t, owner, "https://example.com")

	t.Run("foreign user is denied and the record survives", func(t *testing.T) {
		other := newTestClient(t, server.URL)
		register(t, other, "other@x.com", "pw2")

		resp, err := other.R().Post("/urls/" + shortKey + "/delete")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode())

		_, found, err := db.FindURLByShortKey(context.Background(), shortKey)
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("owner deletes the record", func(t *testing.T) {
		resp, err := owner.R().Post("/urls/" + shortKey + "/delete")
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode())
		assert.Equal(t, "/urls", resp.Header().Get("Location"))

		_, found, err := db.FindURLByShortKey(context.Background(), shortKey)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("deleting again is not found", func(t *testing.T) {
		resp, err := owner.R().Post("/urls/" + shortKey + "/delete")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	})
}

func TestPublicRedirect(t *testing.T) {
	server, _ := setupTestRouter(t)

	owner := newTestClient(t, server.URL)
	register(t, owner, "owner@x.com", "pw1")
	shortKey := createURL(t, owner, "https://example.com")

	anonymous := newTestClient(t, server.URL)

	t.Run("redirects to the exact long URL", func(t *testing.T) {
		resp, err := anonymous.R().Get("/u/" + shortKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode())
		assert.Equal(t, "https://example.com", resp.Header().Get("Location"))
	})

	t.Run("reflects updates", func(t *testing.T) {
		resp, err := owner.R().
			SetFormData(map[string]string{"longURL": "https://example.org/updated"}).
			Post("/urls/" + shortKey)
		require.NoError(t, err)
		require.Equal(t, http.StatusFound, resp.StatusCode())

		resp, err = anonymous.R().Get("/u/" + shortKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode())
		assert.Equal(t, "https://example.org/updated", resp.Header().Get("Location"))
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		resp, err := anonymous.R().Get("/u/nonexistent")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode())
		assert.Contains(t, resp.String(), "URL Not Found")
	})
}

func TestPing(t *testing.T) {
	server, _ := setupTestRouter(t)
	client := newTestClient(t, server.URL)

	resp, err := client.R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestPingStorageFailure(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("Ping", mock.Anything).Return(errors.New("backend down"))
	db.On("Close").Return(nil)

	server, _ := setupTestRouter(t, withMockStorage(db))
	client := newTestClient(t, server.URL)

	resp, err := client.R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
}

func TestInternalStats(t *testing.T) {
	server, _ := setupTestRouter(t)

	client := newTestClient(t, server.URL)
	register(t, client, "a@x.com", "pw1")
	createURL(t, client, "https://example.com")
	createURL(t, client, "https://example.org")

	t.Run("trusted caller gets counts", func(t *testing.T) {
		resp, err := client.R().Get("/api/internal/stats")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())

		assert.JSONEq(t, `{"urls": 2, "users": 1}`, resp.String())
	})

	t.Run("caller outside the subnet is rejected", func(t *testing.T) {
		resp, err := client.R().
			SetHeader("X-Real-IP", "8.8.8.8").
			Get("/api/internal/stats")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	})
}

func TestInternalStatsDisabledWithoutSubnet(t *testing.T) {
	server, _ := setupTestRouter(t, withTrustedSubnet(""))
	client := newTestClient(t, server.URL)

	resp, err := client.R().Get("/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestGzippedResponse(t *testing.T) {
	server, _ := setupTestRouter(t)

	request, err := http.NewRequest(http.MethodGet, server.URL+"/login", nil)
	require.NoError(t, err)
	request.Header.Set("Accept-Encoding", "gzip")

	transport := &http.Transport{DisableCompression: true}
	resp, err := (&http.Client{Transport: transport}).Do(request)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	reader, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Log in")
}
