// Package router wires every HTTP endpoint of the application into a
// chi mux. Handlers depend on narrow consumer-side interfaces for
// storage and sessions, so tests can substitute either.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/tinyapp/internal/gzippedhttp"
	"github.com/patric-chuzhbe/tinyapp/internal/ipchecker"
	"github.com/patric-chuzhbe/tinyapp/internal/keygen"
	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/session"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
	"github.com/patric-chuzhbe/tinyapp/internal/view"
)

// Response bodies of the error branches. The wording is part of the
// application's external contract and is asserted by the tests.
const (
	msgURLNotFound      = "URL Not Found"
	msgPermissionDenied = "Permission Denied"
	msgFieldsRequired   = "Email and password fields are required."
	msgEmailRegistered  = "Email is already registered."
	msgEmailNotFound    = "Email not found."
	msgWrongPassword    = "Incorrect password."
)

type storage interface {
	CreateUser(ctx context.Context, usr *user.User) (string, error)
	FindUserByID(ctx context.Context, userID string) (*user.User, bool, error)
	FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error)
	InsertURL(ctx context.Context, record models.URLRecord) error
	FindURLByShortKey(ctx context.Context, shortKey string) (models.URLRecord, bool, error)
	UpdateURL(ctx context.Context, shortKey, newLongURL string) error
	DeleteURL(ctx context.Context, shortKey string) error
	FindURLsByOwner(ctx context.Context, ownerUserID string) ([]models.URLRecord, error)
	GetNumberOfShortenedURLs(ctx context.Context) (int64, error)
	GetNumberOfUsers(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type sessionManager interface {
	Establish(response http.ResponseWriter, userID string) error
	Clear(response http.ResponseWriter)
	ResolveUser(h http.Handler) http.Handler
}

// Router holds the dependencies of the HTTP handlers.
type Router struct {
	db           storage
	sessions     sessionManager
	views        *view.Renderer
	ipChecker    *ipchecker.IPChecker
	shortURLBase string
	validate     *validator.Validate
}

// New returns a chi mux with every endpoint and middleware wired.
func New(
	db storage,
	shortURLBase string,
	sessions sessionManager,
	views *view.Renderer,
	ipChecker *ipchecker.IPChecker,
) *chi.Mux {
	handlers := &Router{
		db:           db,
		sessions:     sessions,
		views:        views,
		ipChecker:    ipChecker,
		shortURLBase: shortURLBase,
		validate:     validator.New(),
	}

	router := chi.NewRouter()
	router.Use(logger.WithLoggingHTTPMiddleware)
	router.Use(gzippedhttp.GzipResponse)
	router.Use(sessions.ResolveUser)

	router.Get(`/`, handlers.GetRoot)
	router.Get(`/ping`, handlers.GetPing)
	router.Get(`/api/internal/stats`, handlers.GetInternalStats)

	router.Get(`/u/{shortKey}`, handlers.GetRedirectToLongURL)

	router.Get(`/register`, handlers.GetRegister)
	router.Post(`/register`, handlers.PostRegister)
	router.Get(`/login`, handlers.GetLogin)
	router.Post(`/login`, handlers.PostLogin)
	router.Post(`/logout`, handlers.PostLogout)

	router.Get(`/urls`, handlers.GetUrls)
	router.Get(`/urls/new`, handlers.GetUrlsNew)
	router.Post(`/urls`, handlers.PostUrls)
	router.Get(`/urls/{shortKey}`, handlers.GetUrlsShow)
	router.Post(`/urls/{shortKey}`, handlers.PostUrlsUpdate)
	router.Post(`/urls/{shortKey}/delete`, handlers.PostUrlsDelete)

	return router
}

// GetRoot redirects to the listing for authenticated users and to the
// login form for everyone else.
func (h *Router) GetRoot(response http.ResponseWriter, request *http.Request) {
	if _, ok := session.UserFromContext(request.Context()); ok {
		http.Redirect(response, request, "/urls", http.StatusFound)

		return
	}
	http.Redirect(response, request, "/login", http.StatusFound)
}

// GetUrls renders the authenticated user's URL listing.
func (h *Router) GetUrls(response http.ResponseWriter, request *http.Request) {
	usr, ok := session.UserFromContext(request.Context())
	if !ok {
		http.Redirect(response, request, "/login", http.StatusFound)

		return
	}

	urls, err := h.db.FindURLsByOwner(request.Context(), usr.ID)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.FindURLsByOwner()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}
	sort.Slice(urls, func(i, j int) bool { return urls[i].ShortKey < urls[j].ShortKey })

	h.views.Render(response, http.StatusOK, "urls_index", view.PageData{
		User:         usr,
		Urls:         urls,
		ShortURLBase: h.shortURLBase,
	})
}

// GetUrlsNew renders the URL creation form.
func (h *Router) GetUrlsNew(response http.ResponseWriter, request *http.Request) {
	usr, ok := session.UserFromContext(request.Context())
	if !ok {
		http.Redirect(response, request, "/login", http.StatusFound)

		return
	}

	h.views.Render(response, http.StatusOK, "urls_new", view.PageData{User: usr})
}

// PostUrls creates a new short URL owned by the authenticated user and
// redirects to its details page.
func (h *Router) PostUrls(response http.ResponseWriter, request *http.Request) {
	usr, ok := session.UserFromContext(request.Context())
	if !ok {
		http.Redirect(response, request, "/login", http.StatusFound)

		return
	}

	shortKey, err := keygen.ShortKey()
	if err != nil {
		logger.Log.Debugln("Error calling the `keygen.ShortKey()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	// The generator makes no uniqueness promise; a colliding key
	// overwrites the older record.
	err = h.db.InsertURL(
		request.Context(),
		models.URLRecord{
			ShortKey:    shortKey,
			LongURL:     request.PostFormValue("longURL"),
			OwnerUserID: usr.ID,
		},
	)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.InsertURL()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	http.Redirect(response, request, "/urls/"+shortKey, http.StatusFound)
}

// GetUrlsShow renders a single URL record for its owner.
// Unknown key yields 404, a foreign authenticated user 403, and an
// anonymous caller is sent to the login form.
func (h *Router) GetUrlsShow(response http.ResponseWriter, request *http.Request) {
	shortKey := chi.URLParam(request, "shortKey")
	record, found, err := h.db.FindURLByShortKey(request.Context(), shortKey)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.FindURLByShortKey()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}
	if !found {
		http.Error(response, msgURLNotFound, http.StatusNotFound)

		return
	}

	usr, ok := session.UserFromContext(request.Context())
	if !ok {
		http.Redirect(response, request, "/login", http.StatusFound)

		return
	}
	if record.OwnerUserID != usr.ID {
		http.Error(response, msgPermissionDenied, http.StatusForbidden)

		return
	}

	h.views.Render(response, http.StatusOK, "urls_show", view.PageData{
		User:         usr,
		URL:          &record,
		ShortURLBase: h.shortURLBase,
	})
}

// PostUrlsUpdate replaces the long URL of a record owned by the caller.
func (h *Router) PostUrlsUpdate(response http.ResponseWriter, request *http.Request) {
	record, ok := h.authorizeURLMutation(response, request)
	if !ok {
		return
	}

	err := h.db.UpdateURL(request.Context(), record.ShortKey, request.PostFormValue("longURL"))
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.UpdateURL()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	http.Redirect(response, request, "/urls", http.StatusFound)
}

// PostUrlsDelete removes a record owned by the caller.
func (h *Router) PostUrlsDelete(response http.ResponseWriter, request *http.Request) {
	record, ok := h.authorizeURLMutation(response, request)
	if !ok {
		return
	}

	err := h.db.DeleteURL(request.Context(), record.ShortKey)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.DeleteURL()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	http.Redirect(response, request, "/urls", http.StatusFound)
}

// authorizeURLMutation implements the ownership gate shared by the
// mutating URL endpoints: an unknown key or an anonymous caller yields
// 404, an authenticated non-owner 403. It reports whether the caller may
// proceed.
func (h *Router) authorizeURLMutation(
	response http.ResponseWriter,
	request *http.Request,
) (models.URLRecord, bool) {
	shortKey := chi.URLParam(request, "shortKey")
	record, found, err := h.db.FindURLByShortKey(request.Context(), shortKey)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.FindURLByShortKey()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return models.URLRecord{}, false
	}

	usr, authenticated := session.UserFromContext(request.Context())
	if !found || !authenticated {
		http.Error(response, msgURLNotFound, http.StatusNotFound)

		return models.URLRecord{}, false
	}
	if record.OwnerUserID != usr.ID {
		http.Error(response, msgPermissionDenied, http.StatusForbidden)

		return models.URLRecord{}, false
	}

	return record, true
}

// GetRedirectToLongURL is the public resolution endpoint: it redirects
// to the stored long URL with no ownership check.
func (h *Router) GetRedirectToLongURL(response http.ResponseWriter, request *http.Request) {
	shortKey := chi.URLParam(request, "shortKey")
	record, found, err := h.db.FindURLByShortKey(request.Context(), shortKey)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.FindURLByShortKey()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}
	if !found {
		http.Error(response, msgURLNotFound, http.StatusNotFound)

		return
	}

	http.Redirect(response, request, record.LongURL, http.StatusFound)
}

// GetRegister renders the registration form, or redirects to the listing
// when the caller already has a session.
func (h *Router) GetRegister(response http.ResponseWriter, request *http.Request) {
	if _, ok := session.UserFromContext(request.Context()); ok {
		http.Redirect(response, request, "/urls", http.StatusFound)

		return
	}

	h.views.Render(response, http.StatusOK, "register", view.PageData{})
}

// PostRegister creates an account, establishes a session, and redirects
// to the listing.
func (h *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	form := models.RegisterForm{
		Email:    request.PostFormValue("email"),
		Password: request.PostFormValue("password"),
	}
	if err := h.validate.Struct(form); err != nil {
		http.Error(response, msgFieldsRequired, http.StatusBadRequest)

		return
	}

	_, found, err := h.db.FindUserByEmail(request.Context(), form.Email)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.FindUserByEmail()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}
	if found {
		http.Error(response, msgEmailRegistered, http.StatusBadRequest)

		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Debugln("Error calling the `bcrypt.GenerateFromPassword()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	userID, err := h.db.CreateUser(
		request.Context(),
		&user.User{
			Email:        form.Email,
			PasswordHash: string(passwordHash),
		},
	)
	if err != nil {
		// Backstop for the register race: the storage enforces email
		// uniqueness under its own lock or index.
		if errors.Is(err, models.ErrEmailTaken) {
			http.Error(response, msgEmailRegistered, http.StatusBadRequest)

			return
		}
		logger.Log.Debugln("Error calling the `h.db.CreateUser()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	if err := h.sessions.Establish(response, userID); err != nil {
		logger.Log.Debugln("Error calling the `h.sessions.Establish()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	http.Redirect(response, request, "/urls", http.StatusFound)
}

// GetLogin renders the login form, or redirects to the listing when the
// caller already has a session.
func (h *Router) GetLogin(response http.ResponseWriter, request *http.Request) {
	if _, ok := session.UserFromContext(request.Context()); ok {
		http.Redirect(response, request, "/urls", http.StatusFound)

		return
	}

	h.views.Render(response, http.StatusOK, "login", view.PageData{})
}

// PostLogin authenticates the submitted credentials and establishes a
// session. Both an unknown email and a wrong password yield 403.
func (h *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	form := models.LoginForm{
		Email:    request.PostFormValue("email"),
		Password: request.PostFormValue("password"),
	}

	usr, found, err := h.db.FindUserByEmail(request.Context(), form.Email)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.FindUserByEmail()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}
	if !found {
		http.Error(response, msgEmailNotFound, http.StatusForbidden)

		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(form.Password)); err != nil {
		http.Error(response, msgWrongPassword, http.StatusForbidden)

		return
	}

	if err := h.sessions.Establish(response, usr.ID); err != nil {
		logger.Log.Debugln("Error calling the `h.sessions.Establish()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	http.Redirect(response, request, "/urls", http.StatusFound)
}

// PostLogout clears the session unconditionally and redirects to the
// login form.
func (h *Router) PostLogout(response http.ResponseWriter, request *http.Request) {
	h.sessions.Clear(response)
	http.Redirect(response, request, "/login", http.StatusFound)
}

// GetPing reports whether the storage backend is reachable.
func (h *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := h.db.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `h.db.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}
	response.WriteHeader(http.StatusOK)
}

// GetInternalStats reports directory sizes to callers from the trusted
// subnet. Without a configured subnet the endpoint rejects everyone.
func (h *Router) GetInternalStats(response http.ResponseWriter, request *http.Request) {
	if h.ipChecker.IsTrustedSubnetEmpty() {
		response.WriteHeader(http.StatusForbidden)

		return
	}

	clientIP, err := h.ipChecker.GetClientIP(request)
	if err != nil || !h.ipChecker.Check(clientIP) {
		response.WriteHeader(http.StatusForbidden)

		return
	}

	urlsCount, err := h.db.GetNumberOfShortenedURLs(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.GetNumberOfShortenedURLs()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}
	usersCount, err := h.db.GetNumberOfUsers(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.GetNumberOfUsers()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(response).Encode(models.Stats{Urls: urlsCount, Users: usersCount}); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", zap.Error(err))
	}
}
