package http

import (
	"errors"
	"net/http"

	"github.com/gomarket-app/backend/internal/auth"
	"github.com/gomarket-app/backend/internal/auth/jwt"
	"github.com/gomarket-app/backend/internal/config"
	"github.com/gomarket-app/backend/internal/ctrl"
	"github.com/gomarket-app/backend/internal/dto"
	"github.com/gomarket-app/backend/internal/hdl"
	mid "github.com/gomarket-app/backend/internal/hdl/http/middleware"
	"github.com/gomarket-app/backend/internal/hdl/http/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (h *Handler) RegisterAuthRoutes() {
	h.Router.With(mid.Device, mid.Throttle(h.gates.Login)).
		Post("/auth/jwt", h.authenticate)
	h.Router.With(mid.Device, mid.Throttle(h.gates.Register)).
		Post("/auth/register", h.register)
	h.Router.With(mid.Device, mid.Throttle(h.gates.Refresh), mid.CSRF).
		Post("/auth/jwt/refresh", h.refresh)

	// CSRF runs before Auth so a forged cross-site request can never
	// trigger the middleware's transparent rotation.
	h.Router.With(mid.Device, mid.CSRF, mid.Auth(h.au, h.ctrl)).
		Post("/auth/logout", h.logout)
	h.Router.With(mid.Device, mid.CSRF, mid.Auth(h.au, h.ctrl)).
		Post("/auth/logout/all", h.logoutAll)
}

func isAuthFailure(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired) ||
		errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrTokenRevoked) ||
		errors.Is(err, auth.ErrReuseDetected)
}

// setSessionCookies delivers the refresh token and a fresh CSRF token;
// the access token goes back in the JSON body only.
func setSessionCookies(w http.ResponseWriter, refresh string) bool {
	csrf, err := auth.NewCSRFToken()
	if err != nil {
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return false
	}

	utils.SetRefreshCookie(w, refresh)
	utils.SetCSRFCookie(w, csrf)
	return true
}

// authenticate godoc
//
//	@Summary		Authenticate using email & password
//	@Description	Verify credentials, set refresh and CSRF cookies, return access token
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			User-Agent	header	string						true	"Client User-Agent"
//	@Param			body		body	dto.EmailAndPasswordRequest	true	"Login credentials"
//	@Success		200			{object}	dto.TokenPair
//	@Failure		400			{object}	utils.ErrorsResponse
//	@Failure		401			{object}	utils.ErrorsResponse
//	@Failure		429			{object}	utils.ErrorsResponse
//	@Failure		500			{object}	utils.ErrorsResponse
//	@Router			/auth/jwt [post]
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) {
	d, ok := utils.ParseDeviceByRequest(r.Context())
	if !ok {
		utils.ErrResponse(w, http.StatusBadRequest, ErrNoDeviceInfo)
		return
	}

	req := &dto.EmailAndPasswordRequest{}
	if ok = utils.ParseAndValidate(w, r, req); !ok {
		return
	}

	res, err := h.ctrl.Authenticate(r.Context(), &d, req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			utils.ErrResponse(w, http.StatusUnauthorized, auth.ErrInvalidCredentials)
			return
		}

		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	if !setSessionCookies(w, res.Refresh) {
		return
	}

	utils.SuccessResponse(w, http.StatusOK, res)
}

// register godoc
//
//	@Summary		Register a new user
//	@Description	Create an account and start the first session
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.RegisterRequest	true	"Registration data"
//	@Success		201		{object}	dto.TokenPair
//	@Failure		400		{object}	utils.ErrorsResponse
//	@Failure		409		{object}	utils.ErrorsResponse
//	@Failure		429		{object}	utils.ErrorsResponse
//	@Failure		500		{object}	utils.ErrorsResponse
//	@Router			/auth/register [post]
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	d, ok := utils.ParseDeviceByRequest(r.Context())
	if !ok {
		utils.ErrResponse(w, http.StatusBadRequest, ErrNoDeviceInfo)
		return
	}

	req := &dto.RegisterRequest{}
	if ok = utils.ParseAndValidate(w, r, req); !ok {
		return
	}

	res, err := h.ctrl.Register(r.Context(), &d, req)
	if err != nil {
		if errors.Is(err, ctrl.ErrAlreadyExists) {
			utils.ErrResponse(w, http.StatusConflict, err)
			return
		}

		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	if !setSessionCookies(w, res.Refresh) {
		return
	}

	utils.SuccessResponse(w, http.StatusCreated, res)
}

// refresh godoc
//
//	@Summary		Rotate the refresh token
//	@Description	Exchange the refresh cookie for a new token pair
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	dto.TokenPair
//	@Failure		401	{object}	utils.ErrorsResponse
//	@Failure		429	{object}	utils.ErrorsResponse
//	@Failure		500	{object}	utils.ErrorsResponse
//	@Router			/auth/jwt/refresh [post]
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	d, ok := utils.ParseDeviceByRequest(r.Context())
	if !ok {
		utils.ErrResponse(w, http.StatusBadRequest, ErrNoDeviceInfo)
		return
	}

	cookie, err := r.Cookie(config.RefreshCookieName)
	if err != nil {
		utils.ErrResponse(w, http.StatusUnauthorized, hdl.ErrNotAuthorized)
		return
	}

	res, err := h.ctrl.Rotate(r.Context(), &d, cookie.Value)
	if err != nil {
		// Reuse detection intentionally looks identical to an ordinary
		// rejection from the outside; the incident details are logged.
		if errors.Is(err, ctrl.ErrForbidden) {
			utils.ErrResponse(w, http.StatusForbidden, hdl.ErrNotAuthorized)
			return
		}

		if isAuthFailure(err) {
			utils.ClearAuthCookies(w)
			utils.ErrResponse(w, http.StatusUnauthorized, hdl.ErrNotAuthorized)
			return
		}

		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	if !setSessionCookies(w, res.Refresh) {
		return
	}

	utils.SuccessResponse(w, http.StatusOK, res)
}

// logout godoc
//
//	@Summary		Logout user
//	@Description	Revoke the current session's refresh token, clear cookies
//	@Tags			Authentication
//	@Produce		json
//	@Param			Authorization	header	string	true	"Authorization token"
//	@Success		200	"Revoked refresh token, cleared cookies"
//	@Failure		401	{object}	utils.ErrorsResponse
//	@Failure		403	{object}	utils.ErrorsResponse
//	@Failure		404	{object}	utils.ErrorsResponse
//	@Failure		500	{object}	utils.ErrorsResponse
//	@Router			/auth/logout [post]
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	uid, ok := r.Context().Value(config.UidKey).(uuid.UUID)
	if !ok {
		zap.L().Error(
			hdl.ErrFailedToGetUUID.Error(),
			zap.Any("uid", r.Context().Value(config.UidKey)),
		)
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	jti, ok := r.Context().Value(config.JtiKey).(uuid.UUID)
	if !ok {
		utils.ErrResponse(w, http.StatusBadRequest, ErrNoSessionInfo)
		return
	}

	if err := h.ctrl.Logout(r.Context(), uid, jti); err != nil {
		switch {
		case errors.Is(err, ctrl.ErrForbidden):
			utils.ErrResponse(w, http.StatusForbidden, err)
		case errors.Is(err, ctrl.ErrNotFound):
			utils.ErrResponse(w, http.StatusNotFound, err)
		default:
			utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		}
		return
	}

	utils.ClearAuthCookies(w)
	utils.StatusResponse(w, http.StatusOK)
}

// logoutAll godoc
//
//	@Summary		Logout everywhere
//	@Description	Revoke every active session of the authenticated user
//	@Tags			Authentication
//	@Produce		json
//	@Param			Authorization	header	string	true	"Authorization token"
//	@Success		200	"Revoked all refresh tokens, cleared cookies"
//	@Failure		401	{object}	utils.ErrorsResponse
//	@Failure		500	{object}	utils.ErrorsResponse
//	@Router			/auth/logout/all [post]
func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	uid, ok := r.Context().Value(config.UidKey).(uuid.UUID)
	if !ok {
		zap.L().Error(
			hdl.ErrFailedToGetUUID.Error(),
			zap.Any("uid", r.Context().Value(config.UidKey)),
		)
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	if err := h.ctrl.LogoutAll(r.Context(), uid); err != nil {
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	utils.ClearAuthCookies(w)
	utils.StatusResponse(w, http.StatusOK)
}
