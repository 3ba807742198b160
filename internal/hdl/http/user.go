package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gomarket-app/backend/internal/config"
	"github.com/gomarket-app/backend/internal/ctrl"
	"github.com/gomarket-app/backend/internal/dto"
	"github.com/gomarket-app/backend/internal/hdl"
	mid "github.com/gomarket-app/backend/internal/hdl/http/middleware"
	"github.com/gomarket-app/backend/internal/hdl/http/utils"
	"github.com/gomarket-app/backend/internal/repo/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (h *Handler) RegisterUserRoutes() {
	h.Router.Post("/users/exists", h.existsUser)
	h.Router.With(mid.Device, mid.Auth(h.au, h.ctrl)).Get("/users/me", h.getMe)
	h.Router.Get("/users", h.listUsers)
	h.Router.Post("/users", h.createUser)
	h.Router.Get("/users/{id}", h.getUser)
	h.Router.With(mid.Device, mid.CSRF, mid.Auth(h.au, h.ctrl)).Put("/users/{id}", h.updateUser)
	h.Router.With(mid.Device, mid.CSRF, mid.Auth(h.au, h.ctrl)).Delete("/users/{id}", h.deleteUser)
}

// existsUser godoc
//
//	@Summary		Check if a user exists by email
//	@Description	Returns whether an account with the email exists
//	@Tags			User
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.CheckEmailRequest	true	"Email payload"
//	@Success		200		{object}	dto.ExistsUserResponse
//	@Failure		400		{object}	utils.ErrorsResponse
//	@Failure		500		{object}	utils.ErrorsResponse	"internal error"
//	@Router			/users/exists [post]
func (h *Handler) existsUser(w http.ResponseWriter, r *http.Request) {
	req := &dto.CheckEmailRequest{}
	if ok := utils.ParseAndValidate(w, r, req); !ok {
		return
	}

	res, err := h.ctrl.IsUserExist(r.Context(), req.Email)
	if err != nil {
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	utils.SuccessResponse(w, http.StatusOK, res)
}

// listUsers godoc
//
//	@Summary		List all users
//	@Description	Retrieve a paginated list of users with optional filters
//	@Tags			User
//	@Accept			json
//	@Produce		json
//	@Param			page	query		int	false	"Page number"	default(1)
//	@Param			size	query		int	false	"Page size"		default(40)
//	@Success		200		{array}		dto.PaginatedUserResponse
//	@Failure		500		{object}	utils.ErrorsResponse	"internal error"
//	@Router			/users [get]
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, size := utils.ParsePaginationValues(r)
	filters := utils.ParseFiltersByURL(r)

	res, err := h.ctrl.ListUsers(r.Context(), page, size, filters)
	if err != nil {
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	utils.SuccessResponse(w, http.StatusOK, res)
}

// getMe godoc
//
//	@Summary		Retrieve current user profile
//	@Description	Returns the authenticated user's profile
//	@Tags			User
//	@Produce		json
//	@Success		200	{object}	models.User
//	@Failure		401	{object}	utils.ErrorsResponse	"unauthorized"
//	@Failure		404	{object}	utils.ErrorsResponse	"user not found"
//	@Failure		500	{object}	utils.ErrorsResponse	"internal error"
//	@Router			/users/me [get]
func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := r.Context().Value(config.UidKey).(uuid.UUID)
	if !ok || uid == uuid.Nil {
		zap.L().Error(
			hdl.ErrFailedToGetUUID.Error(),
			zap.Any("uid", r.Context().Value(config.UidKey)),
		)
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	res, err := h.ctrl.GetUserByID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, ctrl.ErrNotFound) {
			utils.ErrResponse(w, http.StatusNotFound, err)
			return
		}
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	utils.SuccessResponse(w, http.StatusOK, res)
}

// createUser godoc
//
//	@Summary		Create user
//	@Description	Create an account with an optional avatar file
//	@Tags			User
//	@Accept			mpfd
//	@Produce		json
//	@Success		201	{object}	dto.CreateUserResponse
//	@Failure		400	{object}	utils.ErrorsResponse
//	@Failure		409	{object}	utils.ErrorsResponse
//	@Failure		500	{object}	utils.ErrorsResponse	"internal error"
//	@Router			/users [post]
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.MaxMemory); err != nil {
		utils.ErrResponse(w, http.StatusBadRequest, hdl.ErrFileTooLarge)
		return
	}

	req := &dto.CreateUserRequest{}
	if err := json.Unmarshal([]byte(r.FormValue("payload")), req); err != nil {
		utils.ErrResponse(w, http.StatusBadRequest, hdl.ErrDecodeRequest)
		return
	}

	var upload *s3.UploadFileRequest
	if file, header, fErr := r.FormFile("avatar"); fErr == nil {
		defer file.Close()
		upload = &s3.UploadFileRequest{
			Name:        header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Reader:      file,
		}
	}

	res, err := h.ctrl.CreateUser(r.Context(), req, upload)
	if err != nil {
		if errors.Is(err, ctrl.ErrAlreadyExists) {
			utils.ErrResponse(w, http.StatusConflict, err)
			return
		}
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	utils.SuccessResponse(w, http.StatusCreated, res)
}

// getUser godoc
//
//	@Summary		Get user by ID
//	@Tags			User
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	models.User
//	@Failure		400	{object}	utils.ErrorsResponse
//	@Failure		404	{object}	utils.ErrorsResponse	"user not found"
//	@Failure		500	{object}	utils.ErrorsResponse	"internal error"
//	@Router			/users/{id} [get]
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	uid, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.ErrResponse(w, http.StatusBadRequest, hdl.ErrFailedToParseUUID)
		return
	}

	res, err := h.ctrl.GetUserByID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, ctrl.ErrNotFound) {
			utils.ErrResponse(w, http.StatusNotFound, err)
			return
		}
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	utils.SuccessResponse(w, http.StatusOK, res)
}

// updateUser godoc
//
//	@Summary		Update user
//	@Description	Update profile fields and optionally the avatar file
//	@Tags			User
//	@Accept			mpfd
//	@Produce		json
//	@Param			id	path	string	true	"User ID"
//	@Success		200	"Updated"
//	@Failure		400	{object}	utils.ErrorsResponse
//	@Failure		403	{object}	utils.ErrorsResponse
//	@Failure		404	{object}	utils.ErrorsResponse
//	@Failure		500	{object}	utils.ErrorsResponse	"internal error"
//	@Router			/users/{id} [put]
func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	uid, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.ErrResponse(w, http.StatusBadRequest, hdl.ErrFailedToParseUUID)
		return
	}

	// Only the owner may touch the profile.
	if actor, ok := r.Context().Value(config.UidKey).(uuid.UUID); !ok || actor != uid {
		utils.ErrResponse(w, http.StatusForbidden, ctrl.ErrForbidden)
		return
	}

	if err = r.ParseMultipartForm(config.MaxMemory); err != nil {
		utils.ErrResponse(w, http.StatusBadRequest, hdl.ErrFileTooLarge)
		return
	}

	req := &dto.UpdateUserRequest{}
	if err = json.Unmarshal([]byte(r.FormValue("payload")), req); err != nil {
		utils.ErrResponse(w, http.StatusBadRequest, hdl.ErrDecodeRequest)
		return
	}

	var upload *s3.UploadFileRequest
	if file, header, fErr := r.FormFile("avatar"); fErr == nil {
		defer file.Close()
		upload = &s3.UploadFileRequest{
			Name:        uid.String() + "/" + header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Reader:      file,
		}
	}

	if err = h.ctrl.UpdateUser(r.Context(), uid, req, upload); err != nil {
		if errors.Is(err, ctrl.ErrNotFound) {
			utils.ErrResponse(w, http.StatusNotFound, err)
			return
		}
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	utils.StatusResponse(w, http.StatusOK)
}

// deleteUser godoc
//
//	@Summary		Delete user
//	@Description	Delete the account and revoke all its sessions
//	@Tags			User
//	@Produce		json
//	@Param			id	path	string	true	"User ID"
//	@Success		204	"Deleted"
//	@Failure		400	{object}	utils.ErrorsResponse
//	@Failure		403	{object}	utils.ErrorsResponse
//	@Failure		404	{object}	utils.ErrorsResponse
//	@Failure		500	{object}	utils.ErrorsResponse	"internal error"
//	@Router			/users/{id} [delete]
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	uid, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.ErrResponse(w, http.StatusBadRequest, hdl.ErrFailedToParseUUID)
		return
	}

	if actor, ok := r.Context().Value(config.UidKey).(uuid.UUID); !ok || actor != uid {
		utils.ErrResponse(w, http.StatusForbidden, ctrl.ErrForbidden)
		return
	}

	if err = h.ctrl.DeleteUser(r.Context(), uid); err != nil {
		if errors.Is(err, ctrl.ErrNotFound) {
			utils.ErrResponse(w, http.StatusNotFound, err)
			return
		}
		utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
		return
	}

	utils.ClearAuthCookies(w)
	utils.StatusResponse(w, http.StatusNoContent)
}
