package utils

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gomarket-app/backend/internal/config"
	"github.com/gomarket-app/backend/internal/dto"
	"github.com/gomarket-app/backend/internal/hdl"
)

var validate = validator.New()

type Response struct {
	Data any `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ErrorsResponse struct {
	Errors []string `json:"errors"`
}

func SuccessResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(
		&Response{
			Data: data,
		},
	)
}

func StatusResponse(w http.ResponseWriter, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
}

func ErrResponse(w http.ResponseWriter, statusCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(
		&ErrorsResponse{
			Errors: []string{err.Error()},
		},
	)
}

// ParseAndValidate decodes the JSON body into req and runs struct
// validation, writing the 400 response itself on failure.
func ParseAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrResponse(w, http.StatusBadRequest, hdl.ErrDecodeRequest)
		return false
	}

	if err := validate.Struct(req); err != nil {
		errs := make([]string, 0)
		for _, e := range err.(validator.ValidationErrors) {
			errs = append(errs, "field "+e.Field()+" failed on the "+e.Tag()+" rule")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(&ErrorsResponse{Errors: errs})
		return false
	}

	return true
}

func ParsePaginationValues(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = config.DefaultPage
	}

	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size < 1 {
		size = config.DefaultSize
	}

	return page, size
}

func ParseFiltersByURL(r *http.Request) map[string]any {
	filters := make(map[string]any)
	for _, key := range []string{"is_active", "is_email_verified"} {
		if v := r.URL.Query().Get(key); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				filters[key] = parsed
			}
		}
	}

	return filters
}

// ParseDeviceByRequest reads the client fingerprint the device
// middleware attached to the context.
func ParseDeviceByRequest(ctx context.Context) (dto.DeviceRequest, bool) {
	ip, ipOK := ctx.Value(config.IpKey).(string)
	ua, uaOK := ctx.Value(config.UaKey).(string)
	if !ipOK || !uaOK || ip == "" {
		return dto.DeviceRequest{}, false
	}

	return dto.DeviceRequest{IP: ip, UA: ua}, true
}

// SetRefreshCookie delivers the refresh token as an HttpOnly strict
// same-site cookie. The access token is never cookie-stored; it travels
// in the JSON body and lives in memory on the client.
func SetRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(
		w, &http.Cookie{
			Name:     config.RefreshCookieName,
			Value:    token,
			MaxAge:   int(config.RefreshTokenDuration.Seconds()),
			HttpOnly: true,
			Secure:   true,
			Path:     "/",
			SameSite: http.SameSiteStrictMode,
		},
	)
}

// SetCSRFCookie delivers the CSRF companion token. Deliberately not
// HttpOnly: the client must read it and echo it in a request header.
func SetCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(
		w, &http.Cookie{
			Name:     config.CSRFCookieName,
			Value:    token,
			MaxAge:   int(config.CSRFTokenDuration.Seconds()),
			HttpOnly: false,
			Secure:   true,
			Path:     "/",
			SameSite: http.SameSiteStrictMode,
		},
	)
}

func ClearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(
		w, &http.Cookie{
			Name:     config.RefreshCookieName,
			Value:    "",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			Path:     "/",
			SameSite: http.SameSiteStrictMode,
		},
	)

	http.SetCookie(
		w, &http.Cookie{
			Name:     config.CSRFCookieName,
			Value:    "",
			MaxAge:   -1,
			HttpOnly: false,
			Secure:   true,
			Path:     "/",
			SameSite: http.SameSiteStrictMode,
		},
	)
}
