package dto

type DeviceRequest struct {
	IP string `json:"ip"`
	UA string `json:"ua"`
}

type EmailAndPasswordRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"-"`
}
