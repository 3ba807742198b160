package config

import "time"

type ctxKey string

const (
	UidKey   ctxKey = "uid"
	EmailKey ctxKey = "email"
	JtiKey   ctxKey = "jti"
	IpKey    ctxKey = "ip"
	UaKey    ctxKey = "ua"
)

const (
	DefaultPage      = 1
	DefaultSize      = 40
	DefaultCacheTime = time.Hour
	MinCacheTime     = time.Minute * 5
	MaxMemory        = 10 << 20 // 10 MB
)

// Token lifetimes. The codec is the single source of truth for both;
// cookie max-ages and store expiries derive from these.
const (
	RefreshCookieName    = "refreshToken"
	CSRFCookieName       = "csrfToken"
	CSRFHeaderName       = "X-CSRF-Token"
	AccessTokenHeader    = "X-Access-Token"
	AccessTokenDuration  = time.Minute * 15
	RefreshTokenDuration = time.Hour * 24 * 7
	CSRFTokenDuration    = time.Hour * 24
)

const (
	DBTimeout      = time.Second * 5
	SweepInterval  = time.Hour * 24
	SweepRetention = time.Hour * 24 * 7
)
