package config

// EnvPrefix is passed to envconfig; explicit envconfig tags on every field
// keep variable names stable regardless of struct layout.
const EnvPrefix = "liveshop"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "LIVESHOP_APP_ENV"
	EnvPort         = "LIVESHOP_APP_PORT"
	EnvRedisURL     = "LIVESHOP_REDIS_URL"
	EnvGCPProjectID = "LIVESHOP_GCP_PROJECT_ID"
)

const (
	EnvDBDSN  = "LIVESHOP_DB_DSN"
	EnvDBHost = "LIVESHOP_DB_HOST"
	EnvDBUser = "LIVESHOP_DB_USER"
	EnvDBName = "LIVESHOP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
