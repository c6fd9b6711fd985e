package config

const (
	// EnvPrefix is empty because every variable carries the BEATMARKET_ prefix
	// in its envconfig tag already.
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "BEATMARKET_DB_DSN"
	EnvDBHost = "BEATMARKET_DB_HOST"
	EnvDBUser = "BEATMARKET_DB_USER"
	EnvDBName = "BEATMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
