package config

const (
	EnvPrefix = "VELOURA"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)
