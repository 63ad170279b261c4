package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "POS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "POS_APP_ENV"
	EnvPort     = "POS_APP_PORT"
	EnvLogLevel = "POS_LOG_LEVEL"

	EnvDBDSN    = "POS_DB_DSN"
	EnvDBDriver = "POS_DB_DRIVER"
	EnvDBHost   = "POS_DB_HOST"
	EnvDBUser   = "POS_DB_USER"
	EnvDBName   = "POS_DB_NAME"

	EnvRedisURL = "POS_REDIS_URL"

	EnvJWTSecret              = "POS_JWT_SECRET"
	EnvJWTIssuer              = "POS_JWT_ISSUER"
	EnvJWTExpMins             = "POS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "POS_REFRESH_TOKEN_TTL_MINUTES"

	EnvSalesTaxRateBps       = "POS_SALES_TAX_RATE_BPS"
	EnvSalesTicketPrefix     = "POS_SALES_TICKET_PREFIX"
	EnvSalesTicketMaxAttempt = "POS_SALES_TICKET_MAX_ATTEMPTS"

	EnvLowStockThreshold = "POS_INVENTORY_LOW_STOCK_THRESHOLD"

	EnvGCPProjectID       = "POS_GCP_PROJECT_ID"
	EnvPubSubSalesTopic   = "POS_PUBSUB_SALES_TOPIC"
	EnvPubSubSalesSub     = "POS_PUBSUB_SALES_SUBSCRIPTION"
	EnvPubSubInventoryTop = "POS_PUBSUB_INVENTORY_TOPIC"
	EnvBigQueryDataset    = "POS_BIGQUERY_DATASET"

	EnvOutboxBatchSize   = "POS_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxMaxAttempts = "POS_OUTBOX_MAX_ATTEMPTS"
)

// legacyDBEnvVars must all be set when POS_DB_DSN is absent.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
