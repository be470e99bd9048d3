package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// DriverDatabricks targets a Databricks SQL warehouse.
	DriverDatabricks = "databricks"
	// DriverSQLite targets a local SQLite database, for development without a workspace.
	DriverSQLite = "sqlite"

	defaultSQLiteDSN = "file::memory:?cache=shared"
)

// Config configures a Gateway.
type Config struct {
	// WarehouseID pins the warehouse to query and skips discovery. Optional.
	WarehouseID string
	// Host of the workspace. Empty means the SDK credential chain decides (DATABRICKS_HOST, profiles, ...).
	Host string
	// Token is a personal access token. Empty means the SDK credential chain decides.
	Token string
	// Profile selects a profile from ~/.databrickscfg. Optional.
	Profile string
	// Driver selects the session backend: "databricks" (default) or "sqlite".
	Driver string
	// SQLiteDSN is the data source used when Driver is "sqlite".
	SQLiteDSN string
}

// LoadConfigFromEnv builds a Config from the process environment, reading a .env file first when present.
func LoadConfigFromEnv(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unable to load env file %s: %w", file, err)
		}
	}
	config := &Config{
		WarehouseID: strings.TrimSpace(os.Getenv("DATABRICKS_WAREHOUSE_ID")),
		Host:        strings.TrimSpace(os.Getenv("DATABRICKS_HOST")),
		Token:       strings.TrimSpace(os.Getenv("DATABRICKS_TOKEN")),
		Profile:     strings.TrimSpace(os.Getenv("DATABRICKS_CONFIG_PROFILE")),
		Driver:      strings.TrimSpace(os.Getenv("GATEWAY_DRIVER")),
		SQLiteDSN:   strings.TrimSpace(os.Getenv("GATEWAY_SQLITE_DSN")),
	}
	return config, config.Validate()
}

// Validate fills defaults and rejects unsupported settings.
func (c *Config) Validate() error {
	c.Driver = strings.ToLower(c.Driver)
	switch c.Driver {
	case "":
		c.Driver = DriverDatabricks
	case DriverDatabricks:
	case DriverSQLite:
		if c.SQLiteDSN == "" {
			c.SQLiteDSN = defaultSQLiteDSN
		}
	default:
		return fmt.Errorf("unsupported driver %q, only %s (default) and %s are allowed", c.Driver, DriverDatabricks, DriverSQLite)
	}
	return nil
}
