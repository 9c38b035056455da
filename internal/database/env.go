package database

import (
	"fmt"
	"strconv"
	"strings"
)

// Environment variables the proxy manager container carries for its own
// database connection.
var requiredEnvVars = []string{
	"DB_MYSQL_HOST",
	"DB_MYSQL_PORT",
	"DB_MYSQL_NAME",
	"DB_MYSQL_USER",
	"DB_MYSQL_PASSWORD",
}

// DSNFromEnv builds a MySQL DSN from the container's environment. All five
// DB_MYSQL_* variables must be present.
func DSNFromEnv(env map[string]string) (string, error) {
	var missing []string
	for _, key := range requiredEnvVars {
		if env[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables in container: %s", strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(env["DB_MYSQL_PORT"])
	if err != nil {
		return "", fmt.Errorf("invalid DB_MYSQL_PORT '%s': %w", env["DB_MYSQL_PORT"], err)
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		env["DB_MYSQL_USER"], env["DB_MYSQL_PASSWORD"], env["DB_MYSQL_HOST"], port, env["DB_MYSQL_NAME"]), nil
}
