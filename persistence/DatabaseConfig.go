package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

// ParseDatabaseConfigFromEnv reads DB_DRIVER_TYPE (default mysql) and DB_DRIVER_ARGS.
// DB_DRIVER_ARGS example: root:root@(127.0.0.1:3306)/docflow?charset=utf8mb4&parseTime=True&loc=Local
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	driverType := strings.TrimSpace(os.Getenv("DB_DRIVER_TYPE"))
	if driverType == "" {
		driverType = "mysql"
	}
	driverArgs := strings.TrimSpace(os.Getenv("DB_DRIVER_ARGS"))
	if driverArgs == "" {
		return nil, errors.New("DB_DRIVER_ARGS is required")
	}
	return &DatabaseConfig{DriverType: driverType, DriverArgs: driverArgs}, nil
}

// PrepareMysqlDatabase creates the database named in driverArgs when it does not exist.
func PrepareMysqlDatabase(driverArgs string) error {
	cfg, err := mysql.ParseDSN(driverArgs)
	if err != nil {
		return err
	}
	databaseName := cfg.DBName
	if databaseName == "" {
		return errors.New("database name is missing in driver args")
	}
	cfg.DBName = ""

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", databaseName))
	return err
}
