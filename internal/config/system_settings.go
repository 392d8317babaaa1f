package config

import (
	"os"
	"strconv"
)

const DATABASE_TYPE = "DFLOW_DATABASE_TYPE"
const DATABASE_URL = "DFLOW_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "DFLOW_DATABASE_SQLLITE_FILE_NAME"
const SERVER_WEB_PORT = "DFLOW_SERVER_WEB_PORT"
const WEB_SESSION_EXPIRY_HOURS = "DFLOW_WEB_SESSION_EXPIRY_HOURS"
const TEMPLATES_FILE = "DFLOW_TEMPLATES_FILE" //optional JSON file replacing the built-in approval templates
const ADMIN_PASSWORD = "DFLOW_ADMIN_PASSWORD" //initial admin password used when seeding an empty users table

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val != "" {
		intValue, _ := strconv.Atoi(val)
		return intValue
	}
	return 0
}

func GetSystemSettingString(settingKey string) string {
	val := os.Getenv(settingKey)
	if val != "" {
		return val
	}
	if settingKey == SERVER_WEB_PORT {
		return "8080"
	}
	if settingKey == WEB_SESSION_EXPIRY_HOURS {
		return "1"
	}
	if settingKey == DATABASE_SQLLITE_FILE_NAME {
		return "./dflow.db"
	}
	return ""
}
