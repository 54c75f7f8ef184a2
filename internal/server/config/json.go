package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/workdeck/workdeck/internal/flagx"
	"github.com/workdeck/workdeck/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON config
// files. Interval fields use timex.Duration, which accepts both string
// values such as "30s" and integer nanoseconds. After unmarshalling, the
// fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP           string         `json:"endpoint_addr_http"`
	WebdavAddr                 string         `json:"webdav_addr"`
	WebdavRoot                 string         `json:"webdav_root"`
	DatabaseDSN                string         `json:"database_dsn"`
	SecretKey                  string         `json:"secret_key"`
	AccessTokenValidity        timex.Duration `json:"access_token_validity"`
	AuthTokenValiditySeconds   int64          `json:"auth_token_validity_seconds"`
	EmailNotificationActivated bool           `json:"email_notification_activated"`
	SMTPHost                   string         `json:"smtp_host"`
	SMTPPort                   int            `json:"smtp_port"`
	SMTPUsername               string         `json:"smtp_username"`
	SMTPPassword               string         `json:"smtp_password"`
	SMTPFrom                   string         `json:"smtp_from"`
	SMTPFromName               string         `json:"smtp_from_name"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path comes from the -c or -config flags; when neither
// is set, no file is loaded. An unreadable or invalid file panics, as a
// broken explicit configuration should never start the server.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.WebdavAddr = c.WebdavAddr
	config.WebdavRoot = c.WebdavRoot
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidity = c.AccessTokenValidity.Duration
	config.AuthTokenValidity = time.Duration(c.AuthTokenValiditySeconds) * time.Second
	config.EmailNotificationActivated = c.EmailNotificationActivated
	config.SMTPHost = c.SMTPHost
	config.SMTPPort = c.SMTPPort
	config.SMTPUsername = c.SMTPUsername
	config.SMTPPassword = c.SMTPPassword
	config.SMTPFrom = c.SMTPFrom
	config.SMTPFromName = c.SMTPFromName
}
