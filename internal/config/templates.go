package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Stock Quote Alert Configuration
#
# Every key can be overridden with an environment variable prefixed with
# STOCKALERT_, e.g. STOCKALERT_EMAIL_SMTP_PASS or STOCKALERT_MONITORING_BRAPI_TOKEN.
# A .env file next to this one is loaded first.

[monitoring]
# How often to poll the quote API
check_interval = "1m"
# Brapi base URL
api_base_url = "https://brapi.dev/"
# Brapi token; symbols outside free_symbols need one
brapi_token = ""
# Upper bound for a single quote request
fetch_timeout = "10s"
# Symbols that can be queried without a token
free_symbols = ["PETR4", "MGLU3", "VALE3", "ITUB4"]

[cooldown]
# Suppress repeated alerts of the same kind
enabled = true
# Minimum time between two alerts of the same kind for a symbol
duration = "30m"

[email]
sender_email = ""
smtp_server = ""
# 587 uses STARTTLS, 465 uses implicit TLS
smtp_port = 587
# Display name on the From header
smtp_user = ""
smtp_pass = ""
recipient_email = ""
# Upper bound for a single delivery
send_timeout = "15s"
# When true, alerts are only logged while the settings above are incomplete
# and no cooldown is started
require_configured = false

[logging]
# debug, info, warn, error
level = "info"
console = true
file = false
# file_path = "~/.config/stockquote-alert/logs/stockalert.log"
max_size_mb = 50
max_backups = 5
max_age_days = 30

[metrics]
# Serve Prometheus metrics on /metrics
enabled = false
addr = ":9090"

[store]
# Journal dispatched alerts to SQLite
enabled = true
# path = "~/.config/stockquote-alert/alerts.db"
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	// Restricted permissions, the file may hold SMTP credentials
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
