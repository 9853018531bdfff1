package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the daemon needs from its environment.
type Config struct {
	// LDAPURL is the directory endpoint, ldap:// or ldaps://.
	LDAPURL      string
	BindDN       string
	BindPassword string
	// BaseDN is the directory root all namespaces hang under.
	BaseDN string
	// LDAPTimeout bounds each wire operation.
	LDAPTimeout time.Duration

	// MetricsAddr is where the Prometheus endpoint listens.
	MetricsAddr string

	// KafkaBrokers is the audit sink's seed broker list; empty disables
	// audit publishing.
	KafkaBrokers []string
	AuditTopic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		LDAPURL:      envOr("MEETDIR_LDAP_URL", "ldap://localhost:389"),
		BindDN:       os.Getenv("MEETDIR_BIND_DN"),
		BindPassword: os.Getenv("MEETDIR_BIND_PASSWORD"),
		BaseDN:       envOr("MEETDIR_BASE_DN", "dc=example,dc=com"),
		LDAPTimeout:  10 * time.Second,
		MetricsAddr:  envOr("MEETDIR_METRICS_ADDR", ":9090"),
		AuditTopic:   envOr("MEETDIR_AUDIT_TOPIC", "meetdir.audit"),
	}
	if brokers := os.Getenv("MEETDIR_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if d, err := time.ParseDuration(os.Getenv("MEETDIR_LDAP_TIMEOUT")); err == nil {
		cfg.LDAPTimeout = d
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
