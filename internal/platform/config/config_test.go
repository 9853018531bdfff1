package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "ldap://localhost:389", cfg.LDAPURL)
	assert.Equal(t, "dc=example,dc=com", cfg.BaseDN)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 10*time.Second, cfg.LDAPTimeout)
	assert.Empty(t, cfg.KafkaBrokers, "audit disabled without brokers")
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MEETDIR_LDAP_URL", "ldaps://dir.internal:636")
	t.Setenv("MEETDIR_BASE_DN", "dc=meet,dc=coop")
	t.Setenv("MEETDIR_LDAP_TIMEOUT", "3s")
	t.Setenv("MEETDIR_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg := FromEnv()

	assert.Equal(t, "ldaps://dir.internal:636", cfg.LDAPURL)
	assert.Equal(t, "dc=meet,dc=coop", cfg.BaseDN)
	assert.Equal(t, 3*time.Second, cfg.LDAPTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}
