package db

import (
	"io/fs"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiketi/apiserver/config"
	"github.com/tiketi/apiserver/internal/store"
)

func TestPostgresURL(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "tiketi",
		Password: "p@ss word",
		DBName:   "tiketi_db",
	}

	u, err := url.Parse(PostgresURL(cfg))
	require.NoError(t, err)

	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/tiketi_db", u.Path)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))

	cfg.UseSSL = true
	assert.Contains(t, PostgresURL(cfg), "sslmode=require")
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrationsDeclareNamedConstraints(t *testing.T) {
	var all strings.Builder
	err := fs.WalkDir(migrationFiles, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return err
		}
		data, err := fs.ReadFile(migrationFiles, path)
		all.Write(data)
		return err
	})
	require.NoError(t, err)

	for _, name := range []string{
		store.ConstraintUsersEmail,
		store.ConstraintUsersPhone,
		store.ConstraintCategoriesName,
		store.ConstraintTicketsNameEvent,
		store.ConstraintPaymentsMpesa,
		store.ConstraintEventsCategory,
		store.ConstraintTicketsEvent,
		store.ConstraintPaymentsUser,
		store.ConstraintPaymentsTicket,
	} {
		assert.Contains(t, all.String(), name)
	}
}
