// Package test holds the driver-level tests of the store. They run against SQLite by
// default; set DRIVER=postgres and POSTGRES_TEST_DSN to run them against PostgreSQL.
package test

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/lithammer/shortuuid/v4"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tutormind/internal/profile"
	"github.com/hrygo/tutormind/store"
	"github.com/hrygo/tutormind/store/db"
)

func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}

func getTestingProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		Mode:            "dev",
		Driver:          getDriverFromEnv(),
		MaxSummaryRunes: 4000,
	}
	switch p.Driver {
	case "sqlite":
		p.Data = t.TempDir()
		p.DSN = filepath.Join(p.Data, "tutormind_test.db")
	case "postgres":
		p.DSN = os.Getenv("POSTGRES_TEST_DSN")
		if p.DSN == "" {
			t.Skip("POSTGRES_TEST_DSN is not set")
		}
	default:
		t.Fatalf("unsupported driver %q", p.Driver)
	}
	return p
}

// NewTestingStore opens a migrated store that is closed when the test ends.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	p := getTestingProfile(t)
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	ts := store.New(driver, p)
	require.NoError(t, ts.Migrate(ctx))
	t.Cleanup(func() {
		_ = ts.Close()
	})
	return ts
}

// newUserID returns a user id no other test uses, so tests can share a PostgreSQL database.
func newUserID() int32 {
	return rand.Int32N(1<<30) + 1000
}

func createTestingPersona(ctx context.Context, t *testing.T, ts *store.Store, role store.PersonaRole) *store.Persona {
	t.Helper()
	topic, err := ts.CreateTopic(ctx, &store.Topic{
		Name:     "topic-" + shortuuid.New(),
		Category: "Testing",
	})
	require.NoError(t, err)

	persona, err := ts.CreatePersona(ctx, &store.Persona{
		Name:        "persona-" + shortuuid.New(),
		Role:        role,
		Description: "A persona created by tests.",
		Personality: map[string]string{"tone": "calm"},
		IsActive:    true,
		TopicID:     topic.ID,
	})
	require.NoError(t, err)
	persona.TopicName = topic.Name
	persona.TopicCategory = topic.Category
	return persona
}
