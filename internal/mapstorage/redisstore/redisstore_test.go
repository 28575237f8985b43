package redisstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage/redisstore"
)

type note struct {
	mapstorage.Meta
	Title string `json:"title"`
}

var noteSchema = &mapstorage.Schema[*note]{
	Name: "note",
	New:  func() *note { return &note{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*note]{
		"title": func(n *note) []any { return mapstorage.String(n.Title) },
	},
}

// startRedis starts a Redis container, skipping the test if no container
// runtime is available.
func startRedis(tt *testing.T) *redis.Client {
	testcontainers.SkipIfProviderIsNotHealthy(tt)
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections"),
			},
			Started: true,
		})
	if err != nil {
		tt.Skipf("couldn't start redis container: %v", err)
	}
	tt.Cleanup(func() { _ = container.Terminate(context.Background()) })
	endpoint, err := container.Endpoint(ctx, "")
	assert.NoError(tt, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	tt.Cleanup(func() { _ = client.Close() })
	return client
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t)
	s := mapstorage.NewStorage(noteSchema, redisstore.New(noteSchema, client, "test"))
	// create
	assert.NoError(t, s.InTransaction(ctx, func(tx *mapstorage.Transaction[*note]) error {
		for _, title := range []string{"b", "a", "c"} {
			if _, err := tx.Create(ctx, &note{Meta: mapstorage.Meta{ID: "n" + title}, Title: title}); err != nil {
				return err
			}
		}
		return nil
	}))
	notes, err := s.Begin().Query(ctx, mapstorage.QueryParameters{
		OrderBy: []mapstorage.Order{{Field: "title"}},
		Limit:   2,
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(notes))
	assert.Equal(t, "a", notes[0].Title)
	assert.Equal(t, "b", notes[1].Title)
	// conflicting update
	tx1, tx2 := s.Begin(), s.Begin()
	n1, err := tx1.Read(ctx, "na")
	assert.NoError(t, err)
	n2, err := tx2.Read(ctx, "na")
	assert.NoError(t, err)
	n1.Title = "x"
	n2.Title = "y"
	assert.NoError(t, tx1.Update(ctx, n1))
	assert.NoError(t, tx2.Update(ctx, n2))
	assert.NoError(t, tx1.Commit(ctx))
	err = tx2.Commit(ctx)
	assert.True(t, errors.Is(err, mapstorage.ErrConcurrentModification))
	stored, err := s.Begin().Read(ctx, "na")
	assert.NoError(t, err)
	assert.Equal(t, "x", stored.Title)
	assert.Equal(t, 2, stored.Version)
	// bulk delete
	tx := s.Begin()
	n, err := tx.DeleteMatching(ctx, mapstorage.Compare("title", mapstorage.IN, "b", "c"))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, tx.Commit(ctx))
	count, err := s.Begin().Count(ctx, mapstorage.Criteria{})
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
