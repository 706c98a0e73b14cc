package stores_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/openstack/heat-sub008/pkg/lifecycle"
	"github.com/openstack/heat-sub008/pkg/snapshot"
	"github.com/openstack/heat-sub008/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a store.
func ExampleNewSQLiteStore() {
	dir, err := os.MkdirTemp("", "heat-stores")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            filepath.Join(dir, "engine.db"),
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("store initialized")
	// Output: store initialized
}

// ExampleSQLiteStore_SaveSnapshot demonstrates persisting a member snapshot.
func ExampleSQLiteStore_SaveSnapshot() {
	dir, err := os.MkdirTemp("", "heat-stores")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := stores.NewSQLiteStore(stores.Config{
		Path: filepath.Join(dir, "engine.db"),
	})
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	snap := snapshot.NewBuilder("snap-1", "web-1").
		ExternalID("75b5c31e").
		LastOperation(lifecycle.ActionCreate, lifecycle.StatusComplete).
		Attribute("definition", "defn-a").
		Build()

	if err := store.SaveSnapshot(ctx, "web", snap); err != nil {
		log.Fatal(err)
	}

	got, err := store.GetSnapshot(ctx, "web", "web-1")
	if err != nil {
		log.Fatal(err)
	}
	tag, _ := got.Attribute("definition")
	fmt.Println(got.Name(), tag)
	// Output: web-1 defn-a
}
