package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/config"
	"github.com/Vasu1712/campus-marketplace/internal/conversations"
	"github.com/Vasu1712/campus-marketplace/internal/listings"
	"github.com/Vasu1712/campus-marketplace/internal/session"
	"github.com/Vasu1712/campus-marketplace/internal/storage/memory"
	"github.com/Vasu1712/campus-marketplace/internal/storage/postgres"
	sbstore "github.com/Vasu1712/campus-marketplace/internal/storage/supabase"
	"github.com/Vasu1712/campus-marketplace/internal/supabase"
)

type profileStore interface {
	session.ProfileStore
	session.LoginRecorder
}

// backend is the set of stores selected by STORAGE_BACKEND.
type backend struct {
	listings      listings.Store
	conversations conversations.Store
	profiles      profileStore
	objects       listings.ObjectStore
	close         func() error
}

func openBackend(ctx context.Context, cfg *config.Config, sb *supabase.Client, log logrus.FieldLogger) (*backend, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &backend{
			listings:      postgres.NewListingStore(db),
			conversations: postgres.NewConversationStore(db),
			profiles:      postgres.NewProfileStore(db),
			objects:       sb.Storage(),
			close:         db.Close,
		}, nil

	case config.BackendMemory:
		profiles := memory.NewProfileStore()
		listingStore := memory.NewListingStore(profiles)
		return &backend{
			listings:      listingStore,
			conversations: memory.NewConversationStore(profiles, listingStore),
			profiles:      profiles,
			objects:       memory.NewObjectStore(cfg.Supabase.URL),
			close:         func() error { return nil },
		}, nil

	case config.BackendSupabase, "":
		db := sb.Database()
		return &backend{
			listings:      sbstore.NewListingStore(db),
			conversations: sbstore.NewConversationStore(db, log),
			profiles:      sbstore.NewProfileStore(db),
			objects:       sb.Storage(),
			close:         func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
