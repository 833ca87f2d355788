//go:build integration

package firestore_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-huian-notify-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

func setupSuite(t *testing.T) (context.Context, *fs.DeviceStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-device-store"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, fs.NewDeviceStore(client, "huian_devices_test")
}

func TestDeviceStore_Integration(t *testing.T) {
	ctx, store := setupSuite(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := device.Record{
		EntryID:        "entry-1",
		RegistrationID: "1a0018970a8b1234",
		DeviceName:     "iPhone 65050",
		ServiceID:      "iphone_65050",
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	second := device.Record{
		EntryID:        "entry-2",
		RegistrationID: "1a0018970a8b5678",
		ServiceID:      "huian_0a8b5678",
		Production:     true,
		CreatedAt:      created.Add(time.Minute),
		UpdatedAt:      created.Add(time.Minute),
	}

	t.Run("Put, Get and List", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, second))
		require.NoError(t, store.Put(ctx, first))

		got, err := store.Get(ctx, "entry-1")
		require.NoError(t, err)
		assert.Equal(t, first, got)

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "entry-1", all[0].EntryID, "ordered by creation")
	})

	t.Run("Put replaces", func(t *testing.T) {
		updated := first
		updated.Production = true
		require.NoError(t, store.Put(ctx, updated))

		got, err := store.Get(ctx, "entry-1")
		require.NoError(t, err)
		assert.True(t, got.Production)
	})

	t.Run("Delete and missing records", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "entry-1"))
		require.NoError(t, store.Delete(ctx, "entry-1"))

		_, err := store.Get(ctx, "entry-1")
		assert.ErrorIs(t, err, dispatch.ErrNotFound)
	})
}
