// Package firestore persists device records in Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

// DeviceStore implements dispatch.DeviceStore with one document per
// record, keyed by entry id.
type DeviceStore struct {
	client     *firestore.Client
	collection string
}

func NewDeviceStore(client *firestore.Client, collection string) *DeviceStore {
	return &DeviceStore{client: client, collection: collection}
}

func (s *DeviceStore) List(ctx context.Context) ([]device.Record, error) {
	iter := s.devices().OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	records := make([]device.Record, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var rec device.Record
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode device %s: %w", doc.Ref.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *DeviceStore) Get(ctx context.Context, entryID string) (device.Record, error) {
	doc, err := s.devices().Doc(entryID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return device.Record{}, dispatch.ErrNotFound
	}
	if err != nil {
		return device.Record{}, fmt.Errorf("failed to get device %s: %w", entryID, err)
	}

	var rec device.Record
	if err := doc.DataTo(&rec); err != nil {
		return device.Record{}, fmt.Errorf("failed to decode device %s: %w", entryID, err)
	}
	return rec, nil
}

func (s *DeviceStore) Put(ctx context.Context, rec device.Record) error {
	_, err := s.devices().Doc(rec.EntryID).Set(ctx, rec)
	return err
}

// Delete on a missing document succeeds in Firestore.
func (s *DeviceStore) Delete(ctx context.Context, entryID string) error {
	_, err := s.devices().Doc(entryID).Delete(ctx)
	return err
}

func (s *DeviceStore) devices() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}
