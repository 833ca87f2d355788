//go:build integration

package huiannotify_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/tinywideclouds/go-huian-notify-service/huiannotify"
	"github.com/tinywideclouds/go-huian-notify-service/huiannotify/config"
	fsStore "github.com/tinywideclouds/go-huian-notify-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
)

func TestHuianNotify_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	logger := newTestLogger()
	projectID := "test-project-integ"

	// 1. Emulators
	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = psClient.Close() })

	fsConn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	fsClient, err := firestore.NewClient(ctx, projectID, fsConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsClient.Close() })

	store := fsStore.NewDeviceStore(fsClient, "devices-"+uuid.NewString())

	t.Run("Stored device -> Pub/Sub service call -> Push", func(t *testing.T) {
		topicID := "huian-calls-" + uuid.NewString()
		subID := topicID + "-sub"
		createPubsubResources(t, ctx, psClient, projectID, topicID, subID)

		// A device registered by an earlier run.
		require.NoError(t, store.Put(ctx, device.Record{
			EntryID:        uuid.NewString(),
			RegistrationID: "1a0018970a8b9999",
			DeviceName:     "Hall Tablet",
			ServiceID:      "hall_tablet",
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}))

		gateway := &recordingGateway{}
		consumerCfg := *messagepipeline.NewGooglePubsubConsumerDefaults(subID)
		consumer, err := messagepipeline.NewGooglePubsubConsumer(&consumerCfg, psClient, logger)
		require.NoError(t, err)

		svc, err := huiannotify.New(
			&config.Config{ListenAddr: ":0", NumPipelineWorkers: 2},
			consumer,
			store,
			gateway,
			noopAuth,
			logger,
		)
		require.NoError(t, err)

		svcCtx, svcCancel := context.WithCancel(ctx)
		defer svcCancel()
		go func() { _ = svc.Start(svcCtx) }()
		t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

		require.Eventually(t, func() bool {
			return len(svc.Services()) == 1
		}, 5*time.Second, 50*time.Millisecond, "stored device should be loaded on start")

		payload, err := json.Marshal(map[string]any{
			"service": "notify.hall_tablet",
			"message": "Motion in the hall",
			"title":   "Security",
		})
		require.NoError(t, err)
		_, err = psClient.Publisher(topicID).Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return len(gateway.Sent()) == 1
		}, 10*time.Second, 100*time.Millisecond)

		push := gateway.Sent()[0]
		assert.Equal(t, "1a0018970a8b9999", push.Record.RegistrationID)
		assert.Equal(t, "Security", push.Notification.Title)
		assert.Equal(t, "Motion in the hall", push.Notification.Body)
	})
}

func createPubsubResources(t *testing.T, ctx context.Context, client *pubsub.Client, projectID, topicID, subID string) {
	t.Helper()
	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.TopicAdminClient.DeleteTopic(context.Background(), &pubsubpb.DeleteTopicRequest{Topic: topicName})
	})

	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	sub := &pubsubpb.Subscription{
		Name:               subName,
		Topic:              topicName,
		AckDeadlineSeconds: 10,
		RetryPolicy: &pubsubpb.RetryPolicy{
			MinimumBackoff: &durationpb.Duration{Seconds: 1},
		},
	}
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, sub)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.SubscriptionAdminClient.DeleteSubscription(context.Background(), &pubsubpb.DeleteSubscriptionRequest{Subscription: subName})
	})
}
