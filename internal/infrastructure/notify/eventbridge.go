package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"usbspeed/internal/errors"
)

// DetailType is the EventBridge detail-type of change messages.
const DetailType = "DeviceTopologyChanged"

// PutEventsAPI is the subset of the EventBridge client used here.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// NewEventBridgeClient loads the default AWS configuration for region.
func NewEventBridgeClient(ctx context.Context, region string) (*eventbridge.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return eventbridge.NewFromConfig(cfg), nil
}

// EventBridgeNotifier publishes each message as one event on a bus.
type EventBridgeNotifier struct {
	client       PutEventsAPI
	eventBusName string
	source       string
	logger       *zap.Logger
}

func NewEventBridgeNotifier(client PutEventsAPI, eventBusName, source string, logger *zap.Logger) *EventBridgeNotifier {
	if source == "" {
		source = "usbspeed"
	}
	return &EventBridgeNotifier{
		client:       client,
		eventBusName: eventBusName,
		source:       source,
		logger:       logger.Named("eventbridge"),
	}
}

func (n *EventBridgeNotifier) Notify(ctx context.Context, title, body string) error {
	msg := newMessage(title, body)
	detail, err := json.Marshal(msg)
	if err != nil {
		return errors.NewNotificationDelivery("encode event detail", err)
	}

	result, err := n.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(n.eventBusName),
			Source:       aws.String(n.source),
			DetailType:   aws.String(DetailType),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(msg.At),
		}},
	})
	if err != nil {
		return errors.NewNotificationDelivery("failed to publish event to EventBridge", err)
	}

	if result.FailedEntryCount > 0 {
		for _, entry := range result.Entries {
			if entry.ErrorCode != nil {
				n.logger.Error("Failed to publish event",
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return errors.NewNotificationDelivery(
			fmt.Sprintf("%d events failed to publish", result.FailedEntryCount), nil)
	}

	n.logger.Debug("Event published to EventBridge",
		zap.String("id", msg.ID),
		zap.String("eventBus", n.eventBusName),
	)
	return nil
}
