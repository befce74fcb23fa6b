package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"

	"github.com/ultraviolet/uv/internal/beam"
)

// errExhausted is returned by Recv once every inbound frame the invocation
// carried has been consumed.
var errExhausted = errors.New("lambda transport: no more inbound frames in this invocation")

// Lambda adapts one API Gateway WebSocket Lambda invocation to a Transport.
// It is stateless per invocation: Recv drains the frames the triggering
// event carried, and Send POSTs each outbound frame to the API Gateway
// management endpoint keyed by connection id. Persistence across
// invocations belongs to the gateway, not this adapter.
type Lambda struct {
	client       *apigatewaymanagementapi.Client
	connectionID string
	inbound      []beam.Frame
	next         int
}

// NewLambda builds a Lambda transport for one invocation. managementEndpoint
// is the API Gateway callback URL for connectionID; endpointOverride, when
// non-empty, points the management client at a local emulator instead (used
// for testing without a real API Gateway). frames are the
// wavefront/photon/trap/cancel frames the invocation's event body carried,
// decoded by the caller.
func NewLambda(ctx context.Context, managementEndpoint, connectionID, region, endpointOverride string, frames []beam.Frame) (*Lambda, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	endpoint := managementEndpoint
	if endpointOverride != "" {
		// A local emulator has no real IAM behind it; a static anonymous
		// credential set satisfies the SDK's signing requirement without
		// reaching out to the real AWS credential chain.
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", "")))
		endpoint = endpointOverride
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("lambda transport: load aws config: %w", err)
	}
	client := apigatewaymanagementapi.NewFromConfig(awsCfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &Lambda{client: client, connectionID: connectionID, inbound: frames}, nil
}

// Recv returns the next frame the triggering event carried.
func (l *Lambda) Recv(ctx context.Context) (beam.Frame, error) {
	if l.next >= len(l.inbound) {
		return beam.Frame{}, errExhausted
	}
	f := l.inbound[l.next]
	l.next++
	return f, nil
}

// Send POSTs f to connectionID via the API Gateway management API.
func (l *Lambda) Send(ctx context.Context, f beam.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = l.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(l.connectionID),
		Data:         data,
	})
	return err
}

// Close is a no-op: a Lambda invocation owns no long-lived resource beyond
// its one HTTP client, and the gateway manages the connection's lifetime
// across invocations.
func (l *Lambda) Close() error { return nil }
