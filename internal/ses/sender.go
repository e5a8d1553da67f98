// Package ses sends messages through AWS SES v2. One API client is kept per
// sending region; tracking behavior is selected by pointing each send at the
// configuration set matching the domain's click/open flags.
package ses

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/unsend-dev/unsend-sub000/internal/dispatch"
)

// EmailIDHeader carries our message id on every send, so provider events can
// be matched back before the provider's own id is stored.
const EmailIDHeader = "X-Unsend-Email-ID"

// sesAPI is the slice of the SES v2 client the sender uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Options configures the sender.
type Options struct {
	AccessKey string
	SecretKey string

	// ConfigSetPrefix names the four tracking configuration sets, e.g. a
	// prefix of "mail" expects "mail-click-open", "mail-click", "mail-open"
	// and "mail-plain" to exist in every sending region.
	ConfigSetPrefix string

	// Endpoint overrides the SES API endpoint, for local stacks.
	Endpoint string
}

// Sender implements dispatch.Sender over SES v2.
type Sender struct {
	opts Options

	mu      sync.Mutex
	clients map[string]sesAPI
}

// NewSender creates a sender. Region clients are built lazily on first use.
func NewSender(opts Options) *Sender {
	return &Sender{opts: opts, clients: make(map[string]sesAPI)}
}

// clientFor returns the SES client for a region, creating it on first use.
func (s *Sender) clientFor(ctx context.Context, region string) (sesAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[region]; ok {
		return c, nil
	}

	creds := credentials.NewStaticCredentialsProvider(s.opts.AccessKey, s.opts.SecretKey, "")
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for %s: %w", region, err)
	}
	c := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if s.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.opts.Endpoint)
		}
	})
	s.clients[region] = c
	return c, nil
}

// configSet picks the configuration set matching the domain's tracking flags.
func configSet(prefix string, click, open bool) string {
	switch {
	case click && open:
		return prefix + "-click-open"
	case click:
		return prefix + "-click"
	case open:
		return prefix + "-open"
	default:
		return prefix + "-plain"
	}
}

// Send builds the raw message and hands it to SES in the message's region.
// Returns the provider message id.
func (s *Sender) Send(ctx context.Context, msg *dispatch.OutboundEmail) (string, error) {
	client, err := s.clientFor(ctx, msg.Region)
	if err != nil {
		return "", err
	}

	raw, err := buildMIME(msg)
	if err != nil {
		return "", fmt.Errorf("building message: %w", err)
	}

	out, err := client.SendEmail(ctx, &sesv2.SendEmailInput{
		ConfigurationSetName: aws.String(configSet(s.opts.ConfigSetPrefix, msg.ClickTracking, msg.OpenTracking)),
		Destination: &types.Destination{
			ToAddresses:  msg.To,
			CcAddresses:  msg.CC,
			BccAddresses: msg.BCC,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
