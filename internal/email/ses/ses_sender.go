package ses

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

type sesSender struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
}

// NewSESSender creates a new SES-backed AlertSender.
func NewSESSender(region, fromAddress, fromName string) (port.AlertSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	client := sesv2.NewFromConfig(cfg)
	return &sesSender{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
	}, nil
}

func (s *sesSender) SendAuthFailureAlert(ctx context.Context, business *domain.Business, mode domain.IntegrationMode) error {
	if business.OperatorEmail == "" {
		return nil
	}

	subject := fmt.Sprintf("FBR %s token rejected for %s", mode, business.Name)
	textBody := fmt.Sprintf(
		"The FBR %s bearer token for %s (NTN %s) was rejected.\n\n"+
			"All %s submissions for this business are halted until the token is rotated. "+
			"Update the token and clear the halt to resume.\n",
		mode, business.Name, business.NTN, mode)

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{business.OperatorEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending auth failure alert: %w", err)
	}
	return nil
}
