package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/ignite/veribatch/internal/domain"
)

// retention is how long an archived completion payload is kept before
// DynamoDB's TTL sweep reclaims it.
const retention = 90 * 24 * time.Hour

// item is one archived completion payload.
type item struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
	TTL       int64  `dynamodbav:"TTL,omitempty"`
}

// Store archives provider-batch completion payloads to DynamoDB.
type Store struct {
	client    *dynamodb.Client
	tableName string
}

// NewStore creates a Store against the given DynamoDB table.
func NewStore(client *dynamodb.Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// ArchiveCompletion records a completion payload keyed by
// (check_type#provider_batch_id, timestamp).
func (s *Store) ArchiveCompletion(ctx context.Context, checkType domain.CheckType, providerBatchID string, results []domain.ProviderResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("archive: marshal results for %s: %w", providerBatchID, err)
	}

	now := time.Now().UTC()
	record := item{
		PK:        fmt.Sprintf("%s#%s", checkType, providerBatchID),
		SK:        now.Format(time.RFC3339Nano),
		Data:      string(data),
		Timestamp: now.Format(time.RFC3339),
		TTL:       now.Add(retention).Unix(),
	}

	av, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("archive: marshal item for %s: %w", providerBatchID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("archive: put item for %s: %w", providerBatchID, err)
	}
	return nil
}
