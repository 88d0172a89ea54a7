package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Checkpoint records how far one consumer group has read a stream shard.
type Checkpoint struct {
	Consumer       string    `dynamodbav:"consumer"` // "<table>/<group>"
	ShardID        string    `dynamodbav:"shard_id"`
	SequenceNumber string    `dynamodbav:"sequence_number"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
}

// CheckpointRepo persists stream read positions so a restarted consumer
// resumes where it stopped instead of replaying or skipping records.
type CheckpointRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCheckpointRepo(client *dynamodb.Client, tableName string) *CheckpointRepo {
	return &CheckpointRepo{client: client, tableName: tableName}
}

// ConsumerKey builds the partition key for a (table, group) pair.
func ConsumerKey(table, group string) string {
	return table + "/" + group
}

// Get returns the saved sequence number for a shard, empty when the shard has
// never been checkpointed.
func (r *CheckpointRepo) Get(ctx context.Context, consumer, shardID string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("consumer", consumer, "shard_id", shardID),
	})
	if err != nil {
		return "", fmt.Errorf("get checkpoint %s/%s: %w", consumer, shardID, err)
	}
	if out.Item == nil {
		return "", nil
	}
	var cp Checkpoint
	if err := attributevalue.UnmarshalMap(out.Item, &cp); err != nil {
		return "", fmt.Errorf("get checkpoint %s/%s: %w", consumer, shardID, err)
	}
	return cp.SequenceNumber, nil
}

// Save upserts the read position for a shard.
func (r *CheckpointRepo) Save(ctx context.Context, consumer, shardID, sequenceNumber string) error {
	item, err := attributevalue.MarshalMap(Checkpoint{
		Consumer:       consumer,
		ShardID:        shardID,
		SequenceNumber: sequenceNumber,
		UpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save checkpoint %s/%s: %w", consumer, shardID, err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("save checkpoint %s/%s: %w", consumer, shardID, err)
	}
	return nil
}
