package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/campusswap/api/internal/domain"
)

// OwnerRepo maps listing ids to their owner's email. The listings table keeps
// the owner too, but a removal's change record may carry a trimmed image, so
// the side table is the authoritative lookup on delete.
type OwnerRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOwnerRepo(client *dynamodb.Client, tableName string) *OwnerRepo {
	return &OwnerRepo{client: client, tableName: tableName}
}

func (r *OwnerRepo) Put(ctx context.Context, itemID, ownerEmail string) error {
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"item_id":     &types.AttributeValueMemberS{Value: itemID},
			"owner_email": &types.AttributeValueMemberS{Value: ownerEmail},
		},
	})
	return err
}

// Get returns the owner email for a listing, or ErrNotFound.
func (r *OwnerRepo) Get(ctx context.Context, itemID string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("item_id", itemID),
	})
	if err != nil {
		return "", err
	}
	if out.Item == nil {
		return "", fmt.Errorf("owner of %s: %w", itemID, domain.ErrNotFound)
	}
	v, ok := out.Item["owner_email"].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("owner of %s: malformed row", itemID)
	}
	return v.Value, nil
}

func (r *OwnerRepo) Delete(ctx context.Context, itemID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("item_id", itemID),
	})
	return err
}
