package dynamo

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/campusswap/api/internal/domain"
)

// ListingRepo provides typed DynamoDB operations for the listings table.
type ListingRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewListingRepo(client *dynamodb.Client, tableName string) *ListingRepo {
	return &ListingRepo{client: client, tableName: tableName}
}

func (r *ListingRepo) Put(ctx context.Context, l *domain.Listing) error {
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ListingRepo) Delete(ctx context.Context, itemID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("item_id", itemID),
	})
	return err
}

// ScanPage returns one page of listings.
// cursor is a base64-encoded item_id used as ExclusiveStartKey.
// Returns the items, a next cursor (empty string when no more pages), and any error.
func (r *ListingRepo) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Listing, string, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
		Limit:     aws.Int32(limit),
	}
	if cursor != "" {
		itemID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = strKey("item_id", itemID)
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, "", err
	}
	var listings []domain.Listing
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &listings); err != nil {
		return nil, "", err
	}
	nextCursor := ""
	if v, ok := out.LastEvaluatedKey["item_id"].(*types.AttributeValueMemberS); ok {
		nextCursor = encodeCursor(v.Value)
	}
	return listings, nextCursor, nil
}

// DeleteBatch removes up to 25 listings in one BatchWriteItem call, the
// DynamoDB batch limit. Callers chunk larger sets.
func (r *ListingRepo) DeleteBatch(ctx context.Context, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if len(itemIDs) > 25 {
		return fmt.Errorf("delete batch of %d exceeds the 25-item limit", len(itemIDs))
	}
	requests := make([]types.WriteRequest, len(itemIDs))
	for i, id := range itemIDs {
		requests[i] = types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: strKey("item_id", id)},
		}
	}
	_, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			r.tableName: requests,
		},
	})
	return err
}

func encodeCursor(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
