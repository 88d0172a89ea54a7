package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/campusswap/api/internal/domain"
)

// ReviewRepo provides typed DynamoDB operations for the reviews table.
type ReviewRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewReviewRepo(client *dynamodb.Client, tableName string) *ReviewRepo {
	return &ReviewRepo{client: client, tableName: tableName}
}

func (r *ReviewRepo) Put(ctx context.Context, rv *domain.Review) error {
	item, err := attributevalue.MarshalMap(rv)
	if err != nil {
		return fmt.Errorf("marshal review: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ApplyThumbs adds the vote deltas to the review's counters. The condition
// keeps a vote on a deleted review from resurrecting the row.
func (r *ReviewRepo) ApplyThumbs(ctx context.Context, housingID, reviewID string, upDelta, downDelta int8) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("housing_id", housingID, "review_id", reviewID),
		UpdateExpression:    aws.String("ADD thumbs_up :du, thumbs_down :dd"),
		ConditionExpression: aws.String("attribute_exists(review_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":du": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", upDelta)},
			":dd": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", downDelta)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("review %s/%s: %w", housingID, reviewID, domain.ErrNotFound)
		}
		return err
	}
	return nil
}

// ScanHousing returns every review for one residence.
func (r *ReviewRepo) ScanHousing(ctx context.Context, housingID string) ([]domain.Review, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("housing_id = :h"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":h": &types.AttributeValueMemberS{Value: housingID},
		},
	})
	if err != nil {
		return nil, err
	}
	var reviews []domain.Review
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}
