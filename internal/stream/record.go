package stream

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
)

// EventType classifies a change record. Every delete variant the store can
// emit collapses into EventRemove.
type EventType int

const (
	EventUnknown EventType = iota
	EventInsert
	EventModify
	EventRemove
)

// Record is one change-log entry with both row images attached.
type Record struct {
	Type           EventType
	SequenceNumber string
	CreatedAt      time.Time
	NewImage       map[string]types.AttributeValue
	OldImage       map[string]types.AttributeValue
}

// fromStreamRecord converts an SDK record. Unrecognized operation types map
// to EventUnknown and are skipped by the reader.
func fromStreamRecord(r types.Record) Record {
	rec := Record{Type: EventUnknown}
	switch r.EventName {
	case types.OperationTypeInsert:
		rec.Type = EventInsert
	case types.OperationTypeModify:
		rec.Type = EventModify
	case types.OperationTypeRemove:
		rec.Type = EventRemove
	}
	if r.Dynamodb != nil {
		if r.Dynamodb.SequenceNumber != nil {
			rec.SequenceNumber = *r.Dynamodb.SequenceNumber
		}
		if r.Dynamodb.ApproximateCreationDateTime != nil {
			rec.CreatedAt = *r.Dynamodb.ApproximateCreationDateTime
		}
		rec.NewImage = r.Dynamodb.NewImage
		rec.OldImage = r.Dynamodb.OldImage
	}
	return rec
}

// Image returns the image most representative of the record: the new image
// for inserts and updates, the old image for removals.
func (r Record) Image() map[string]types.AttributeValue {
	if r.Type == EventRemove {
		return r.OldImage
	}
	return r.NewImage
}

// StringAttr reads a string attribute from an image, empty when absent or of
// another type.
func StringAttr(image map[string]types.AttributeValue, name string) string {
	if v, ok := image[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// NumberAttr reads a numeric attribute from an image. Malformed or absent
// attributes read as 0; row decoding falls back to defaults rather than
// halting the consumer.
func NumberAttr(image map[string]types.AttributeValue, name string) int64 {
	v, ok := image[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v.Value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
