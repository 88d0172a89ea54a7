package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/campusswap/api/internal/config"
)

// StreamsAPI is the slice of the streams client the reader uses.
type StreamsAPI interface {
	DescribeStream(ctx context.Context, in *dynamodbstreams.DescribeStreamInput, opts ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, in *dynamodbstreams.GetShardIteratorInput, opts ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, in *dynamodbstreams.GetRecordsInput, opts ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// Checkpoints persists per-shard read positions.
type Checkpoints interface {
	Get(ctx context.Context, consumer, shardID string) (string, error)
	Save(ctx context.Context, consumer, shardID, sequenceNumber string) error
}

// Handler processes one record. An error leaves the shard's checkpoint in
// place so the record is redelivered on the next poll: delivery is
// at-least-once and handlers must tolerate replays.
type Handler func(ctx context.Context, rec Record) error

// Reader tails one table's change stream for one consumer group. Records
// younger than the safety interval are deferred to a later poll so a batch is
// only consumed once the window it covers can no longer change.
type Reader struct {
	client      StreamsAPI
	checkpoints Checkpoints
	streamARN   string
	consumer    string
	handler     Handler
	cfg         config.StreamTunables

	// lastSaved tracks the last persisted sequence number per shard so the
	// periodic save only writes shards that moved.
	lastSaved map[string]string
	pending   map[string]string

	stop chan struct{}
	done chan struct{}
}

func NewReader(client StreamsAPI, checkpoints Checkpoints, streamARN, consumer string, cfg config.StreamTunables, handler Handler) *Reader {
	return &Reader{
		client:      client,
		checkpoints: checkpoints,
		streamARN:   streamARN,
		consumer:    consumer,
		handler:     handler,
		cfg:         cfg,
		lastSaved:   make(map[string]string),
		pending:     make(map[string]string),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Run polls until Stop is called or ctx is cancelled. The in-flight batch is
// finished and a final checkpoint persisted before returning.
func (r *Reader) Run(ctx context.Context) {
	defer close(r.done)

	poll := time.NewTicker(r.cfg.PollInterval)
	defer poll.Stop()
	save := time.NewTicker(r.cfg.CheckpointInterval)
	defer save.Stop()

	r.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.saveCheckpoints(context.WithoutCancel(ctx))
			return
		case <-r.stop:
			r.saveCheckpoints(ctx)
			return
		case <-save.C:
			r.saveCheckpoints(ctx)
		case <-poll.C:
			r.pollOnce(ctx)
		}
	}
}

// Stop asks Run to finish its current batch and persist a final checkpoint.
// Blocks until Run has returned.
func (r *Reader) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reader) pollOnce(ctx context.Context) {
	shards, err := r.listShards(ctx)
	if err != nil {
		slog.Error("could not list stream shards", "stream", r.streamARN, "err", err)
		return
	}
	cutoff := time.Now().Add(-r.cfg.SafetyInterval)
	for _, shard := range shards {
		if err := r.drainShard(ctx, shard, cutoff); err != nil {
			slog.Error("could not drain shard", "shard", shard, "err", err)
		}
	}
}

func (r *Reader) listShards(ctx context.Context) ([]string, error) {
	var shards []string
	var startShard *string
	for {
		out, err := r.client.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(r.streamARN),
			ExclusiveStartShardId: startShard,
		})
		if err != nil {
			return nil, err
		}
		for _, s := range out.StreamDescription.Shards {
			shards = append(shards, *s.ShardId)
		}
		startShard = out.StreamDescription.LastEvaluatedShardId
		if startShard == nil {
			return shards, nil
		}
	}
}

// drainShard reads one window of records from a shard. A record past the
// safety cutoff or a handler failure stops the shard's advance for this poll;
// everything before it is checkpointable.
func (r *Reader) drainShard(ctx context.Context, shardID string, cutoff time.Time) error {
	iterator, err := r.shardIterator(ctx, shardID)
	if err != nil {
		return err
	}

	out, err := r.client.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{
		ShardIterator: aws.String(iterator),
		Limit:         aws.Int32(r.cfg.WindowSize),
	})
	if err != nil {
		return err
	}

	for _, raw := range out.Records {
		rec := fromStreamRecord(raw)
		if !rec.CreatedAt.IsZero() && rec.CreatedAt.After(cutoff) {
			break
		}
		if rec.Type != EventUnknown {
			if err := r.handler(ctx, rec); err != nil {
				return fmt.Errorf("handle record %s: %w", rec.SequenceNumber, err)
			}
		}
		r.pending[shardID] = rec.SequenceNumber
	}
	return nil
}

func (r *Reader) shardIterator(ctx context.Context, shardID string) (string, error) {
	seq := r.pending[shardID]
	if seq == "" {
		saved, err := r.checkpoints.Get(ctx, r.consumer, shardID)
		if err != nil {
			return "", err
		}
		seq = saved
		if seq != "" {
			r.pending[shardID] = seq
			r.lastSaved[shardID] = seq
		}
	}

	in := &dynamodbstreams.GetShardIteratorInput{
		StreamArn: aws.String(r.streamARN),
		ShardId:   aws.String(shardID),
	}
	if seq == "" {
		in.ShardIteratorType = types.ShardIteratorTypeTrimHorizon
	} else {
		in.ShardIteratorType = types.ShardIteratorTypeAfterSequenceNumber
		in.SequenceNumber = aws.String(seq)
	}
	out, err := r.client.GetShardIterator(ctx, in)
	if err != nil {
		return "", err
	}
	return *out.ShardIterator, nil
}

func (r *Reader) saveCheckpoints(ctx context.Context) {
	for shardID, seq := range r.pending {
		if seq == "" || seq == r.lastSaved[shardID] {
			continue
		}
		if err := r.checkpoints.Save(ctx, r.consumer, shardID, seq); err != nil {
			slog.Error("could not save checkpoint", "consumer", r.consumer, "shard", shardID, "err", err)
			continue
		}
		r.lastSaved[shardID] = seq
	}
}
