package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/joho/godotenv"

	"github.com/campusswap/api/internal/application/listing"
	"github.com/campusswap/api/internal/application/metrics"
	"github.com/campusswap/api/internal/application/projection"
	"github.com/campusswap/api/internal/application/ratelimit"
	"github.com/campusswap/api/internal/application/review"
	"github.com/campusswap/api/internal/application/session"
	"github.com/campusswap/api/internal/application/sweeper"
	"github.com/campusswap/api/internal/config"
	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/infrastructure/dynamo"
	jwtinfra "github.com/campusswap/api/internal/infrastructure/jwt"
	"github.com/campusswap/api/internal/infrastructure/redis"
	"github.com/campusswap/api/internal/infrastructure/search"
	"github.com/campusswap/api/internal/infrastructure/smtp"
	"github.com/campusswap/api/internal/stream"
	transporthttp "github.com/campusswap/api/internal/transport/http"
)

const listingIndex = "items"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	cache := redis.New(cfg.RedisAddr, cfg.RedisPassword)
	if err := cache.Ping(context.Background()); err != nil {
		log.Fatalf("redis: %v", err)
	}

	searchClient := search.New(cfg.MeiliHost, cfg.MeiliAPIKey)
	if err := searchClient.EnsureListingSettings(listingIndex); err != nil {
		log.Fatalf("search settings: %v", err)
	}

	accountRepo := dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables.Accounts)
	listingRepo := dynamo.NewListingRepo(dynamoClient, cfg.DynamoTables.Listings)
	reviewRepo := dynamo.NewReviewRepo(dynamoClient, cfg.DynamoTables.Reviews)
	ownerRepo := dynamo.NewOwnerRepo(dynamoClient, cfg.DynamoTables.ListingOwners)
	checkpointRepo := dynamo.NewCheckpointRepo(dynamoClient, cfg.DynamoTables.Checkpoints)

	locks := ratelimit.NewService(cache)
	metricsSvc := metrics.NewService(cache, cfg.VisitorWindow)
	sessionSvc := session.NewService(accountRepo, cache, locks, smtp.NewMailer(cfg), cfg.Auth)
	listingSvc := listing.NewService(listingRepo, ownerRepo, locks, metricsSvc, cfg.MaxItemsPerUser, cfg.Auth)
	reviewSvc := review.NewService(reviewRepo, cfg.Auth)

	// Stream consumers keep the search indexes and counters in step with the
	// tables.
	listingProj := projection.NewListingProjector(searchClient, ownerRepo, locks, metricsSvc,
		listingRepo, domain.SiteSwap, listingIndex, cfg.Sweep.PageSize)
	reviewProj := projection.NewReviewProjector(searchClient, reviewRepo)

	streamsClient := dynamo.NewStreamsClient(cfg)
	listingReader := newReader(dynamoClient, streamsClient, checkpointRepo, cfg,
		cfg.DynamoTables.Listings, "search", listingProj.Handle)
	reviewReader := newReader(dynamoClient, streamsClient, checkpointRepo, cfg,
		cfg.DynamoTables.Reviews, "search", reviewProj.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go listingReader.Run(ctx)
	go reviewReader.Run(ctx)

	// The reindex heals any projection gap from the previous run; the stream
	// consumer takes over from there.
	go func() {
		if err := listingProj.Reindex(ctx); err != nil {
			log.Printf("WARN: listing reindex: %v", err)
		}
		if err := reviewProj.Reindex(ctx); err != nil {
			log.Printf("WARN: review reindex: %v", err)
		}
	}()

	sweepSvc := sweeper.NewService(listingRepo, cfg.Sweep)
	if err := sweepSvc.Start(ctx); err != nil {
		log.Fatalf("sweeper: %v", err)
	}

	deps := &transporthttp.Deps{
		Sessions: sessionSvc,
		Listings: listingSvc,
		Reviews:  reviewSvc,
		Metrics:  metricsSvc,
		Tokens:   jwtinfra.NewVerifier(cfg.APITokenKeys),
	}
	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	// Readers flush their checkpoints on Stop, so they go after the server
	// stops producing writes.
	listingReader.Stop()
	reviewReader.Stop()
	sweepSvc.Stop()
	cache.Close()
	log.Println("Server stopped")
}

func newReader(dynamoClient *dynamodb.Client, streamsClient *dynamodbstreams.Client, checkpoints *dynamo.CheckpointRepo,
	cfg *config.Config, table, group string, handler stream.Handler) *stream.Reader {
	arn, err := dynamo.StreamARN(context.Background(), dynamoClient, table)
	if err != nil {
		log.Fatalf("stream arn for %s: %v", table, err)
	}
	return stream.NewReader(streamsClient, checkpoints, arn, dynamo.ConsumerKey(table, group), cfg.Stream, handler)
}
