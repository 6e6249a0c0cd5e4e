package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	UsersCollection                 = "users"
	LeadsCollection                 = "leads"
	LeadRemarksCollection           = "leadRemarks"
	ChannelPartnersCollection       = "channelPartners"
	ChannelPartnerRemarksCollection = "channelPartnerRemarks"
	CountersCollection              = "counters"
	ApiOperationLogsCollection      = "apiOperationLogs"
)

var allCollections = []string{
	UsersCollection,
	LeadsCollection,
	LeadRemarksCollection,
	ChannelPartnersCollection,
	ChannelPartnerRemarksCollection,
	CountersCollection,
	ApiOperationLogsCollection,
}

// InitMongoDB connects to MongoDB and returns a store bound to dbName.
func InitMongoDB(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	utils.Logger.Info().Str("database", dbName).Msg("connected to MongoDB")
	return NewMongoStore(client, client.Database(dbName)), nil
}

// CloseMongoDB disconnects the client behind s.
func CloseMongoDB(ctx context.Context, s *MongoStore) {
	if s == nil || s.client == nil {
		return
	}
	if err := s.client.Disconnect(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("disconnect MongoDB failed")
		return
	}
	utils.Logger.Info().Msg("disconnected from MongoDB")
}

var dbBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
	Name:        "mongodb",
	MaxRequests: 3,
	Interval:    30 * time.Second,
	Timeout:     10 * time.Second,
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 5 && failureRatio >= 0.6
	},
	OnStateChange: func(name string, from, to gobreaker.State) {
		utils.Logger.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	},
})

// ExecuteDbOperation runs a read through the circuit breaker and retries
// transient failures. Inside a transaction the operation runs once: the
// transaction runner owns retries there.
func ExecuteDbOperation(ctx context.Context, operation func() (interface{}, error), retries int) (interface{}, error) {
	if retries <= 0 {
		retries = 3
	}
	if mongo.SessionFromContext(ctx) != nil {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		result, err := dbBreaker.Execute(operation)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || !isRetryableError(err) {
			break
		}
		utils.Logger.Warn().Err(err).Msgf("db operation failed, retrying (%d/%d)", i+1, retries)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(200*(i+1)) * time.Millisecond):
		}
	}

	return nil, lastErr
}

// MongoDB server codes that are safe to retry.
var retryableCodes = map[int32]bool{
	6:     true, // HostUnreachable
	7:     true, // HostNotFound
	89:    true, // NetworkTimeout
	91:    true, // ShutdownInProgress
	189:   true, // PrimarySteppedDown
	10107: true, // NotWritablePrimary
	13436: true, // NotPrimaryNoSecondaryOk
	11600: true, // InterruptedAtShutdown
	11602: true, // InterruptedDueToReplStateChange
}

func isRetryableError(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return retryableCodes[cmdErr.Code]
	}
	return false
}

// InitializeCollections creates missing collections and the indexes the
// ledger relies on for uniqueness.
func (s *MongoStore) InitializeCollections(ctx context.Context) error {
	existing, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for _, collName := range allCollections {
		if have[collName] {
			continue
		}
		if err := s.db.CreateCollection(ctx, collName); err != nil {
			return fmt.Errorf("create collection %s: %w", collName, err)
		}
		utils.Logger.Info().Str("collection", collName).Msg("collection created")
	}

	return s.ensureIndexes(ctx)
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		LeadsCollection: {
			{Keys: bson.D{{Key: "contact", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "leadNo", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "followupDate", Value: 1}}},
		},
		ChannelPartnersCollection: {
			{Keys: bson.D{{Key: "contact", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "channelPartnerNo", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "followupDate", Value: 1}}},
		},
		LeadRemarksCollection: {
			{Keys: bson.D{{Key: "parentNo", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		ChannelPartnerRemarksCollection: {
			{Keys: bson.D{{Key: "parentNo", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}

	for collName, idx := range indexes {
		if _, err := s.db.Collection(collName).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collName, err)
		}
	}
	return nil
}

// Status reports document counts per collection.
func (s *MongoStore) Status(ctx context.Context) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(allCollections))
	for _, collName := range allCollections {
		count, err := s.db.Collection(collName).CountDocuments(ctx, bson.M{})
		if err != nil {
			utils.Logger.Error().Err(err).Str("collection", collName).Msg("count collection failed")
			result[collName] = map[string]interface{}{"count": 0, "error": err.Error()}
			continue
		}
		result[collName] = map[string]interface{}{"count": count}
	}
	return result, nil
}
