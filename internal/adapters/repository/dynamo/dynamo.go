// Package dynamo implements repository.Store on the DynamoDB tables the
// hosted GraphQL API resolves against.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/domain/model"
)

// API is the subset of *dynamodb.Client the store uses.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Tables names the three tables and the profile user index.
type Tables struct {
	Scores       string
	Histories    string
	Profiles     string
	ProfileIndex string
}

// Store is a DynamoDB backed repository.Store.
type Store struct {
	api    API
	tables Tables
	now    func() time.Time
}

// New wraps an existing client.
func New(api API, tables Tables) *Store {
	return &Store{api: api, tables: tables, now: time.Now}
}

// Dial builds a client from the default AWS credential chain. A non-empty
// endpoint points the client at DynamoDB Local or another compatible service.
func Dial(ctx context.Context, region, endpoint string, tables Tables) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for DynamoDB: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, tables), nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", repository.ErrUnavailable, op, err)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// putNew writes item only when no item with the same id exists.
func (s *Store) putNew(ctx context.Context, op, table string, item map[string]types.AttributeValue) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("%s: build condition: %w", op, err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(table),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
	}
	if err != nil {
		return unavailable(op, err)
	}
	return nil
}

// scanAll pages through table and returns every item matching filter.
func (s *Store) scanAll(ctx context.Context, op, table string, filter *expression.ConditionBuilder) ([]map[string]types.AttributeValue, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(table)}
	if filter != nil {
		expr, err := expression.NewBuilder().WithFilter(*filter).Build()
		if err != nil {
			return nil, fmt.Errorf("%s: build filter: %w", op, err)
		}
		in.FilterExpression = expr.Filter()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}

	var items []map[string]types.AttributeValue
	pages := dynamodb.NewScanPaginator(s.api, in)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, unavailable(op, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// CreateGameScore puts the record under its idempotency key. An existing
// item is reported as repository.ErrDuplicate.
func (s *Store) CreateGameScore(ctx context.Context, rec model.ScoreRecord) (model.ScoreRecord, error) {
	rec = rec.WithKey()
	item, err := attributevalue.MarshalMap(toScoreItem(rec))
	if err != nil {
		return model.ScoreRecord{}, fmt.Errorf("%s: marshal: %w", repository.OpCreateGameScore, err)
	}
	if err := s.putNew(ctx, repository.OpCreateGameScore, s.tables.Scores, item); err != nil {
		return model.ScoreRecord{}, err
	}
	return rec, nil
}

// ListGameScores scans the score table for one game type.
func (s *Store) ListGameScores(ctx context.Context, gameType string) ([]model.ScoreRecord, error) {
	filter := expression.Name("gameType").Equal(expression.Value(gameType))
	items, err := s.scanAll(ctx, repository.OpListGameScores, s.tables.Scores, &filter)
	if err != nil {
		return nil, err
	}
	var wire []scoreItem
	if err := attributevalue.UnmarshalListOfMaps(items, &wire); err != nil {
		return nil, fmt.Errorf("%s: unmarshal: %w", repository.OpListGameScores, err)
	}
	out := make([]model.ScoreRecord, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.record())
	}
	return out, nil
}

// CreateGameHistory puts the row under its idempotency key.
func (s *Store) CreateGameHistory(ctx context.Context, rec model.HistoryRecord) (model.HistoryRecord, error) {
	rec = rec.WithKey()
	item, err := attributevalue.MarshalMap(toHistoryItem(rec))
	if err != nil {
		return model.HistoryRecord{}, fmt.Errorf("%s: marshal: %w", repository.OpCreateGameHistory, err)
	}
	if err := s.putNew(ctx, repository.OpCreateGameHistory, s.tables.Histories, item); err != nil {
		return model.HistoryRecord{}, err
	}
	return rec, nil
}

// ListGameHistories scans the whole history table.
func (s *Store) ListGameHistories(ctx context.Context) ([]model.HistoryRecord, error) {
	items, err := s.scanAll(ctx, repository.OpListGameHistories, s.tables.Histories, nil)
	if err != nil {
		return nil, err
	}
	var wire []historyItem
	if err := attributevalue.UnmarshalListOfMaps(items, &wire); err != nil {
		return nil, fmt.Errorf("%s: unmarshal: %w", repository.OpListGameHistories, err)
	}
	out := make([]model.HistoryRecord, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.record())
	}
	return out, nil
}

// GetUserProfile queries the profile user index for userID.
func (s *Store) GetUserProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("userId").Equal(expression.Value(userID))).
		Build()
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("%s: build key condition: %w", repository.OpGetUserProfile, err)
	}
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Profiles),
		IndexName:                 aws.String(s.tables.ProfileIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return model.UserProfile{}, unavailable(repository.OpGetUserProfile, err)
	}
	if len(out.Items) == 0 {
		return model.UserProfile{}, fmt.Errorf("profile of %s: %w", userID, repository.ErrNotFound)
	}
	var p model.UserProfile
	if err := attributevalue.UnmarshalMap(out.Items[0], &p); err != nil {
		return model.UserProfile{}, fmt.Errorf("%s: unmarshal: %w", repository.OpGetUserProfile, err)
	}
	return p, nil
}

// CreateUserProfile puts a new profile item.
func (s *Store) CreateUserProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("%s: marshal: %w", repository.OpCreateUserProfile, err)
	}
	if err := s.putNew(ctx, repository.OpCreateUserProfile, s.tables.Profiles, item); err != nil {
		return model.UserProfile{}, err
	}
	return p, nil
}

// UpdateUserProfile adds one to the game counter and sets the activity
// fields. A missing profile is reported as repository.ErrNotFound.
func (s *Store) UpdateUserProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	update := expression.
		Add(expression.Name("totalGamesPlayed"), expression.Value(1)).
		Set(expression.Name("lastActiveAt"), expression.Value(p.LastActiveAt.UTC().Format(time.RFC3339Nano)))
	if p.Username != "" {
		update = update.Set(expression.Name("username"), expression.Value(p.Username))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("id"))).
		Build()
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("%s: build update: %w", repository.OpUpdateUserProfile, err)
	}

	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Profiles),
		Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: p.ID}},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return model.UserProfile{}, fmt.Errorf("%s %s: %w", repository.OpUpdateUserProfile, p.ID, repository.ErrNotFound)
	}
	if err != nil {
		return model.UserProfile{}, unavailable(repository.OpUpdateUserProfile, err)
	}
	var updated model.UserProfile
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return model.UserProfile{}, fmt.Errorf("%s: unmarshal: %w", repository.OpUpdateUserProfile, err)
	}
	return updated, nil
}

var _ repository.Store = (*Store)(nil)
