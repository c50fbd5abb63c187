// Package dynamo implements store.CriteriaStore backed by an Amazon DynamoDB
// table whose partition key is the string attribute "key".
package dynamo

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// API is the subset of the DynamoDB client used by CriteriaStore.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// criteriaItem is the DynamoDB item shape. Empty sets are omitted because
// DynamoDB rejects empty string sets.
type criteriaItem struct {
	Key               string         `dynamodbav:"key"`
	Language          string         `dynamodbav:"language,omitempty"`
	MinAppVersions    map[string]int `dynamodbav:"minAppVersions"`
	MaxAppVersions    map[string]int `dynamodbav:"maxAppVersions"`
	AllOfGroups       []string       `dynamodbav:"allOfGroups,stringset,omitempty"`
	NoneOfGroups      []string       `dynamodbav:"noneOfGroups,stringset,omitempty"`
	AllOfSubstudyIDs  []string       `dynamodbav:"allOfSubstudyIds,stringset,omitempty"`
	NoneOfSubstudyIDs []string       `dynamodbav:"noneOfSubstudyIds,stringset,omitempty"`
}

// CriteriaStore implements store.CriteriaStore on a DynamoDB table.
type CriteriaStore struct {
	client API
	table  string
}

var _ store.CriteriaStore = (*CriteriaStore)(nil)

// New returns a CriteriaStore using client and table.
func New(client API, table string) *CriteriaStore {
	return &CriteriaStore{client: client, table: table}
}

// NewFromConfig loads the default AWS configuration and returns a
// CriteriaStore for table. A non-empty endpoint overrides the service
// endpoint (for DynamoDB Local and similar).
func NewFromConfig(ctx context.Context, table, region, endpoint string) (*CriteriaStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts []func(*dynamodb.Options)
	if endpoint != "" {
		opts = append(opts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return New(dynamodb.NewFromConfig(cfg, opts...), table), nil
}

func keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"key": &types.AttributeValueMemberS{Value: key}}
}

// GetCriteria returns store.ErrNotFound when the item does not exist.
func (s *CriteriaStore) GetCriteria(ctx context.Context, key string) (*model.Criteria, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get criteria %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("get criteria %s: %w", key, store.ErrNotFound)
	}
	return decodeItem(out.Item)
}

// PutCriteria replaces the item for c.Key().
func (s *CriteriaStore) PutCriteria(ctx context.Context, c *model.Criteria) error {
	if c.Key() == "" {
		return errors.New("put criteria: key is required")
	}
	item, err := attributevalue.MarshalMap(toItem(c))
	if err != nil {
		return fmt.Errorf("marshal criteria %s: %w", c.Key(), err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put criteria %s: %w", c.Key(), err)
	}
	return nil
}

// DeleteCriteria removes the item for key. DynamoDB deletes of absent items
// succeed, so repeated deletes are harmless.
func (s *CriteriaStore) DeleteCriteria(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttr(key),
	})
	if err != nil {
		return fmt.Errorf("dynamodb delete criteria %s: %w", key, err)
	}
	return nil
}

// ListCriteria scans the table for keys beginning with prefix and returns
// them ordered by key.
func (s *CriteriaStore) ListCriteria(ctx context.Context, prefix string) ([]*model.Criteria, error) {
	in := &dynamodb.ScanInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
	}
	if prefix != "" {
		in.FilterExpression = aws.String("begins_with(#k, :prefix)")
		in.ExpressionAttributeNames = map[string]string{"#k": "key"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		}
	}

	var out []*model.Criteria
	p := dynamodb.NewScanPaginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan criteria: %w", err)
		}
		for _, item := range page.Items {
			c, err := decodeItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *model.Criteria) int {
		return cmp.Compare(a.Key(), b.Key())
	})
	return out, nil
}

func toItem(c *model.Criteria) criteriaItem {
	return criteriaItem{
		Key:               c.Key(),
		Language:          c.Language(),
		MinAppVersions:    versionsOut(c.MinAppVersions()),
		MaxAppVersions:    versionsOut(c.MaxAppVersions()),
		AllOfGroups:       c.AllOfGroups(),
		NoneOfGroups:      c.NoneOfGroups(),
		AllOfSubstudyIDs:  c.AllOfSubstudyIDs(),
		NoneOfSubstudyIDs: c.NoneOfSubstudyIDs(),
	}
}

func decodeItem(item map[string]types.AttributeValue) (*model.Criteria, error) {
	var it criteriaItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal criteria: %w", err)
	}
	c := model.EmptyCriteria(it.Key)
	c.SetLanguage(it.Language)
	c.SetMinAppVersions(versionsIn(it.MinAppVersions))
	c.SetMaxAppVersions(versionsIn(it.MaxAppVersions))
	c.SetAllOfGroups(it.AllOfGroups)
	c.SetNoneOfGroups(it.NoneOfGroups)
	c.SetAllOfSubstudyIDs(it.AllOfSubstudyIDs)
	c.SetNoneOfSubstudyIDs(it.NoneOfSubstudyIDs)
	return c, nil
}

func versionsOut(m map[model.OperatingSystem]int) map[string]int {
	out := make(map[string]int, len(m))
	for os, v := range m {
		out[string(os)] = v
	}
	return out
}

func versionsIn(m map[string]int) map[model.OperatingSystem]int {
	out := make(map[model.OperatingSystem]int, len(m))
	for os, v := range m {
		out[model.OperatingSystem(os)] = v
	}
	return out
}
