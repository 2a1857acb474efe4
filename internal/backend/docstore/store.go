package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/technest/internal/backend"
)

const (
	sortKeyCart     = "CART"
	sortKeyWishlist = "WISHLIST"
)

// DynamoAPI is the subset of *dynamodb.Client the store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store keeps per-user cart and wishlist documents in one DynamoDB table
// keyed by (pk, sk). It serves backend.CartAPI and backend.WishlistAPI.
type Store struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

type cartLine struct {
	ProductID string `dynamodbav:"product_id"`
	Quantity  int    `dynamodbav:"quantity"`
}

type cartDocument struct {
	PK        string     `dynamodbav:"pk"`
	SK        string     `dynamodbav:"sk"`
	Lines     []cartLine `dynamodbav:"lines"`
	UpdatedAt string     `dynamodbav:"updated_at"`
}

type wishlistDocument struct {
	PK         string   `dynamodbav:"pk"`
	SK         string   `dynamodbav:"sk"`
	ProductIDs []string `dynamodbav:"product_ids"`
	UpdatedAt  string   `dynamodbav:"updated_at"`
}

func NewStore(client DynamoAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, now: time.Now}
}

func partitionKey(userID string) string {
	return "USER#" + userID
}

func (s *Store) key(ctx context.Context, sortKey string) (map[string]types.AttributeValue, error) {
	userID := backend.UserFrom(ctx)
	if userID == "" {
		return nil, backend.ErrNoUser
	}
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: partitionKey(userID)},
		"sk": &types.AttributeValueMemberS{Value: sortKey},
	}, nil
}

// getDocument loads the document at sortKey into out. Returns false when absent.
func (s *Store) getDocument(ctx context.Context, sortKey string, out any) (bool, error) {
	key, err := s.key(ctx, sortKey)
	if err != nil {
		return false, err
	}
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to get %s document: %w", sortKey, err)
	}
	if len(result.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s document: %w", sortKey, err)
	}
	return true, nil
}

func (s *Store) putDocument(ctx context.Context, doc any) error {
	av, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

func (s *Store) loadCart(ctx context.Context) (*cartDocument, error) {
	doc := &cartDocument{}
	if _, err := s.getDocument(ctx, sortKeyCart, doc); err != nil {
		return nil, err
	}
	doc.PK = partitionKey(backend.UserFrom(ctx))
	doc.SK = sortKeyCart
	return doc, nil
}

func (s *Store) saveCart(ctx context.Context, doc *cartDocument) error {
	doc.UpdatedAt = s.now().UTC().Format(time.RFC3339Nano)
	return s.putDocument(ctx, doc)
}

// GetCart returns the cart document. Products carry only their id; the
// document store holds no catalog data, so TotalPrice is zero.
func (s *Store) GetCart(ctx context.Context) (*backend.Cart, error) {
	doc, err := s.loadCart(ctx)
	if err != nil {
		return nil, err
	}
	cart := &backend.Cart{Products: make([]backend.CartLine, 0, len(doc.Lines))}
	for _, line := range doc.Lines {
		cart.Products = append(cart.Products, backend.CartLine{
			Product:  backend.Product{ID: line.ProductID},
			Quantity: line.Quantity,
		})
	}
	return cart, nil
}

func (s *Store) AddToCart(ctx context.Context, productID string, quantity int) error {
	doc, err := s.loadCart(ctx)
	if err != nil {
		return err
	}
	for i := range doc.Lines {
		if doc.Lines[i].ProductID == productID {
			doc.Lines[i].Quantity += quantity
			return s.saveCart(ctx, doc)
		}
	}
	doc.Lines = append(doc.Lines, cartLine{ProductID: productID, Quantity: quantity})
	return s.saveCart(ctx, doc)
}

func (s *Store) UpdateCartQuantity(ctx context.Context, productID string, quantity int) error {
	doc, err := s.loadCart(ctx)
	if err != nil {
		return err
	}
	for i := range doc.Lines {
		if doc.Lines[i].ProductID == productID {
			doc.Lines[i].Quantity = quantity
			return s.saveCart(ctx, doc)
		}
	}
	return backend.ErrNotFound
}

func (s *Store) DeleteCartItem(ctx context.Context, productID string) error {
	doc, err := s.loadCart(ctx)
	if err != nil {
		return err
	}
	kept := doc.Lines[:0]
	for _, line := range doc.Lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	doc.Lines = kept
	return s.saveCart(ctx, doc)
}

func (s *Store) ClearCart(ctx context.Context) error {
	key, err := s.key(ctx, sortKeyCart)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete cart document: %w", err)
	}
	return nil
}

func (s *Store) loadWishlist(ctx context.Context) (*wishlistDocument, error) {
	doc := &wishlistDocument{}
	if _, err := s.getDocument(ctx, sortKeyWishlist, doc); err != nil {
		return nil, err
	}
	doc.PK = partitionKey(backend.UserFrom(ctx))
	doc.SK = sortKeyWishlist
	return doc, nil
}

func (s *Store) GetWishlist(ctx context.Context) ([]backend.Product, error) {
	doc, err := s.loadWishlist(ctx)
	if err != nil {
		return nil, err
	}
	products := make([]backend.Product, 0, len(doc.ProductIDs))
	for _, id := range doc.ProductIDs {
		products = append(products, backend.Product{ID: id})
	}
	return products, nil
}

// AddToWishlist is idempotent.
func (s *Store) AddToWishlist(ctx context.Context, productID string) error {
	doc, err := s.loadWishlist(ctx)
	if err != nil {
		return err
	}
	for _, id := range doc.ProductIDs {
		if id == productID {
			return nil
		}
	}
	doc.ProductIDs = append(doc.ProductIDs, productID)
	doc.UpdatedAt = s.now().UTC().Format(time.RFC3339Nano)
	return s.putDocument(ctx, doc)
}

func (s *Store) RemoveFromWishlist(ctx context.Context, productID string) error {
	doc, err := s.loadWishlist(ctx)
	if err != nil {
		return err
	}
	kept := doc.ProductIDs[:0]
	for _, id := range doc.ProductIDs {
		if id != productID {
			kept = append(kept, id)
		}
	}
	doc.ProductIDs = kept
	doc.UpdatedAt = s.now().UTC().Format(time.RFC3339Nano)
	return s.putDocument(ctx, doc)
}
