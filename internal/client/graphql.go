package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"shopsync/internal/domain"
)

// GraphQLError is an error entry returned by the server.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

func (e *GraphQLError) Error() string {
	return e.Message
}

// Code returns extensions.code, if any.
func (e *GraphQLError) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// ErrorCode returns the code of the first GraphQLError in err's chain.
func ErrorCode(err error) string {
	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) {
		return gqlErr.Code()
	}
	return ""
}

// GraphQLClient posts operations to the /graphql endpoint.
type GraphQLClient struct {
	url    string
	client *http.Client

	mu    sync.RWMutex
	token string
}

func NewGraphQLClient(url string, timeout time.Duration) *GraphQLClient {
	return &GraphQLClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// SetToken sets the bearer credential sent with every request. Empty sends
// none.
func (c *GraphQLClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []*GraphQLError `json:"errors"`
}

// Do executes query and decodes the data object into out. GraphQL errors are
// returned as *GraphQLError values joined together.
func (c *GraphQLClient) Do(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var gr graphqlResponse
		if json.Unmarshal(raw, &gr) == nil && len(gr.Errors) > 0 {
			return joinErrors(gr.Errors)
		}
		return fmt.Errorf("graphql: status=%d body=%s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return decodeResponse(resp.Body, out)
}

func decodeResponse(r io.Reader, out interface{}) error {
	var gr graphqlResponse
	if err := json.NewDecoder(r).Decode(&gr); err != nil {
		return fmt.Errorf("graphql: decode response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return joinErrors(gr.Errors)
	}
	if out == nil || len(gr.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("graphql: decode data: %w", err)
	}
	return nil
}

func joinErrors(list []*GraphQLError) error {
	errs := make([]error, 0, len(list))
	for _, e := range list {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

const cartFields = `items { productId quantity product { id title price description category image rating { rate count } } } total`

const productFields = `id title price description category image rating { rate count }`

const (
	cartQuery           = `query { cart { ` + cartFields + ` } }`
	addToCartMutation   = `mutation($productId: ID!, $quantity: Int) { addToCart(productId: $productId, quantity: $quantity) { ` + cartFields + ` } }`
	updateItemMutation  = `mutation($productId: ID!, $quantity: Int!) { updateCartItem(productId: $productId, quantity: $quantity) { ` + cartFields + ` } }`
	removeItemMutation  = `mutation($productId: ID!) { removeFromCart(productId: $productId) { ` + cartFields + ` } }`
	clearCartMutation   = `mutation { clearCart { ` + cartFields + ` } }`
	productsQuery       = `query($category: String, $limit: Int, $offset: Int) { products(category: $category, limit: $limit, offset: $offset) { items { ` + productFields + ` } total hasMore } }`
	productQuery        = `query($id: ID!) { product(id: $id) { ` + productFields + ` } }`
	categoriesQuery     = `query { categories }`
	cartUpdatedDocument = `subscription { cartUpdated { ` + cartFields + ` } }`
)

func (c *GraphQLClient) Cart(ctx context.Context) (domain.Cart, error) {
	var out struct {
		Cart domain.Cart `json:"cart"`
	}
	err := c.Do(ctx, cartQuery, nil, &out)
	return out.Cart, err
}

func (c *GraphQLClient) AddToCart(ctx context.Context, productID string, quantity int) (domain.Cart, error) {
	var out struct {
		Cart domain.Cart `json:"addToCart"`
	}
	err := c.Do(ctx, addToCartMutation, map[string]interface{}{"productId": productID, "quantity": quantity}, &out)
	return out.Cart, err
}

func (c *GraphQLClient) UpdateCartItem(ctx context.Context, productID string, quantity int) (domain.Cart, error) {
	var out struct {
		Cart domain.Cart `json:"updateCartItem"`
	}
	err := c.Do(ctx, updateItemMutation, map[string]interface{}{"productId": productID, "quantity": quantity}, &out)
	return out.Cart, err
}

func (c *GraphQLClient) RemoveFromCart(ctx context.Context, productID string) (domain.Cart, error) {
	var out struct {
		Cart domain.Cart `json:"removeFromCart"`
	}
	err := c.Do(ctx, removeItemMutation, map[string]interface{}{"productId": productID}, &out)
	return out.Cart, err
}

func (c *GraphQLClient) ClearCart(ctx context.Context) (domain.Cart, error) {
	var out struct {
		Cart domain.Cart `json:"clearCart"`
	}
	err := c.Do(ctx, clearCartMutation, nil, &out)
	return out.Cart, err
}

// ProductsPage is one page of the products query.
type ProductsPage struct {
	Items   []domain.Product `json:"items"`
	Total   int              `json:"total"`
	HasMore bool             `json:"hasMore"`
}

// Products lists the catalog. Nil arguments are omitted.
func (c *GraphQLClient) Products(ctx context.Context, category *string, limit, offset *int) (ProductsPage, error) {
	vars := map[string]interface{}{}
	if category != nil {
		vars["category"] = *category
	}
	if limit != nil {
		vars["limit"] = *limit
	}
	if offset != nil {
		vars["offset"] = *offset
	}
	var out struct {
		Products ProductsPage `json:"products"`
	}
	err := c.Do(ctx, productsQuery, vars, &out)
	return out.Products, err
}

// Product returns nil when the id is unknown.
func (c *GraphQLClient) Product(ctx context.Context, id string) (*domain.Product, error) {
	var out struct {
		Product *domain.Product `json:"product"`
	}
	err := c.Do(ctx, productQuery, map[string]interface{}{"id": id}, &out)
	return out.Product, err
}

func (c *GraphQLClient) Categories(ctx context.Context) ([]string, error) {
	var out struct {
		Categories []string `json:"categories"`
	}
	err := c.Do(ctx, categoriesQuery, nil, &out)
	return out.Categories, err
}
