// Package shopify implements the platform.AdminClient port against the
// Shopify GraphQL Admin API.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/platform"
)

// maxResponseSize is the maximum allowed Admin API response size (4MB)
const maxResponseSize = 4 * 1024 * 1024

const (
	orderGIDPrefix   = "gid://shopify/Order/"
	variantGIDPrefix = "gid://shopify/ProductVariant/"
)

// Client is an AdminClient bound to one shop's domain and access token.
// It is safe for concurrent use; the underlying http.Client is shared.
type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
	logger      *zap.Logger
}

// graphQLRequest is the Admin API request envelope
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// graphQLResponse is the Admin API response envelope
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// userError is Shopify's mutation-level validation error
type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// do executes one GraphQL request and unmarshals the data payload into out
func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", platform.ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", platform.ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", platform.ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return platform.ErrAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		return platform.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: unexpected status %d", platform.ErrRequestFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", platform.ErrRequestFailed, err)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
	}
	if len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		if first.Extensions.Code == "THROTTLED" {
			return platform.ErrRateLimited
		}
		return fmt.Errorf("%w: %s", platform.ErrRequestFailed, first.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
		}
	}
	return nil
}

// userErrorsToErr folds Shopify mutation userErrors into a wrapped sentinel
func userErrorsToErr(sentinel error, errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("%w: %s", sentinel, strings.Join(msgs, "; "))
}

// gidTail extracts the numeric tail of a gid, returning zero for anything
// that does not end in a number
func gidTail(gid string) int64 {
	idx := strings.LastIndex(gid, "/")
	if idx < 0 || idx == len(gid)-1 {
		return 0
	}
	n, err := strconv.ParseInt(gid[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

const findVariantQuery = `
query findVariantBySKU($query: String!) {
  productVariants(first: 1, query: $query) {
    edges {
      node {
        id
        sku
        title
        price
        product { id }
      }
    }
  }
}`

// FindVariantBySKU looks up a catalog variant by its exact SKU
func (c *Client) FindVariantBySKU(ctx context.Context, sku string) (*platform.Variant, error) {
	var data struct {
		ProductVariants struct {
			Edges []struct {
				Node struct {
					ID      string `json:"id"`
					SKU     string `json:"sku"`
					Title   string `json:"title"`
					Price   string `json:"price"`
					Product struct {
						ID string `json:"id"`
					} `json:"product"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"productVariants"`
	}

	variables := map[string]interface{}{
		"query": fmt.Sprintf("sku:%q", sku),
	}
	if err := c.do(ctx, findVariantQuery, variables, &data); err != nil {
		return nil, err
	}
	if len(data.ProductVariants.Edges) == 0 {
		return nil, fmt.Errorf("%w: %s", platform.ErrVariantNotFound, sku)
	}

	node := data.ProductVariants.Edges[0].Node
	price, err := decimal.NewFromString(node.Price)
	if err != nil {
		price = decimal.Zero
	}
	return &platform.Variant{
		ID:        node.ID,
		ProductID: node.Product.ID,
		SKU:       node.SKU,
		Title:     node.Title,
		Price:     price,
	}, nil
}

const orderEditBeginMutation = `
mutation orderEditBegin($id: ID!) {
  orderEditBegin(id: $id) {
    calculatedOrder {
      id
      lineItems(first: 250) {
        edges {
          node {
            id
            quantity
            sku
            variant { id }
          }
        }
      }
    }
    userErrors { field message }
  }
}`

// BeginOrderEdit opens an edit session and captures the line mapping
func (c *Client) BeginOrderEdit(ctx context.Context, orderID int64) (*platform.EditSession, error) {
	var data struct {
		OrderEditBegin struct {
			CalculatedOrder *struct {
				ID        string `json:"id"`
				LineItems struct {
					Edges []struct {
						Node struct {
							ID       string `json:"id"`
							Quantity int    `json:"quantity"`
							SKU      string `json:"sku"`
							Variant  *struct {
								ID string `json:"id"`
							} `json:"variant"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"lineItems"`
			} `json:"calculatedOrder"`
			UserErrors []userError `json:"userErrors"`
		} `json:"orderEditBegin"`
	}

	variables := map[string]interface{}{
		"id": orderGIDPrefix + strconv.FormatInt(orderID, 10),
	}
	if err := c.do(ctx, orderEditBeginMutation, variables, &data); err != nil {
		return nil, err
	}
	if err := userErrorsToErr(platform.ErrEditRejected, data.OrderEditBegin.UserErrors); err != nil {
		return nil, err
	}
	if data.OrderEditBegin.CalculatedOrder == nil {
		return nil, fmt.Errorf("%w: order %d", platform.ErrOrderNotFound, orderID)
	}

	calc := data.OrderEditBegin.CalculatedOrder
	session := &platform.EditSession{
		ID:      calc.ID,
		OrderID: orderID,
		Lines:   make([]platform.EditLine, 0, len(calc.LineItems.Edges)),
	}
	for _, edge := range calc.LineItems.Edges {
		line := platform.EditLine{
			ID:       edge.Node.ID,
			SKU:      edge.Node.SKU,
			Quantity: edge.Node.Quantity,
		}
		if edge.Node.Variant != nil {
			line.VariantID = gidTail(edge.Node.Variant.ID)
		}
		session.Lines = append(session.Lines, line)
	}
	return session, nil
}

const orderEditAddVariantMutation = `
mutation orderEditAddVariant($id: ID!, $variantId: ID!, $quantity: Int!) {
  orderEditAddVariant(id: $id, variantId: $variantId, quantity: $quantity, allowDuplicates: true) {
    calculatedLineItem { id }
    userErrors { field message }
  }
}`

// AddVariantToEdit stages the addition of a variant and returns the new
// session-scoped line identifier
func (c *Client) AddVariantToEdit(ctx context.Context, sessionID string, variantID string, quantity int) (string, error) {
	var data struct {
		OrderEditAddVariant struct {
			CalculatedLineItem *struct {
				ID string `json:"id"`
			} `json:"calculatedLineItem"`
			UserErrors []userError `json:"userErrors"`
		} `json:"orderEditAddVariant"`
	}

	variables := map[string]interface{}{
		"id":        sessionID,
		"variantId": variantID,
		"quantity":  quantity,
	}
	if err := c.do(ctx, orderEditAddVariantMutation, variables, &data); err != nil {
		return "", err
	}
	if err := userErrorsToErr(platform.ErrEditRejected, data.OrderEditAddVariant.UserErrors); err != nil {
		return "", err
	}
	if data.OrderEditAddVariant.CalculatedLineItem == nil {
		return "", fmt.Errorf("%w: no line returned for variant %s", platform.ErrInvalidResponse, variantID)
	}
	return data.OrderEditAddVariant.CalculatedLineItem.ID, nil
}

const orderEditSetQuantityMutation = `
mutation orderEditSetQuantity($id: ID!, $lineItemId: ID!, $quantity: Int!) {
  orderEditSetQuantity(id: $id, lineItemId: $lineItemId, quantity: $quantity, restock: true) {
    calculatedLineItem { id }
    userErrors { field message }
  }
}`

// SetEditLineQuantity stages a quantity change; zero retires the line
func (c *Client) SetEditLineQuantity(ctx context.Context, sessionID string, lineID string, quantity int) error {
	var data struct {
		OrderEditSetQuantity struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"orderEditSetQuantity"`
	}

	variables := map[string]interface{}{
		"id":         sessionID,
		"lineItemId": lineID,
		"quantity":   quantity,
	}
	if err := c.do(ctx, orderEditSetQuantityMutation, variables, &data); err != nil {
		return err
	}
	return userErrorsToErr(platform.ErrEditLineNotFound, data.OrderEditSetQuantity.UserErrors)
}

const orderEditCommitMutation = `
mutation orderEditCommit($id: ID!, $notifyCustomer: Boolean!) {
  orderEditCommit(id: $id, notifyCustomer: $notifyCustomer) {
    order { id }
    userErrors { field message }
  }
}`

// CommitOrderEdit finalizes the edit session
func (c *Client) CommitOrderEdit(ctx context.Context, sessionID string, notifyCustomer bool) error {
	var data struct {
		OrderEditCommit struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"orderEditCommit"`
	}

	variables := map[string]interface{}{
		"id":             sessionID,
		"notifyCustomer": notifyCustomer,
	}
	if err := c.do(ctx, orderEditCommitMutation, variables, &data); err != nil {
		return err
	}
	return userErrorsToErr(platform.ErrEditRejected, data.OrderEditCommit.UserErrors)
}

const activeSubscriptionQuery = `
query activeSubscriptions {
  currentAppInstallation {
    activeSubscriptions {
      name
      status
      test
    }
  }
}`

// ActiveSubscription returns the shop's current app subscription, or nil
// when the shop has never subscribed
func (c *Client) ActiveSubscription(ctx context.Context) (*platform.Subscription, error) {
	var data struct {
		CurrentAppInstallation struct {
			ActiveSubscriptions []struct {
				Name   string `json:"name"`
				Status string `json:"status"`
				Test   bool   `json:"test"`
			} `json:"activeSubscriptions"`
		} `json:"currentAppInstallation"`
	}

	if err := c.do(ctx, activeSubscriptionQuery, nil, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrSubscriptionUnavailable, err)
	}
	subs := data.CurrentAppInstallation.ActiveSubscriptions
	if len(subs) == 0 {
		return nil, nil
	}

	first := subs[0]
	return &platform.Subscription{
		Name:   first.Name,
		Status: platform.SubscriptionStatus(first.Status),
		Test:   first.Test,
	}, nil
}

// Ensure Client implements the AdminClient port
var _ platform.AdminClient = (*Client)(nil)
