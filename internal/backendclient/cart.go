package backendclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/appmart/checkout-core/internal/domain/checkout"
)

var _ checkout.CartStore = (*CartClient)(nil)

// CartClient talks to the cart service. The checkout core reads the cart at
// checkout time and clears it only after an accepted success.
type CartClient struct {
	baseURL string
	http    *http.Client
}

// NewCartClient creates a client for the cart service at baseURL.
func NewCartClient(baseURL string) *CartClient {
	return &CartClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(),
	}
}

// Lines returns the customer's cart identifier and current line items.
func (c *CartClient) Lines(ctx context.Context, customerID string) (string, checkout.CartSnapshot, error) {
	u := fmt.Sprintf("%s/carts/%s", c.baseURL, url.PathEscape(customerID))

	body, err := do(ctx, c.http, http.MethodGet, u, nil)
	if err != nil {
		return "", nil, errors.Wrap(err, "read cart")
	}

	var (
		cartID   string
		snapshot checkout.CartSnapshot
	)
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "cartId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			cartID = v
			return nil
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				line, err := decodeCartLine(d)
				if err != nil {
					return err
				}
				snapshot = append(snapshot, line)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return "", nil, errors.Wrap(err, "decode cart response")
	}
	return cartID, snapshot, nil
}

// Clear empties the customer's cart.
func (c *CartClient) Clear(ctx context.Context, customerID string) error {
	u := fmt.Sprintf("%s/carts/%s", c.baseURL, url.PathEscape(customerID))

	if _, err := do(ctx, c.http, http.MethodDelete, u, nil); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

func decodeCartLine(d *jx.Decoder) (checkout.CartLine, error) {
	var line checkout.CartLine
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "cartId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			line.CartID = v
			return nil
		case "productId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			line.ProductID = v
			return nil
		case "price":
			v, err := d.Str()
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(v)
			if err != nil {
				return errors.Wrap(err, "parse price")
			}
			line.Price = price
			return nil
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			line.Quantity = v
			return nil
		default:
			return d.Skip()
		}
	})
	return line, err
}
