package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/refgraph"
)

// FetchOpenOrders returns every order that is not completed yet, with its
// assignments. The answer uses $id/$ref reference markers.
func (c *Client) FetchOpenOrders(ctx context.Context) ([]model.Order, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoints.OpenOrders, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "fetch open orders")
	}
	v, err := refgraph.DecodeResolved(body)
	if err != nil {
		return nil, errors.Wrap(err, "fetch open orders")
	}
	return decodeOrders(v), nil
}

// FetchCatalog returns the service catalog.
func (c *Client) FetchCatalog(ctx context.Context) ([]model.ServiceCatalogEntry, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoints.Catalog, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "fetch catalog")
	}
	v, err := refgraph.DecodeResolved(body)
	if err != nil {
		return nil, errors.Wrap(err, "fetch catalog")
	}
	return decodeCatalog(v), nil
}

// OrderTotal returns the backend's authoritative services total of an order.
func (c *Client) OrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoints.OrderTotal, idQuery("id", orderID), nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "get order total")
	}
	total, err := DecodeAmount(body)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "get order total")
	}
	return total, nil
}

type assignmentBody struct {
	ServiceID  string      `json:"serviceId"`
	OrderID    string      `json:"orderId"`
	Price      json.Number `json:"price"`
	Salary     json.Number `json:"salary"`
	AssigneeID string      `json:"assigneeId"`
}

// CreateAssignment attaches a service to an order.
func (c *Client) CreateAssignment(ctx context.Context, req model.AssignmentRequest) (*model.ServiceAssignment, error) {
	body, err := c.do(ctx, http.MethodPost, c.endpoints.CreateService, nil, assignmentBody{
		ServiceID:  req.ServiceID,
		OrderID:    req.OrderID,
		Price:      json.Number(req.Price.String()),
		Salary:     json.Number(req.Salary.String()),
		AssigneeID: req.UserID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create assignment")
	}

	a := &model.ServiceAssignment{
		OrderID:   req.OrderID,
		ServiceID: req.ServiceID,
		UserID:    req.UserID,
		Price:     req.Price,
		Salary:    req.Salary,
	}
	// The answer is either the created record or just its id.
	if v, err := refgraph.DecodeResolved(body); err == nil {
		if obj := refgraph.AsObject(v); obj != nil {
			if created, ok := decodeAssignment(obj, req.OrderID); ok {
				a.ID = created.ID
				if created.ServiceName != "" {
					a.ServiceName = created.ServiceName
				}
				return a, nil
			}
		}
	}
	id, err := DecodeID(body)
	if err != nil {
		return nil, errors.Wrap(err, "create assignment: decode id")
	}
	if id == "" {
		return nil, errors.New("create assignment: empty id in response")
	}
	a.ID = id
	return a, nil
}

// DeleteAssignment detaches a service assignment.
func (c *Client) DeleteAssignment(ctx context.Context, assignmentID string) error {
	if _, err := c.do(ctx, http.MethodDelete, c.endpoints.DeleteService, idQuery("id", assignmentID), nil); err != nil {
		return errors.Wrap(err, "delete assignment")
	}
	return nil
}

// MarkReady flags the order as ready for pickup.
func (c *Client) MarkReady(ctx context.Context, orderID string) error {
	return c.patchOrder(ctx, c.endpoints.Ready, orderID, "mark ready")
}

// Reopen returns a ready order to the open state.
func (c *Client) Reopen(ctx context.Context, orderID string) error {
	return c.patchOrder(ctx, c.endpoints.Reopen, orderID, "reopen")
}

// Complete closes the order.
func (c *Client) Complete(ctx context.Context, orderID string) error {
	return c.patchOrder(ctx, c.endpoints.Complete, orderID, "complete")
}

// Delete deletes the order.
func (c *Client) Delete(ctx context.Context, orderID string) error {
	return c.patchOrder(ctx, c.endpoints.Delete, orderID, "delete")
}

func (c *Client) patchOrder(ctx context.Context, path, orderID, op string) error {
	if _, err := c.do(ctx, http.MethodPatch, path, idQuery("id", orderID), nil); err != nil {
		return errors.Wrapf(err, "%s order %s", op, orderID)
	}
	return nil
}

type transactionBody struct {
	PaymentMethodID int         `json:"paymentMethodId"`
	Summ            json.Number `json:"summ"`
	ToPay           json.Number `json:"toPay"`
}

// CreateTransaction records a payment for the order and returns the
// transaction id, which may be empty when the backend does not echo it.
func (c *Client) CreateTransaction(ctx context.Context, orderID string, req model.TransactionRequest) (string, error) {
	body, err := c.do(ctx, http.MethodPost, c.endpoints.Transaction,
		idQuery(c.endpoints.TransactionOrderParam, orderID),
		transactionBody{
			PaymentMethodID: req.PaymentMethodID,
			Summ:            json.Number(req.Summ.String()),
			ToPay:           json.Number(req.ToPay.String()),
		})
	if err != nil {
		return "", errors.Wrap(err, "create transaction")
	}
	id, err := DecodeID(body)
	if err != nil {
		return "", errors.Wrap(err, "create transaction: decode id")
	}
	return id, nil
}

// GetSalarySetting returns the salary rule of a (service, user) pair.
// ErrNotFound means the pair has no rule yet.
func (c *Client) GetSalarySetting(ctx context.Context, serviceID, userID string) (*model.SalarySetting, error) {
	q := url.Values{}
	q.Set("serviceId", serviceID)
	q.Set("aspNetUserId", userID)
	body, err := c.do(ctx, http.MethodGet, c.endpoints.SalaryGet, q, nil)
	if err != nil {
		return nil, errors.Wrap(err, "get salary setting")
	}
	return decodeSalarySetting(body, serviceID, userID)
}

type salarySettingBody struct {
	ServiceID string      `json:"serviceId"`
	UserID    string      `json:"aspNetUserId"`
	Percent   json.Number `json:"percent"`
	Amount    json.Number `json:"amount"`
}

// CreateSalarySetting stores a salary rule for a (service, user) pair.
func (c *Client) CreateSalarySetting(ctx context.Context, s model.SalarySetting) error {
	_, err := c.do(ctx, http.MethodPost, c.endpoints.SalaryCreate, nil, salarySettingBody{
		ServiceID: s.ServiceID,
		UserID:    s.UserID,
		Percent:   json.Number(s.Percent.String()),
		Amount:    json.Number(s.Amount.String()),
	})
	if err != nil {
		return errors.Wrap(err, "create salary setting")
	}
	return nil
}
