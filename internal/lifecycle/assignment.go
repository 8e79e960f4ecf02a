package lifecycle

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/backend"
	"github.com/washline/washsync/internal/model"
)

// AssignRequest attaches a catalog service to an order.
type AssignRequest struct {
	OrderID   string
	ServiceID string
	// UserID defaults to the signed-in staff user.
	UserID string
	// Price defaults to the catalog price when zero.
	Price decimal.Decimal
	// Salary defaults to the pair's salary setting when nil. An explicit
	// salary for a pair without a setting creates one.
	Salary *decimal.Decimal
}

// AssignService creates a service assignment and adds it to the order,
// which recomputes the order total.
func (c *Controller) AssignService(ctx context.Context, req AssignRequest) (*model.ServiceAssignment, error) {
	ctx, span := c.tracer.Start(ctx, "lifecycle.AssignService",
		trace.WithAttributes(
			attribute.String("order.id", req.OrderID),
			attribute.String("service.id", req.ServiceID),
		),
	)
	defer span.End()

	release, err := c.Acquire(req.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	o, ok := c.store.Get(req.OrderID)
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Status.Terminal() {
		return nil, ErrOrderClosed
	}

	var name string
	if c.catalog != nil {
		if entry, ok := c.catalog.Get(req.ServiceID); ok {
			name = entry.Name
			if req.Price.IsZero() {
				req.Price = entry.Price
			}
		}
	}
	if !req.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	if req.UserID == "" {
		if c.ident == nil {
			return nil, ErrUnknownAssignee
		}
		if req.UserID, err = c.ident.UserID(); err != nil {
			return nil, errors.Wrap(err, "resolve assignee")
		}
	}

	var salary decimal.Decimal
	if req.Salary != nil {
		salary = *req.Salary
		if salary.IsNegative() {
			return nil, ErrInvalidSalary
		}
	} else {
		if salary, _, err = c.ResolveSalary(ctx, req.ServiceID, req.UserID, req.Price); err != nil {
			return nil, err
		}
	}

	a, err := c.api.CreateAssignment(ctx, model.AssignmentRequest{
		OrderID:   req.OrderID,
		ServiceID: req.ServiceID,
		UserID:    req.UserID,
		Price:     req.Price,
		Salary:    salary,
	})
	if err != nil {
		return nil, errors.Wrap(err, "assign service")
	}
	if a.ServiceName == "" {
		a.ServiceName = name
	}

	c.store.AddAssignment(*a)
	c.lg.Info("Service assigned",
		zap.String("order_id", a.OrderID),
		zap.String("assignment_id", a.ID),
		zap.String("service_id", a.ServiceID),
		zap.String("price", a.Price.String()),
	)

	// Only a confirmed assignment may leave a salary setting behind.
	if req.Salary != nil && salary.IsPositive() {
		if err := c.rememberSalary(ctx, req.ServiceID, req.UserID, salary); err != nil {
			c.lg.Warn("Salary setting not saved",
				zap.String("service_id", req.ServiceID),
				zap.String("user_id", req.UserID),
				zap.Error(err),
			)
		}
	}
	return a, nil
}

// RemoveAssignment deletes an assignment and drops it from its order,
// which recomputes the order total. The assignment must belong to orderID.
func (c *Controller) RemoveAssignment(ctx context.Context, orderID, assignmentID string) error {
	release, err := c.Acquire(orderID)
	if err != nil {
		return err
	}
	defer release()

	o, ok := c.store.Get(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status.Terminal() {
		return ErrOrderClosed
	}
	if !hasAssignment(o, assignmentID) {
		return ErrAssignmentNotFound
	}
	if err := c.api.DeleteAssignment(ctx, assignmentID); err != nil {
		return errors.Wrap(err, "remove assignment")
	}
	if !c.store.RemoveAssignment(orderID, assignmentID) {
		c.lg.Warn("Removed assignment was not cached",
			zap.String("order_id", orderID),
			zap.String("assignment_id", assignmentID),
		)
	}
	return nil
}

func hasAssignment(o model.Order, assignmentID string) bool {
	for _, a := range o.Assignments {
		if a.ID == assignmentID {
			return true
		}
	}
	return false
}

// ResolveSalary returns the salary the pair's setting yields for price.
// found is false, with a zero salary, when the pair has no setting.
func (c *Controller) ResolveSalary(ctx context.Context, serviceID, userID string, price decimal.Decimal) (salary decimal.Decimal, found bool, err error) {
	s, err := c.api.GetSalarySetting(ctx, serviceID, userID)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return decimal.Zero, false, nil
	case err != nil:
		return decimal.Zero, false, errors.Wrap(err, "resolve salary")
	}
	return s.SalaryFor(price), true, nil
}

// rememberSalary stores salary as the pair's fixed setting unless the pair
// already has one.
func (c *Controller) rememberSalary(ctx context.Context, serviceID, userID string, salary decimal.Decimal) error {
	_, err := c.api.GetSalarySetting(ctx, serviceID, userID)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, backend.ErrNotFound):
		return errors.Wrap(err, "look up salary setting")
	}
	if err := c.api.CreateSalarySetting(ctx, model.SalarySetting{
		ServiceID: serviceID,
		UserID:    userID,
		Amount:    salary,
	}); err != nil {
		return errors.Wrap(err, "create salary setting")
	}
	return nil
}
