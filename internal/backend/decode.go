package backend

import (
	"bytes"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/refgraph"
)

// The backend is inconsistent about scalar answers: the same figure comes
// back as a bare number, a quoted number or an object depending on the
// endpoint. The decoders below accept all three.

var amountKeys = [][]byte{
	[]byte("summ"), []byte("sum"), []byte("total"), []byte("totalServices"),
	[]byte("amount"), []byte("value"), []byte("result"),
}

var idKeys = [][]byte{
	[]byte("id"), []byte("washServiceId"), []byte("detailingServiceId"),
	[]byte("transactionId"), []byte("result"),
}

func matchKey(key []byte, keys [][]byte) bool {
	for _, k := range keys {
		if bytes.EqualFold(key, k) {
			return true
		}
	}
	return false
}

// DecodeAmount reads a monetary amount from a number, a numeric string or
// an object carrying one of the usual amount fields. Null reads as zero.
func DecodeAmount(data []byte) (decimal.Decimal, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return decimal.Zero, errors.New("empty amount")
	}
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "read number")
		}
		return decimal.NewFromString(string(n))
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "read string")
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		amount, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse amount %q", s)
		}
		return amount, nil
	case jx.Object:
		raw, err := findField(d, amountKeys)
		if err != nil {
			return decimal.Zero, err
		}
		if raw == nil {
			return decimal.Zero, errors.New("no amount field in object")
		}
		return DecodeAmount(raw)
	case jx.Null:
		return decimal.Zero, nil
	default:
		return decimal.Zero, errors.Errorf("unexpected amount payload %q", truncate(data))
	}
}

// DecodeID reads an identifier from a number, a string or an object with
// an id field. An empty body yields an empty id.
func DecodeID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", nil
	}
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", errors.Wrap(err, "read number")
		}
		return string(n), nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return "", errors.Wrap(err, "read string")
		}
		return s, nil
	case jx.Object:
		raw, err := findField(d, idKeys)
		if err != nil || raw == nil {
			return "", err
		}
		return DecodeID(raw)
	case jx.Null, jx.Bool:
		return "", nil
	default:
		return "", errors.Errorf("unexpected id payload %q", truncate(data))
	}
}

// findField returns a copy of the raw value of the first field matching
// keys, or nil.
func findField(d *jx.Decoder, keys [][]byte) ([]byte, error) {
	var found []byte
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if found != nil || !matchKey(key, keys) {
			return d.Skip()
		}
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		found = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read object")
	}
	return found, nil
}

// errorMessage extracts a human readable message from an error body.
func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	d := jx.DecodeBytes(body)
	switch d.Next() {
	case jx.String:
		if s, err := d.Str(); err == nil {
			return s
		}
	case jx.Object:
		var msg string
		_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if msg == "" && d.Next() == jx.String &&
				matchKey(key, [][]byte{[]byte("message"), []byte("error"), []byte("detail"), []byte("title")}) {
				s, err := d.Str()
				msg = s
				return err
			}
			return d.Skip()
		})
		if msg != "" {
			return msg
		}
	}
	return truncate(body)
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// decodeOrders maps a resolved order list onto model orders. Entries that
// are not objects (dangling references) are skipped.
func decodeOrders(v any) []model.Order {
	items := refgraph.AsArray(v)
	if items == nil {
		// Some endpoints wrap the list: {"orders": [...]}.
		items = refgraph.AsObject(v).Array("orders", "items", "data")
	}
	orders := make([]model.Order, 0, len(items))
	for _, item := range items {
		obj := refgraph.AsObject(item)
		if obj == nil {
			continue
		}
		o := decodeOrder(obj)
		if o.ID == "" {
			continue
		}
		orders = append(orders, o)
	}
	return orders
}

var assignmentKeys = []string{"washServices", "detailingServices", "services"}

func decodeOrder(obj refgraph.Object) model.Order {
	o := model.Order{
		ID:           obj.String("id", "washOrderId", "detailingOrderId"),
		Brand:        obj.String("brand", "carBrand"),
		Model:        obj.String("model", "carModel"),
		LicensePlate: obj.String("licensePlate", "carNumber"),
		PhoneNumber:  obj.String("phoneNumber", "phone"),
		CreatedAt:    obj.Time("createdAt", "dateCreated"),
		Status:       decodeStatus(obj),
	}
	if obj.Has(assignmentKeys...) {
		o.Assignments = []model.ServiceAssignment{}
		for _, item := range obj.Array(assignmentKeys...) {
			a, ok := decodeAssignment(refgraph.AsObject(item), o.ID)
			if ok {
				o.Assignments = append(o.Assignments, a)
			}
		}
		o.RecalculateTotal()
	} else if total, ok := obj.Decimal("totalServices", "summ"); ok {
		o.TotalServices = total
	}
	return o
}

func decodeStatus(obj refgraph.Object) enum.OrderStatus {
	if s := enum.OrderStatus(strings.ToLower(obj.String("status"))); s.Valid() {
		return s
	}
	switch {
	case obj.Bool("isDeleted"):
		return enum.OrderStatusDeleted
	case obj.Bool("isCompleted"):
		return enum.OrderStatusCompleted
	case obj.Bool("isReady"):
		return enum.OrderStatusReady
	}
	return enum.OrderStatusOpen
}

func decodeAssignment(obj refgraph.Object, orderID string) (model.ServiceAssignment, bool) {
	if obj == nil {
		return model.ServiceAssignment{}, false
	}
	service := obj.Object("service")
	user := obj.Object("aspNetUser", "user")

	a := model.ServiceAssignment{
		ID:          obj.String("id", "washServiceId", "detailingServiceId"),
		OrderID:     obj.String("washOrderId", "detailingOrderId", "orderId"),
		ServiceID:   obj.String("serviceId"),
		ServiceName: obj.String("serviceName", "name"),
		UserID:      obj.String("aspNetUserId", "userId", "assigneeId"),
	}
	if a.OrderID == "" {
		a.OrderID = orderID
	}
	if a.ServiceID == "" {
		a.ServiceID = service.String("id")
	}
	if a.ServiceName == "" {
		a.ServiceName = service.String("name")
	}
	if a.UserID == "" {
		a.UserID = user.String("id")
	}
	a.Price, _ = obj.Decimal("price")
	a.Salary, _ = obj.Decimal("salary")
	return a, a.ID != ""
}

func decodeCatalog(v any) []model.ServiceCatalogEntry {
	items := refgraph.AsArray(v)
	out := make([]model.ServiceCatalogEntry, 0, len(items))
	for _, item := range items {
		obj := refgraph.AsObject(item)
		id := obj.String("id", "serviceId")
		if id == "" {
			continue
		}
		price, _ := obj.Decimal("price")
		out = append(out, model.ServiceCatalogEntry{
			ID:    id,
			Name:  obj.String("name"),
			Price: price,
		})
	}
	return out
}

func decodeSalarySetting(body []byte, serviceID, userID string) (*model.SalarySetting, error) {
	s := &model.SalarySetting{ServiceID: serviceID, UserID: userID}

	v, err := refgraph.DecodeResolved(body)
	if err != nil {
		return nil, err
	}
	obj := refgraph.AsObject(v)
	if obj == nil {
		// Bare figure: a fixed salary amount.
		amount, err := DecodeAmount(body)
		if err != nil {
			return nil, errors.Wrap(err, "decode salary setting")
		}
		s.Amount = amount
		return s, nil
	}
	s.ID = obj.String("id")
	s.Percent, _ = obj.Decimal("percent", "salaryPercent")
	s.Amount, _ = obj.Decimal("amount", "salary")
	return s, nil
}
