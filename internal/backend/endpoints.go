package backend

import (
	"github.com/go-faster/errors"

	"github.com/washline/washsync/internal/enum"
)

// Endpoints is the path table of one order line. The wash and detailing
// lines expose the same operations under different names.
type Endpoints struct {
	OpenOrders    string
	OrderTotal    string
	Catalog       string
	CreateService string
	DeleteService string
	Ready         string
	Reopen        string
	Complete      string
	Delete        string
	Transaction   string
	// TransactionOrderParam names the query parameter carrying the order id
	// on Transaction.
	TransactionOrderParam string
	SalaryGet             string
	SalaryCreate          string
}

// WashEndpoints is the car-wash line.
var WashEndpoints = Endpoints{
	OpenOrders:            "/api/WashOrders/AllNotCompletedWashOrdersAsync",
	OrderTotal:            "/api/WashOrders/GetSummOfWashServicesOnOrder",
	Catalog:               "/api/Services/AllServices",
	CreateService:         "/api/WashServices/CreateWashService",
	DeleteService:         "/api/WashServices/DeleteWashService",
	Ready:                 "/api/WashOrders/ReadyWashOrder",
	Reopen:                "/api/WashOrders/ReopenWashOrder",
	Complete:              "/api/WashOrders/CompleteWashOrder",
	Delete:                "/api/WashOrders/deletewashorder",
	Transaction:           "/api/WashOrderTransactions/CreateWashOrderTransactionAsync",
	TransactionOrderParam: "washOrderId",
	SalaryGet:             "/api/SalarySettings/GetSalaryUser",
	SalaryCreate:          "/api/SalarySettings/createsalarysetting",
}

// DetailingEndpoints is the detailing line.
var DetailingEndpoints = Endpoints{
	OpenOrders:            "/api/DetailingOrders/AllNotCompletedOrders",
	OrderTotal:            "/api/DetailingOrders/GetSummOfDetailingServicesOnOrder",
	Catalog:               "/api/Services/AllServices",
	CreateService:         "/api/DetailingServices/CreateDetailingService",
	DeleteService:         "/api/DetailingServices/DeleteDetailingService",
	Ready:                 "/api/DetailingOrders/ReadyDetailingOrder",
	Reopen:                "/api/DetailingOrders/ReopenDetailingOrder",
	Complete:              "/api/DetailingOrders/CompleteDetailingOrder",
	Delete:                "/api/DetailingOrders/deletedetailingorder",
	Transaction:           "/api/DetailingOrderTransactions/CreateDetailingTransaction",
	TransactionOrderParam: "detailingOrderId",
	SalaryGet:             "/api/SalarySettings/GetSalaryUser",
	SalaryCreate:          "/api/SalarySettings/createsalarysetting",
}

// EndpointsFor returns the path table of line.
func EndpointsFor(line enum.Line) (Endpoints, error) {
	switch line {
	case enum.LineWash:
		return WashEndpoints, nil
	case enum.LineDetailing:
		return DetailingEndpoints, nil
	}
	return Endpoints{}, errors.Errorf("unknown order line %q", line)
}
