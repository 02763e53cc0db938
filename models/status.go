package models

// OrderStatus is the lifecycle position of an order.
type OrderStatus string

const (
	StatusPending            OrderStatus = "pending"
	StatusApproved           OrderStatus = "approved"
	StatusRejected           OrderStatus = "rejected"
	StatusReadyForProduction OrderStatus = "ready_for_production"
	StatusInProduction       OrderStatus = "in_production"
	StatusInWarehouse        OrderStatus = "in_warehouse"
	StatusOutWarehouse       OrderStatus = "out_warehouse"
	StatusCompleted          OrderStatus = "completed"
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusReadyForProduction,
	StatusInProduction,
	StatusInWarehouse,
	StatusOutWarehouse,
	StatusCompleted,
}

// WarehouseStatuses are the statuses shown on the warehouse board.
var WarehouseStatuses = []OrderStatus{
	StatusReadyForProduction,
	StatusInProduction,
	StatusInWarehouse,
	StatusOutWarehouse,
}

var statusLabels = map[OrderStatus]string{
	StatusPending:            "待审核",
	StatusApproved:           "审核通过",
	StatusRejected:           "审核拒绝",
	StatusReadyForProduction: "待生产",
	StatusInProduction:       "生产中",
	StatusInWarehouse:        "已入库",
	StatusOutWarehouse:       "已出库",
	StatusCompleted:          "已完成",
}

func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s OrderStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}
