package models

// Role is the fixed permission class of a user. Every user has exactly one.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleOrderClerk      Role = "order_clerk"
	RoleReviewer        Role = "reviewer"
	RoleTechnician      Role = "technician"
	RoleWarehouseClerk  Role = "warehouse_clerk"
	RoleWorkshopTracker Role = "workshop_tracker"
)

// AllRoles lists roles in display order.
var AllRoles = []Role{
	RoleAdmin,
	RoleOrderClerk,
	RoleReviewer,
	RoleTechnician,
	RoleWarehouseClerk,
	RoleWorkshopTracker,
}

var roleLabels = map[Role]string{
	RoleAdmin:           "系统管理员",
	RoleOrderClerk:      "下单员",
	RoleReviewer:        "审核员",
	RoleTechnician:      "技术员",
	RoleWarehouseClerk:  "仓库管理员",
	RoleWorkshopTracker: "车间跟单",
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label returns the display name shown in the back office.
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}
