// Package authz holds the role/action authorization matrix.
//
// The matrix is a casbin enforcer loaded from a static policy table. Admin
// matches every action through the matcher, so admin never appears in the
// policy rows. Decisions are made against the role stored on the user row,
// looked up on every request.
package authz

import (
	"fmt"
	"slices"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/models"
)

// Action is a permission name checked before a handler runs.
type Action string

const (
	OrderCreate                Action = "order:create"
	OrderList                  Action = "order:list"
	OrderView                  Action = "order:view"
	OrderDownload              Action = "order:download"
	OrderPreview               Action = "order:preview"
	OrderStats                 Action = "order:stats"
	OrderResubmit              Action = "order:resubmit"
	OrderListPending           Action = "order:list_pending"
	OrderReview                Action = "order:review"
	OrderListApproved          Action = "order:list_approved"
	OrderUploadProductionSheet Action = "order:upload_production_sheet"
	OrderListReady             Action = "order:list_ready"
	OrderStartProduction       Action = "order:start_production"
	OrderListInProduction      Action = "order:list_in_production"
	OrderListWarehouse         Action = "order:list_warehouse"
	OrderInbound               Action = "order:inbound"
	OrderOutbound              Action = "order:outbound"
	OrderComplete              Action = "order:complete"
	OrderDelete                Action = "order:delete"
	UserManage                 Action = "user:manage"
	UserStats                  Action = "user:stats"
	SystemLogs                 Action = "system:logs"
)

const modelText = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == "admin" || (r.sub == p.sub && r.act == p.act)
`

var everyone = []models.Role{
	models.RoleOrderClerk,
	models.RoleReviewer,
	models.RoleTechnician,
	models.RoleWarehouseClerk,
	models.RoleWorkshopTracker,
}

// policy lists the non-admin roles allowed to perform each action.
// Actions absent from the table are admin-only.
var policy = map[Action][]models.Role{
	OrderCreate:                {models.RoleOrderClerk},
	OrderList:                  everyone,
	OrderView:                  everyone,
	OrderDownload:              everyone,
	OrderPreview:               everyone,
	OrderStats:                 everyone,
	OrderResubmit:              {models.RoleOrderClerk},
	OrderListPending:           {models.RoleReviewer},
	OrderReview:                {models.RoleReviewer},
	OrderListApproved:          {models.RoleTechnician, models.RoleWorkshopTracker},
	OrderUploadProductionSheet: {models.RoleTechnician},
	OrderListReady:             {models.RoleTechnician, models.RoleWarehouseClerk},
	OrderStartProduction:       {models.RoleWarehouseClerk},
	OrderListInProduction:      {models.RoleWarehouseClerk},
	OrderListWarehouse:         {models.RoleWarehouseClerk},
	OrderInbound:               {models.RoleWarehouseClerk},
	OrderOutbound:              {models.RoleWarehouseClerk},
}

// AllActions lists every action the API checks.
var AllActions = []Action{
	OrderCreate, OrderList, OrderView, OrderDownload, OrderPreview, OrderStats,
	OrderResubmit, OrderListPending, OrderReview, OrderListApproved,
	OrderUploadProductionSheet, OrderListReady, OrderStartProduction,
	OrderListInProduction, OrderListWarehouse, OrderInbound, OrderOutbound,
	OrderComplete, OrderDelete, UserManage, UserStats, SystemLogs,
}

// Matrix answers (role, action) questions.
type Matrix struct {
	enforcer *casbin.SyncedEnforcer
}

// NewMatrix builds the enforcer and loads the policy table.
func NewMatrix() (*Matrix, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorization model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	rules := make([][]string, 0, len(policy)*2)
	for action, roles := range policy {
		for _, role := range roles {
			rules = append(rules, []string{string(role), string(action)})
		}
	}
	if _, err := enforcer.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("failed to load authorization policy: %w", err)
	}

	return &Matrix{enforcer: enforcer}, nil
}

// Allowed reports whether role may perform action. Unknown roles are denied.
func (m *Matrix) Allowed(role models.Role, action Action) bool {
	if !role.Valid() {
		return false
	}
	ok, err := m.enforcer.Enforce(string(role), string(action))
	if err != nil {
		return false
	}
	return ok
}

// Authorize returns a Forbidden error naming the allowed roles when role is denied.
func (m *Matrix) Authorize(role models.Role, action Action) error {
	if m.Allowed(role, action) {
		return nil
	}
	return errs.Forbidden(string(role), RolesFor(action)).WithDetail("action", string(action))
}

// ActionsFor lists every action role may perform.
func (m *Matrix) ActionsFor(role models.Role) []string {
	actions := make([]string, 0, len(AllActions))
	for _, action := range AllActions {
		if m.Allowed(role, action) {
			actions = append(actions, string(action))
		}
	}
	return actions
}

// RolesFor lists the roles allowed to perform action, admin first.
func RolesFor(action Action) []string {
	roles := []string{string(models.RoleAdmin)}
	for _, role := range models.AllRoles {
		if slices.Contains(policy[action], role) {
			roles = append(roles, string(role))
		}
	}
	return roles
}

// Permissions is the coarse capability summary returned at login for the UI.
type Permissions struct {
	CanCreateOrder bool `json:"can_create_order"`
	CanReviewOrder bool `json:"can_review_order"`
	CanAccessAdmin bool `json:"can_access_admin"`
	CanManageUsers bool `json:"can_manage_users"`
}

// Summary derives the UI capability flags for role.
func (m *Matrix) Summary(role models.Role) Permissions {
	return Permissions{
		CanCreateOrder: m.Allowed(role, OrderCreate),
		CanReviewOrder: m.Allowed(role, OrderReview),
		CanAccessAdmin: role == models.RoleAdmin || role == models.RoleReviewer,
		CanManageUsers: m.Allowed(role, UserManage),
	}
}
