package domain

import (
	"sort"
	"strings"
)

// CatalogVersion identifies the compiled permission catalog revision.
const CatalogVersion = 4

// PermissionID is the stable identifier of a permission (e.g. "tickets_view").
type PermissionID string

// String returns the raw identifier.
func (p PermissionID) String() string {
	return string(p)
}

// PermissionCategory groups permissions for presentation.
type PermissionCategory string

const (
	CategoryRoutes   PermissionCategory = "routes"
	CategoryTickets  PermissionCategory = "tickets"
	CategoryBuses    PermissionCategory = "buses"
	CategorySchedule PermissionCategory = "schedule"
	CategoryReports  PermissionCategory = "reports"
	CategorySettings PermissionCategory = "settings"
	CategoryAdmins   PermissionCategory = "admins"
	CategoryProfile  PermissionCategory = "profile"
	CategorySupport  PermissionCategory = "support"
)

// Permission identifiers known to the catalog.
const (
	PermRoutesView   PermissionID = "routes_view"
	PermRoutesCreate PermissionID = "routes_create"
	PermRoutesEdit   PermissionID = "routes_edit"
	PermRoutesDelete PermissionID = "routes_delete"

	PermTicketsView   PermissionID = "tickets_view"
	PermTicketsCreate PermissionID = "tickets_create"
	PermTicketsCancel PermissionID = "tickets_cancel"
	PermTicketsRefund PermissionID = "tickets_refund"

	PermBusesView   PermissionID = "buses_view"
	PermBusesManage PermissionID = "buses_manage"

	PermScheduleView   PermissionID = "schedule_view"
	PermScheduleManage PermissionID = "schedule_manage"

	PermReportsView   PermissionID = "reports_view"
	PermReportsExport PermissionID = "reports_export"

	PermSettingsView   PermissionID = "settings_view"
	PermSettingsManage PermissionID = "settings_manage"

	PermAdminsView        PermissionID = "admins_view"
	PermAdminsManage      PermissionID = "admins_manage"
	PermPermissionsManage PermissionID = "permissions_manage"
	PermAuditLogsView     PermissionID = "audit_logs_view"

	PermProfileView PermissionID = "profile_view"
	PermProfileEdit PermissionID = "profile_edit"

	PermSupportView    PermissionID = "support_view"
	PermSupportRespond PermissionID = "support_respond"
)

// Permission describes a single capability.
type Permission struct {
	ID          PermissionID       `json:"id"`
	Label       string             `json:"label"`
	Description string             `json:"description"`
	Category    PermissionCategory `json:"category"`
}

// Catalog is the immutable, versioned set of permissions compiled into the binary.
// It is safe for concurrent use.
type Catalog struct {
	version     int
	permissions []Permission
	index       map[PermissionID]int
}

// NewCatalog builds a catalog from the supplied definitions. Duplicate identifiers keep the first definition.
func NewCatalog(version int, permissions []Permission) *Catalog {
	c := &Catalog{
		version:     version,
		permissions: make([]Permission, 0, len(permissions)),
		index:       make(map[PermissionID]int, len(permissions)),
	}
	for _, p := range permissions {
		id := PermissionID(strings.TrimSpace(string(p.ID)))
		if id == "" {
			continue
		}
		if _, exists := c.index[id]; exists {
			continue
		}
		p.ID = id
		c.index[id] = len(c.permissions)
		c.permissions = append(c.permissions, p)
	}
	return c
}

// DefaultCatalog returns the compiled back-office permission catalog.
func DefaultCatalog() *Catalog {
	return NewCatalog(CatalogVersion, []Permission{
		{ID: PermRoutesView, Label: "View routes", Description: "Browse routes and stops", Category: CategoryRoutes},
		{ID: PermRoutesCreate, Label: "Create routes", Description: "Add new routes", Category: CategoryRoutes},
		{ID: PermRoutesEdit, Label: "Edit routes", Description: "Change route details and fares", Category: CategoryRoutes},
		{ID: PermRoutesDelete, Label: "Delete routes", Description: "Remove routes", Category: CategoryRoutes},

		{ID: PermTicketsView, Label: "View tickets", Description: "Browse sold and reserved tickets", Category: CategoryTickets},
		{ID: PermTicketsCreate, Label: "Sell tickets", Description: "Issue tickets at the counter", Category: CategoryTickets},
		{ID: PermTicketsCancel, Label: "Cancel tickets", Description: "Cancel issued tickets", Category: CategoryTickets},
		{ID: PermTicketsRefund, Label: "Refund tickets", Description: "Approve ticket refunds", Category: CategoryTickets},

		{ID: PermBusesView, Label: "View buses", Description: "Browse the fleet", Category: CategoryBuses},
		{ID: PermBusesManage, Label: "Manage buses", Description: "Add, edit and retire buses", Category: CategoryBuses},

		{ID: PermScheduleView, Label: "View schedule", Description: "Browse departures", Category: CategorySchedule},
		{ID: PermScheduleManage, Label: "Manage schedule", Description: "Create and change departures", Category: CategorySchedule},

		{ID: PermReportsView, Label: "View reports", Description: "Sales and occupancy reports", Category: CategoryReports},
		{ID: PermReportsExport, Label: "Export reports", Description: "Download report exports", Category: CategoryReports},

		{ID: PermSettingsView, Label: "View settings", Description: "Read tenant settings", Category: CategorySettings},
		{ID: PermSettingsManage, Label: "Manage settings", Description: "Change tenant settings", Category: CategorySettings},

		{ID: PermAdminsView, Label: "View staff", Description: "Browse console users and roles", Category: CategoryAdmins},
		{ID: PermAdminsManage, Label: "Manage staff", Description: "Create users and custom roles", Category: CategoryAdmins},
		{ID: PermPermissionsManage, Label: "Manage permission overrides", Description: "Grant or deny single permissions per user", Category: CategoryAdmins},
		{ID: PermAuditLogsView, Label: "View audit log", Description: "Read the audit trail", Category: CategoryAdmins},

		{ID: PermProfileView, Label: "View profile", Description: "Read own profile", Category: CategoryProfile},
		{ID: PermProfileEdit, Label: "Edit profile", Description: "Change own profile", Category: CategoryProfile},

		{ID: PermSupportView, Label: "View support tickets", Description: "Read customer support requests", Category: CategorySupport},
		{ID: PermSupportRespond, Label: "Respond to support", Description: "Answer customer support requests", Category: CategorySupport},
	})
}

// Version returns the catalog revision.
func (c *Catalog) Version() int {
	if c == nil {
		return 0
	}
	return c.version
}

// Has reports whether the identifier is defined.
func (c *Catalog) Has(id PermissionID) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[id]
	return ok
}

// Get returns the permission definition for id.
func (c *Catalog) Get(id PermissionID) (Permission, bool) {
	if c == nil {
		return Permission{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return Permission{}, false
	}
	return c.permissions[i], true
}

// All returns a copy of every permission in declaration order.
func (c *Catalog) All() []Permission {
	if c == nil {
		return nil
	}
	out := make([]Permission, len(c.permissions))
	copy(out, c.permissions)
	return out
}

// IDs returns every permission identifier in declaration order.
func (c *Catalog) IDs() []PermissionID {
	if c == nil {
		return nil
	}
	out := make([]PermissionID, 0, len(c.permissions))
	for _, p := range c.permissions {
		out = append(out, p.ID)
	}
	return out
}

// ByCategory groups permissions by category, preserving declaration order inside each group.
func (c *Catalog) ByCategory() map[PermissionCategory][]Permission {
	grouped := make(map[PermissionCategory][]Permission)
	if c == nil {
		return grouped
	}
	for _, p := range c.permissions {
		grouped[p.Category] = append(grouped[p.Category], p)
	}
	return grouped
}

// Unknown returns the identifiers from ids that the catalog does not define.
func (c *Catalog) Unknown(ids []PermissionID) []PermissionID {
	var unknown []PermissionID
	for _, id := range ids {
		if !c.Has(id) {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// PermissionSet is an unordered set of permission identifiers.
type PermissionSet map[PermissionID]struct{}

// NewPermissionSet builds a set from ids.
func NewPermissionSet(ids ...PermissionID) PermissionSet {
	set := make(PermissionSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s PermissionSet) Has(id PermissionID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id.
func (s PermissionSet) Add(id PermissionID) {
	s[id] = struct{}{}
}

// Remove deletes id.
func (s PermissionSet) Remove(id PermissionID) {
	delete(s, id)
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same identifiers.
func (s PermissionSet) Equal(other PermissionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the identifiers in lexical order.
func (s PermissionSet) Sorted() []PermissionID {
	out := make([]PermissionID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
