package domain

import (
	"fmt"
	"strings"
	"time"
)

// SystemTag names a compile-time role template.
type SystemTag string

const (
	SystemOwner    SystemTag = "owner"
	SystemManager  SystemTag = "manager"
	SystemOperator SystemTag = "operator"
	SystemViewer   SystemTag = "viewer"
	// SystemAdmin is the top-level superuser tag.
	SystemAdmin SystemTag = "admin"
	SystemStaff SystemTag = "staff"
)

// RoleKind discriminates RoleRef variants.
type RoleKind uint8

const (
	RoleKindNone RoleKind = iota
	RoleKindSystem
	RoleKindCustom
)

// RoleRef points at either a system template or a persisted custom role.
// The zero value references no role and resolves to the empty set.
type RoleRef struct {
	kind   RoleKind
	tag    SystemTag
	custom int64
}

// SystemRef references a system template.
func SystemRef(tag SystemTag) RoleRef {
	return RoleRef{kind: RoleKindSystem, tag: tag}
}

// CustomRef references a persisted custom role.
func CustomRef(id int64) RoleRef {
	return RoleRef{kind: RoleKindCustom, custom: id}
}

// Kind returns the variant.
func (r RoleRef) Kind() RoleKind {
	return r.kind
}

// System returns the template tag when the reference is a system variant.
func (r RoleRef) System() (SystemTag, bool) {
	return r.tag, r.kind == RoleKindSystem
}

// Custom returns the custom role id when the reference is a custom variant.
func (r RoleRef) Custom() (int64, bool) {
	return r.custom, r.kind == RoleKindCustom
}

// IsSuperuser reports whether the reference is the top-level admin tag.
func (r RoleRef) IsSuperuser() bool {
	return r.kind == RoleKindSystem && r.tag == SystemAdmin
}

// Equal reports whether both references point at the same role.
func (r RoleRef) Equal(other RoleRef) bool {
	return r == other
}

// IsZero reports whether no role is referenced.
func (r RoleRef) IsZero() bool {
	return r.kind == RoleKindNone
}

func (r RoleRef) String() string {
	switch r.kind {
	case RoleKindSystem:
		return "system:" + string(r.tag)
	case RoleKindCustom:
		return fmt.Sprintf("custom:%d", r.custom)
	default:
		return "none"
	}
}

// RoleClaim is the serialised form of a RoleRef carried in tokens and events.
type RoleClaim struct {
	Kind   string `json:"kind"`
	System string `json:"system,omitempty"`
	Custom int64  `json:"custom,omitempty"`
}

const (
	roleClaimSystem = "system"
	roleClaimCustom = "custom"
)

// Claim converts the reference into its explicit wire form.
func (r RoleRef) Claim() RoleClaim {
	switch r.kind {
	case RoleKindSystem:
		return RoleClaim{Kind: roleClaimSystem, System: string(r.tag)}
	case RoleKindCustom:
		return RoleClaim{Kind: roleClaimCustom, Custom: r.custom}
	default:
		return RoleClaim{}
	}
}

// Ref converts a wire claim back into a RoleRef. Unknown kinds yield the zero reference.
func (c RoleClaim) Ref() RoleRef {
	switch c.Kind {
	case roleClaimSystem:
		tag := SystemTag(strings.TrimSpace(c.System))
		if tag == "" {
			return RoleRef{}
		}
		return SystemRef(tag)
	case roleClaimCustom:
		if c.Custom <= 0 {
			return RoleRef{}
		}
		return CustomRef(c.Custom)
	default:
		return RoleRef{}
	}
}

// RoleTemplate is an immutable system role compiled into the binary.
type RoleTemplate struct {
	Tag         SystemTag      `json:"tag"`
	Name        string         `json:"name"`
	Color       string         `json:"color"`
	Permissions []PermissionID `json:"permissions"`
}

// Role is a persisted custom role.
type Role struct {
	ID          int64
	Name        string
	Description *string
	Permissions []PermissionID
	Color       string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var systemTemplates = []RoleTemplate{
	{
		Tag:   SystemOwner,
		Name:  "Owner",
		Color: "purple",
		Permissions: []PermissionID{
			PermRoutesView, PermRoutesCreate, PermRoutesEdit, PermRoutesDelete,
			PermTicketsView, PermTicketsCreate, PermTicketsCancel, PermTicketsRefund,
			PermBusesView, PermBusesManage,
			PermScheduleView, PermScheduleManage,
			PermReportsView, PermReportsExport,
			PermSettingsView, PermSettingsManage,
			PermAdminsView, PermAdminsManage, PermPermissionsManage, PermAuditLogsView,
			PermProfileView, PermProfileEdit,
			PermSupportView, PermSupportRespond,
		},
	},
	{
		Tag:   SystemManager,
		Name:  "Manager",
		Color: "blue",
		Permissions: []PermissionID{
			PermRoutesView, PermRoutesCreate, PermRoutesEdit,
			PermTicketsView, PermTicketsCreate, PermTicketsCancel, PermTicketsRefund,
			PermBusesView, PermBusesManage,
			PermScheduleView, PermScheduleManage,
			PermReportsView, PermReportsExport,
			PermSettingsView,
			PermAdminsView,
			PermProfileView, PermProfileEdit,
			PermSupportView, PermSupportRespond,
		},
	},
	{
		Tag:   SystemOperator,
		Name:  "Operator",
		Color: "green",
		Permissions: []PermissionID{
			PermRoutesView,
			PermTicketsView, PermTicketsCreate, PermTicketsCancel,
			PermBusesView,
			PermScheduleView,
			PermProfileView, PermProfileEdit,
			PermSupportView, PermSupportRespond,
		},
	},
	{
		Tag:   SystemViewer,
		Name:  "Viewer",
		Color: "gray",
		Permissions: []PermissionID{
			PermRoutesView,
			PermTicketsView,
			PermBusesView,
			PermScheduleView,
			PermReportsView,
			PermProfileView,
		},
	},
	{
		Tag:   SystemAdmin,
		Name:  "Administrator",
		Color: "red",
		Permissions: []PermissionID{
			PermRoutesView, PermRoutesCreate, PermRoutesEdit, PermRoutesDelete,
			PermTicketsView, PermTicketsCreate, PermTicketsCancel, PermTicketsRefund,
			PermBusesView, PermBusesManage,
			PermScheduleView, PermScheduleManage,
			PermReportsView, PermReportsExport,
			PermSettingsView, PermSettingsManage,
			PermAdminsView, PermAdminsManage, PermPermissionsManage, PermAuditLogsView,
			PermProfileView, PermProfileEdit,
			PermSupportView, PermSupportRespond,
		},
	},
	{
		Tag:   SystemStaff,
		Name:  "Staff",
		Color: "teal",
		Permissions: []PermissionID{
			PermRoutesView,
			PermTicketsView, PermTicketsCreate,
			PermBusesView,
			PermScheduleView,
			PermReportsView,
			PermProfileView, PermProfileEdit,
			PermSupportView, PermSupportRespond,
		},
	},
}

// SystemTemplates returns copies of every compiled role template.
func SystemTemplates() []RoleTemplate {
	out := make([]RoleTemplate, 0, len(systemTemplates))
	for _, t := range systemTemplates {
		out = append(out, t.clone())
	}
	return out
}

// LookupTemplate finds the template for tag.
func LookupTemplate(tag SystemTag) (RoleTemplate, bool) {
	for _, t := range systemTemplates {
		if t.Tag == tag {
			return t.clone(), true
		}
	}
	return RoleTemplate{}, false
}

// IsSystemTag reports whether name collides with a system template tag or display name.
func IsSystemTag(name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, t := range systemTemplates {
		if normalized == string(t.Tag) || normalized == strings.ToLower(t.Name) {
			return true
		}
	}
	return false
}

func (t RoleTemplate) clone() RoleTemplate {
	perms := make([]PermissionID, len(t.Permissions))
	copy(perms, t.Permissions)
	t.Permissions = perms
	return t
}
