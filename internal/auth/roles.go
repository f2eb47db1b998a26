package auth

import (
	"strings"

	"github.com/aethra/oficina/internal/models"
)

// roleAliases maps every historical spelling onto the normalised role
var roleAliases = map[string]models.Role{
	"admin":         models.RoleAdmin,
	"administrador": models.RoleAdmin,
	"adm":           models.RoleAdmin,
	"developer":     models.RoleDeveloper,
	"desenvolvedor": models.RoleDeveloper,
	"dev":           models.RoleDeveloper,
	"standard-user": models.RoleStandardUser,
	"standard_user": models.RoleStandardUser,
	"usuario":       models.RoleStandardUser,
	"usuário":       models.RoleStandardUser,
	"user":          models.RoleStandardUser,
	"padrao":        models.RoleStandardUser,
	"padrão":        models.RoleStandardUser,
	"comum":         models.RoleStandardUser,
}

// NormalizeRole maps a role string, case-insensitively, onto the enum
func NormalizeRole(s string) (models.Role, bool) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	return r, ok
}

// =============================================================================
// PERMISSIONS
// =============================================================================

// Action represents a permission action
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

// Resource is a protected API resource
type Resource string

const (
	ResourceClientes     Resource = "clientes"
	ResourceOrcamentos   Resource = "orcamentos"
	ResourceDadosEmpresa Resource = "dados_empresa"
	ResourceUsuarios     Resource = "usuarios"
	ResourceHistorico    Resource = "historico"
)

// standardUserPermissions is what a standard user may do; admins and
// developers may do everything.
var standardUserPermissions = map[Resource]map[Action]bool{
	ResourceClientes: {
		ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true,
	},
	ResourceOrcamentos: {
		ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true,
	},
	ResourceDadosEmpresa: {ActionView: true},
	ResourceHistorico:    {ActionView: true},
}

// CheckPermission reports whether role may perform action on resource
func CheckPermission(role models.Role, resource Resource, action Action) bool {
	if role.IsAdmin() {
		return true
	}
	if role != models.RoleStandardUser {
		return false
	}
	return standardUserPermissions[resource][action]
}
