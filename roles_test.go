package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/vedantsinghthakur/aspcrm-auth"
)

func TestInferRole(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected auth.Role
	}{
		{"empty email", "", auth.RoleOperator},
		{"admin substring", "admin@aspcranes.com", auth.RoleAdmin},
		{"admin wins over ops", "admin@ops.com", auth.RoleAdmin},
		{"sales substring", "john.sales@aspcranes.com", auth.RoleSalesAgent},
		{"sales wins over manager", "sales.manager@aspcranes.com", auth.RoleSalesAgent},
		{"ops substring", "ops@aspcranes.com", auth.RoleOperationsManager},
		{"manager substring", "manager@aspcranes.com", auth.RoleOperationsManager},
		{"plain email", "bob@aspcranes.com", auth.RoleOperator},
		{"domain match counts too", "bob@salesforce.com", auth.RoleSalesAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.InferRole(tt.email))
		})
	}

	t.Run("total over arbitrary inputs", func(t *testing.T) {
		inputs := []string{"", "a", "@", "ADMIN@x.com", "опс@x.com", "a@b@c", "x@manager"}
		for _, email := range inputs {
			role := auth.InferRole(email)
			assert.True(t, auth.IsValidRole(role), "InferRole(%q) = %q", email, role)
		}
	})
}

func TestRoleHelpers(t *testing.T) {
	t.Run("closed set", func(t *testing.T) {
		assert.Len(t, auth.AllRoles(), 4)
		for _, role := range auth.AllRoles() {
			assert.True(t, auth.IsValidRole(role))
		}
	})

	t.Run("parse", func(t *testing.T) {
		role, ok := auth.ParseRole("sales_agent")
		assert.True(t, ok)
		assert.Equal(t, auth.RoleSalesAgent, role)

		_, ok = auth.ParseRole("superuser")
		assert.False(t, ok)

		_, ok = auth.ParseRole("")
		assert.False(t, ok)
	})
}
