package engine

import (
	"testing"

	"github.com/example/fleet-tracking/internal/models"
)

func TestVisible(t *testing.T) {
	cases := []struct {
		reporter, recipient models.Role
		want                bool
	}{
		{models.RoleDriver, models.RoleCustomer, true},
		{models.RoleCustomer, models.RoleDriver, true},
		{models.RoleDriver, models.RoleDriver, true},
		{models.RoleDriver, models.RoleAdmin, true},
		{models.RoleCustomer, models.RoleAdmin, true},
		{models.RoleAdmin, models.RoleAdmin, true},
		{models.RoleAdmin, models.RoleDriver, false},
		{models.RoleAdmin, models.RoleCustomer, false},
	}
	for _, c := range cases {
		if got := Visible(c.reporter, c.recipient); got != c.want {
			t.Errorf("Visible(%s, %s) = %v, want %v", c.reporter, c.recipient, got, c.want)
		}
	}
}
