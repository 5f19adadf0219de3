package engine

import "github.com/example/fleet-tracking/internal/models"

// Visible decides whether a recipient may see a reporter's position.
// Admins see everyone; non-admins see every other non-admin; an admin's
// own movements are visible only to other admins. Evaluated fresh per
// event against the live registry, never cached.
func Visible(reporter, recipient models.Role) bool {
	if recipient == models.RoleAdmin {
		return true
	}
	return reporter != models.RoleAdmin
}
