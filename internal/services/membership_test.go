package services

import (
	"testing"

	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/response"
)

func TestMembershipService_AddMember(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)
	newcomer := createTestUser(t, db, "newcomer", models.GlobalRoleNone)
	team := createTestTeam(t, db, "Team", nil, admin.ID)
	addTestMember(t, db, team.ID, admin.ID, models.TeamRoleAdmin)

	membership, err := svc.AddMember(admin.ID, team.ID, &AddMemberRequest{
		UserID: newcomer.ID,
		Role:   models.TeamRoleMember,
	})
	if err != nil {
		t.Fatalf("AddMember() error: %v", err)
	}
	if membership.Role != models.TeamRoleMember {
		t.Errorf("Role = %q, expected %q", membership.Role, models.TeamRoleMember)
	}
	if membership.TeamID != team.ID || membership.UserID != newcomer.ID {
		t.Error("membership should bind the user to the team")
	}
}

func TestMembershipService_AddMember_ByAncestorAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)
	newcomer := createTestUser(t, db, "newcomer", models.GlobalRoleNone)

	root := createTestTeam(t, db, "Root", nil, admin.ID)
	leaf := createTestTeam(t, db, "Leaf", &root.ID, admin.ID)
	addTestMember(t, db, root.ID, admin.ID, models.TeamRoleAdmin)

	_, err := svc.AddMember(admin.ID, leaf.ID, &AddMemberRequest{
		UserID: newcomer.ID,
		Role:   models.TeamRoleMember,
	})
	if err != nil {
		t.Fatalf("ancestor admin AddMember() error: %v", err)
	}
}

func TestMembershipService_AddMember_ForbiddenForMember(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	member := createTestUser(t, db, "member", models.GlobalRoleNone)
	newcomer := createTestUser(t, db, "newcomer", models.GlobalRoleNone)
	team := createTestTeam(t, db, "Team", nil, member.ID)
	addTestMember(t, db, team.ID, member.ID, models.TeamRoleMember)

	_, err := svc.AddMember(member.ID, team.ID, &AddMemberRequest{
		UserID: newcomer.ID,
		Role:   models.TeamRoleMember,
	})
	if !response.IsForbidden(err) {
		t.Errorf("plain member adding members should be forbidden, got %v", err)
	}
}

func TestMembershipService_AddMember_Duplicate(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)
	newcomer := createTestUser(t, db, "newcomer", models.GlobalRoleNone)
	team := createTestTeam(t, db, "Team", nil, admin.ID)
	addTestMember(t, db, team.ID, admin.ID, models.TeamRoleAdmin)

	_, err := svc.AddMember(admin.ID, team.ID, &AddMemberRequest{
		UserID: newcomer.ID,
		Role:   models.TeamRoleMember,
	})
	if err != nil {
		t.Fatalf("AddMember() error: %v", err)
	}

	_, err = svc.AddMember(admin.ID, team.ID, &AddMemberRequest{
		UserID: newcomer.ID,
		Role:   models.TeamRoleAdmin,
	})
	if !response.IsConflict(err) {
		t.Errorf("re-adding a member should conflict, got %v", err)
	}
}

func TestMembershipService_AddMember_InvalidRole(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)
	newcomer := createTestUser(t, db, "newcomer", models.GlobalRoleNone)
	team := createTestTeam(t, db, "Team", nil, admin.ID)
	addTestMember(t, db, team.ID, admin.ID, models.TeamRoleAdmin)

	_, err := svc.AddMember(admin.ID, team.ID, &AddMemberRequest{
		UserID: newcomer.ID,
		Role:   "owner",
	})
	if err == nil {
		t.Error("unknown role should be rejected")
	}
}

func TestMembershipService_AddMember_TargetsMissing(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)
	team := createTestTeam(t, db, "Team", nil, admin.ID)
	addTestMember(t, db, team.ID, admin.ID, models.TeamRoleAdmin)

	_, err := svc.AddMember(admin.ID, team.ID, &AddMemberRequest{
		UserID: 9999,
		Role:   models.TeamRoleMember,
	})
	if !response.IsNotFound(err) {
		t.Errorf("unknown user should yield not found, got %v", err)
	}

	_, err = svc.AddMember(admin.ID, 9999, &AddMemberRequest{
		UserID: admin.ID,
		Role:   models.TeamRoleMember,
	})
	if !response.IsNotFound(err) {
		t.Errorf("unknown team should yield not found, got %v", err)
	}
}

func TestMembershipService_ChangeRole_ScrumMasterOnly(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)
	member := createTestUser(t, db, "member", models.GlobalRoleNone)

	team := createTestTeam(t, db, "Team", nil, master.ID)
	addTestMember(t, db, team.ID, admin.ID, models.TeamRoleAdmin)
	addTestMember(t, db, team.ID, member.ID, models.TeamRoleMember)

	// Even the team's own admin may not reassign roles.
	_, err := svc.ChangeRole(admin.ID, team.ID, member.ID, models.TeamRoleAdmin)
	if !response.IsForbidden(err) {
		t.Errorf("admin role change should be forbidden, got %v", err)
	}

	changed, err := svc.ChangeRole(master.ID, team.ID, member.ID, models.TeamRoleAdmin)
	if err != nil {
		t.Fatalf("ChangeRole() error: %v", err)
	}
	if changed.Role != models.TeamRoleAdmin {
		t.Errorf("Role = %q, expected %q", changed.Role, models.TeamRoleAdmin)
	}

	role, err := svc.RoleIn(member.ID, team.ID)
	if err != nil {
		t.Fatalf("RoleIn() error: %v", err)
	}
	if role != models.TeamRoleAdmin {
		t.Errorf("stored role = %q, expected %q", role, models.TeamRoleAdmin)
	}
}

func TestMembershipService_ChangeRole_SameRole(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	member := createTestUser(t, db, "member", models.GlobalRoleNone)
	team := createTestTeam(t, db, "Team", nil, master.ID)
	addTestMember(t, db, team.ID, member.ID, models.TeamRoleMember)

	_, err := svc.ChangeRole(master.ID, team.ID, member.ID, models.TeamRoleMember)
	if !response.IsConflict(err) {
		t.Errorf("reassigning the same role should conflict, got %v", err)
	}
}

func TestMembershipService_ChangeRole_NotAMember(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	outsider := createTestUser(t, db, "outsider", models.GlobalRoleNone)
	team := createTestTeam(t, db, "Team", nil, master.ID)

	_, err := svc.ChangeRole(master.ID, team.ID, outsider.ID, models.TeamRoleAdmin)
	if !response.IsNotFound(err) {
		t.Errorf("non-member role change should yield not found, got %v", err)
	}
}

func TestMembershipService_RemoveMember(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)
	member := createTestUser(t, db, "member", models.GlobalRoleNone)
	team := createTestTeam(t, db, "Team", nil, admin.ID)
	addTestMember(t, db, team.ID, admin.ID, models.TeamRoleAdmin)
	addTestMember(t, db, team.ID, member.ID, models.TeamRoleMember)

	if err := svc.RemoveMember(admin.ID, team.ID, member.ID); err != nil {
		t.Fatalf("RemoveMember() error: %v", err)
	}

	role, err := svc.RoleIn(member.ID, team.ID)
	if err != nil {
		t.Fatalf("RoleIn() error: %v", err)
	}
	if role != "" {
		t.Errorf("removed member should have no role, got %q", role)
	}

	// Removing again finds no row.
	err = svc.RemoveMember(admin.ID, team.ID, member.ID)
	if !response.IsNotFound(err) {
		t.Errorf("removing a non-member should yield not found, got %v", err)
	}
}

func TestMembershipService_ListMembers(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)
	member := createTestUser(t, db, "member", models.GlobalRoleNone)
	team := createTestTeam(t, db, "Team", nil, admin.ID)
	addTestMember(t, db, team.ID, admin.ID, models.TeamRoleAdmin)
	addTestMember(t, db, team.ID, member.ID, models.TeamRoleMember)

	members, err := svc.ListMembers(team.ID)
	if err != nil {
		t.Fatalf("ListMembers() error: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].Username != "admin" || members[0].Role != models.TeamRoleAdmin {
		t.Errorf("first member = %+v, expected the admin", members[0])
	}
	if members[1].Username != "member" || members[1].Role != models.TeamRoleMember {
		t.Errorf("second member = %+v, expected the member", members[1])
	}
}

func TestMembershipService_TeamsOf(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)
	root := createTestTeam(t, db, "Root", nil, admin.ID)
	child := createTestTeam(t, db, "Child", &root.ID, admin.ID)
	createTestTeam(t, db, "Elsewhere", nil, admin.ID)

	addTestMember(t, db, root.ID, admin.ID, models.TeamRoleAdmin)

	direct, err := svc.TeamsOf(admin.ID, false)
	if err != nil {
		t.Fatalf("TeamsOf() error: %v", err)
	}
	if len(direct) != 1 || direct[0].ID != root.ID {
		t.Errorf("direct teams = %v, expected only the root", direct)
	}

	expanded, err := svc.TeamsOf(admin.ID, true)
	if err != nil {
		t.Fatalf("TeamsOf(includeSubtrees) error: %v", err)
	}
	if len(expanded) != 2 {
		t.Fatalf("expanded teams = %d, expected 2", len(expanded))
	}

	found := map[uint]bool{}
	for _, team := range expanded {
		found[team.ID] = true
	}
	if !found[root.ID] || !found[child.ID] {
		t.Error("expanded teams should cover the whole administered subtree")
	}
}

func TestMembershipService_TeamsOf_NoMemberships(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)

	loner := createTestUser(t, db, "loner", models.GlobalRoleNone)

	teams, err := svc.TeamsOf(loner.ID, true)
	if err != nil {
		t.Fatalf("TeamsOf() error: %v", err)
	}
	if len(teams) != 0 {
		t.Errorf("expected no teams, got %d", len(teams))
	}
}
