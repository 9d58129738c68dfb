package services

import (
	"testing"

	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/response"
)

func TestTeamService_CreateRootTeam(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)

	team, err := svc.CreateRootTeam(master.ID, "Engineering")
	if err != nil {
		t.Fatalf("CreateRootTeam() error: %v", err)
	}
	if team.Name != "Engineering" {
		t.Errorf("Name = %q, expected %q", team.Name, "Engineering")
	}
	if team.ParentID != nil {
		t.Error("root team should have no parent")
	}

	// The creator is enrolled as admin in the same transaction.
	var membership models.TeamMembership
	if err := db.Where("team_id = ? AND user_id = ?", team.ID, master.ID).First(&membership).Error; err != nil {
		t.Fatalf("creator membership missing: %v", err)
	}
	if membership.Role != models.TeamRoleAdmin {
		t.Errorf("creator role = %q, expected %q", membership.Role, models.TeamRoleAdmin)
	}
}

func TestTeamService_CreateRootTeam_ForbiddenForNonMaster(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	plain := createTestUser(t, db, "plain", models.GlobalRoleNone)

	_, err := svc.CreateRootTeam(plain.ID, "Rogue")
	if !response.IsForbidden(err) {
		t.Errorf("non-master root creation should be forbidden, got %v", err)
	}

	var count int64
	db.Model(&models.Team{}).Count(&count)
	if count != 0 {
		t.Errorf("no team should have been created, found %d", count)
	}
}

func TestTeamService_CreateSubTeam_ByTransitiveAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)

	root, err := svc.CreateRootTeam(master.ID, "Root")
	if err != nil {
		t.Fatalf("CreateRootTeam() error: %v", err)
	}
	addTestMember(t, db, root.ID, admin.ID, models.TeamRoleAdmin)

	mid, err := svc.CreateSubTeam(admin.ID, root.ID, "Mid")
	if err != nil {
		t.Fatalf("CreateSubTeam() error: %v", err)
	}
	if mid.ParentID == nil || *mid.ParentID != root.ID {
		t.Error("sub-team should point at its parent")
	}

	// Admin of the root creates a grandchild without any direct membership
	// in the middle team.
	leaf, err := svc.CreateSubTeam(admin.ID, mid.ID, "Leaf")
	if err != nil {
		t.Fatalf("CreateSubTeam() at depth 2 error: %v", err)
	}
	if leaf.ParentID == nil || *leaf.ParentID != mid.ID {
		t.Error("grandchild should point at the middle team")
	}
}

func TestTeamService_CreateSubTeam_ForbiddenForMember(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	member := createTestUser(t, db, "member", models.GlobalRoleNone)

	root, err := svc.CreateRootTeam(master.ID, "Root")
	if err != nil {
		t.Fatalf("CreateRootTeam() error: %v", err)
	}
	addTestMember(t, db, root.ID, member.ID, models.TeamRoleMember)

	_, err = svc.CreateSubTeam(member.ID, root.ID, "Sub")
	if !response.IsForbidden(err) {
		t.Errorf("member sub-team creation should be forbidden, got %v", err)
	}
}

func TestTeamService_CreateSubTeam_ParentNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)

	_, err := svc.CreateSubTeam(master.ID, 9999, "Orphan")
	if !response.IsNotFound(err) {
		t.Errorf("missing parent should yield not found, got %v", err)
	}
}

func TestTeamService_Create_DuplicateName(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)

	_, err := svc.CreateRootTeam(master.ID, "Engineering")
	if err != nil {
		t.Fatalf("CreateRootTeam() error: %v", err)
	}

	_, err = svc.CreateRootTeam(master.ID, "Engineering")
	if !response.IsConflict(err) {
		t.Errorf("duplicate team name should conflict, got %v", err)
	}
}

func TestTeamService_Update_Rename(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	team, err := svc.CreateRootTeam(master.ID, "Old Name")
	if err != nil {
		t.Fatalf("CreateRootTeam() error: %v", err)
	}

	updated, err := svc.Update(master.ID, team.ID, &UpdateTeamRequest{Name: "New Name"})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("Name = %q, expected %q", updated.Name, "New Name")
	}
}

func TestTeamService_Update_ForbiddenForAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)

	team, err := svc.CreateRootTeam(master.ID, "Team")
	if err != nil {
		t.Fatalf("CreateRootTeam() error: %v", err)
	}
	addTestMember(t, db, team.ID, admin.ID, models.TeamRoleAdmin)

	_, err = svc.Update(admin.ID, team.ID, &UpdateTeamRequest{Name: "Renamed"})
	if !response.IsForbidden(err) {
		t.Errorf("team admin rename should be forbidden, got %v", err)
	}
}

func TestTeamService_Update_Reparent(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	a, _ := svc.CreateRootTeam(master.ID, "A")
	b, _ := svc.CreateRootTeam(master.ID, "B")

	updated, err := svc.Update(master.ID, b.ID, &UpdateTeamRequest{ParentID: &a.ID})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.ParentID == nil || *updated.ParentID != a.ID {
		t.Error("team B should now hang under A")
	}
}

func TestTeamService_Update_RejectsCycle(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	root, _ := svc.CreateRootTeam(master.ID, "Root")
	child, err := svc.CreateSubTeam(master.ID, root.ID, "Child")
	if err != nil {
		t.Fatalf("CreateSubTeam() error: %v", err)
	}
	grandchild, err := svc.CreateSubTeam(master.ID, child.ID, "Grandchild")
	if err != nil {
		t.Fatalf("CreateSubTeam() error: %v", err)
	}

	// Root under its own grandchild would close a cycle.
	_, err = svc.Update(master.ID, root.ID, &UpdateTeamRequest{ParentID: &grandchild.ID})
	if !response.IsConflict(err) {
		t.Errorf("reparenting into own subtree should conflict, got %v", err)
	}

	// Self-parenting is the degenerate case.
	_, err = svc.Update(master.ID, root.ID, &UpdateTeamRequest{ParentID: &root.ID})
	if !response.IsConflict(err) {
		t.Errorf("self-parenting should conflict, got %v", err)
	}
}

func TestTeamService_Delete_CascadesSubtree(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	worker := createTestUser(t, db, "worker", models.GlobalRoleNone)

	root, _ := svc.CreateRootTeam(master.ID, "Root")
	child, err := svc.CreateSubTeam(master.ID, root.ID, "Child")
	if err != nil {
		t.Fatalf("CreateSubTeam() error: %v", err)
	}
	other, _ := svc.CreateRootTeam(master.ID, "Other")

	addTestMember(t, db, child.ID, worker.ID, models.TeamRoleMember)
	task := models.Task{Title: "doomed", TeamID: child.ID, CreatedBy: master.ID, Status: models.TaskStatusTodo}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	if err := svc.Delete(master.ID, root.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	var teams int64
	db.Model(&models.Team{}).Count(&teams)
	if teams != 1 {
		t.Errorf("expected only the unrelated team to survive, got %d", teams)
	}

	var survivor models.Team
	if err := db.First(&survivor).Error; err != nil || survivor.ID != other.ID {
		t.Errorf("surviving team should be %d", other.ID)
	}

	var tasks int64
	db.Model(&models.Task{}).Count(&tasks)
	if tasks != 0 {
		t.Errorf("subtree tasks should be deleted, found %d", tasks)
	}

	var memberships int64
	db.Model(&models.TeamMembership{}).Where("team_id IN ?", []uint{root.ID, child.ID}).Count(&memberships)
	if memberships != 0 {
		t.Errorf("subtree memberships should be deleted, found %d", memberships)
	}
}

func TestTeamService_Delete_ForbiddenForAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	admin := createTestUser(t, db, "admin", models.GlobalRoleNone)

	team, _ := svc.CreateRootTeam(master.ID, "Team")
	addTestMember(t, db, team.ID, admin.ID, models.TeamRoleAdmin)

	err := svc.Delete(admin.ID, team.ID)
	if !response.IsForbidden(err) {
		t.Errorf("team admin delete should be forbidden, got %v", err)
	}
}

func TestTeamService_List(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	root, _ := svc.CreateRootTeam(master.ID, "Root")
	if _, err := svc.CreateSubTeam(master.ID, root.ID, "Sub"); err != nil {
		t.Fatalf("CreateSubTeam() error: %v", err)
	}

	resp, err := svc.List(&TeamListRequest{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("Total = %d, expected 2", resp.Total)
	}

	resp, err = svc.List(&TeamListRequest{RootOnly: true})
	if err != nil {
		t.Fatalf("List(RootOnly) error: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("root-only Total = %d, expected 1", resp.Total)
	}
	if len(resp.Items) != 1 || resp.Items[0].Name != "Root" {
		t.Error("root-only listing should return just the root team")
	}
}

func TestTeamService_PathOf(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)

	master := createTestUser(t, db, "master", models.GlobalRoleScrumMaster)
	root, _ := svc.CreateRootTeam(master.ID, "Org")
	mid, err := svc.CreateSubTeam(master.ID, root.ID, "Platform")
	if err != nil {
		t.Fatalf("CreateSubTeam() error: %v", err)
	}
	leaf, err := svc.CreateSubTeam(master.ID, mid.ID, "Infra")
	if err != nil {
		t.Fatalf("CreateSubTeam() error: %v", err)
	}

	path, err := svc.PathOf(leaf.ID)
	if err != nil {
		t.Fatalf("PathOf() error: %v", err)
	}
	if path != "Org/Platform/Infra" {
		t.Errorf("path = %q, expected %q", path, "Org/Platform/Infra")
	}
}
