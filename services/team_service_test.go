package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"quiz-portal-go/database"
	"quiz-portal-go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*models.User)}
	for _, u := range users {
		copied := *u
		f.users[u.ID] = &copied
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) SetTeamID(_ context.Context, id string, teamID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.TeamID = teamID
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id string, update models.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return database.ErrNotFound
	}
	if update.Username != nil {
		for otherID, other := range f.users {
			if otherID != id && other.Username == *update.Username {
				return database.ErrDuplicate
			}
		}
		u.Username = *update.Username
	}
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	return nil
}

func (f *fakeUsers) AdjustPoints(_ context.Context, id string, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return 0, database.ErrNotFound
	}
	u.Points += delta
	if u.Points < 0 {
		u.Points = 0
	}
	return u.Points, nil
}

func (f *fakeUsers) GetPointsByIDs(_ context.Context, ids []string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	points := make(map[string]int)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			points[id] = u.Points
		}
	}
	return points, nil
}

type fakeTeams struct {
	mu    sync.Mutex
	teams map[string]*models.Team
}

func newFakeTeams() *fakeTeams {
	return &fakeTeams{teams: make(map[string]*models.Team)}
}

func (f *fakeTeams) Create(_ context.Context, team *models.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.teams {
		if existing.Name == team.Name || existing.Code == team.Code {
			return database.ErrDuplicate
		}
	}
	copied := *team
	copied.CreatedAt = time.Now()
	f.teams[team.ID] = &copied
	return nil
}

func (f *fakeTeams) GetByID(_ context.Context, id string) (*models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *t
	copied.Members = append([]models.TeamMember(nil), t.Members...)
	return &copied, nil
}

func (f *fakeTeams) GetByName(_ context.Context, name string) (*models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.teams {
		if t.Name == name {
			copied := *t
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeTeams) GetByCode(_ context.Context, code string) (*models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.teams {
		if t.Code == code {
			copied := *t
			copied.Members = append([]models.TeamMember(nil), t.Members...)
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeTeams) AddMember(_ context.Context, teamID string, member models.TeamMember) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[teamID]
	if !ok {
		return false, nil
	}
	if t.HasMember(member.UserID) || len(t.Members) >= t.MaxSize {
		return false, nil
	}
	t.Members = append(t.Members, member)
	return true, nil
}

func (f *fakeTeams) RemoveMember(_ context.Context, teamID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[teamID]
	if !ok {
		return database.ErrNotFound
	}
	kept := t.Members[:0]
	for _, m := range t.Members {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	t.Members = kept
	return nil
}

func (f *fakeTeams) UpdateMemberSnapshot(_ context.Context, teamID, userID string, update models.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[teamID]
	if !ok {
		return database.ErrNotFound
	}
	for i := range t.Members {
		if t.Members[i].UserID == userID {
			if update.Username != nil {
				t.Members[i].Username = *update.Username
			}
			if update.Avatar != nil {
				t.Members[i].Avatar = *update.Avatar
			}
		}
	}
	return nil
}

func (f *fakeTeams) SetPoints(_ context.Context, teamID string, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[teamID]
	if !ok {
		return database.ErrNotFound
	}
	t.Points = points
	return nil
}

func (f *fakeTeams) SetMaxSize(_ context.Context, teamID string, maxSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[teamID]
	if !ok {
		return database.ErrNotFound
	}
	t.MaxSize = maxSize
	return nil
}

func (f *fakeTeams) SetLeader(_ context.Context, teamID, leaderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[teamID]
	if !ok {
		return database.ErrNotFound
	}
	t.LeaderID = leaderID
	return nil
}

func (f *fakeTeams) Delete(_ context.Context, teamID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.teams[teamID]; !ok {
		return database.ErrNotFound
	}
	delete(f.teams, teamID)
	return nil
}

func (f *fakeTeams) TopTeams(_ context.Context, n int) ([]models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]models.Team, 0, len(f.teams))
	for _, t := range f.teams {
		all = append(all, *t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Points != all[j].Points {
			return all[i].Points > all[j].Points
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func newTestTeamService(users *fakeUsers, teams *fakeTeams) *TeamService {
	return NewTeamService(users, teams, 3, 5)
}

func testUser(id, username string, points int) *models.User {
	return &models.User{ID: id, Username: username, Email: username + "@example.com", Points: points}
}

func TestCreateTeam(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 10))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)

	assert.Equal(t, "Gryffindor", team.Name)
	assert.Equal(t, "u1", team.LeaderID)
	assert.Len(t, team.Members, 1)
	assert.Len(t, team.Code, models.InviteCodeLength)
	assert.Equal(t, 10, team.Points, "aggregate should be seeded from the founder's points")

	founder, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, team.ID, founder.TeamID)
}

func TestCreateTeamDuplicateName(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0), testUser("u2", "ron", 0))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	_, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)

	_, err = svc.CreateTeam(ctx, "Gryffindor", "u2", 5)
	assert.True(t, IsConflict(err, ConflictDuplicateName))
}

func TestCreateTeamWhileAlreadyInTeam(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	_, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)

	_, err = svc.CreateTeam(ctx, "Slytherin", "u1", 5)
	assert.True(t, IsConflict(err, ConflictAlreadyInTeam))
}

func TestCreateTeamSizeBounds(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0))
	svc := newTestTeamService(users, newFakeTeams())

	_, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 2)
	assert.True(t, IsValidation(err))

	_, err = svc.CreateTeam(ctx, "Gryffindor", "u1", 6)
	assert.True(t, IsValidation(err))
}

// collidingTeams rejects the first N inserts as unique-index
// violations, simulating invite code collisions.
type collidingTeams struct {
	*fakeTeams
	rejections int
}

func (c *collidingTeams) Create(ctx context.Context, team *models.Team) error {
	if c.rejections > 0 {
		c.rejections--
		return database.ErrDuplicate
	}
	return c.fakeTeams.Create(ctx, team)
}

// nameRaceTeams admits a name through the pre-check, then reports it
// taken, simulating a concurrent create with the same name.
type nameRaceTeams struct {
	*fakeTeams
	nameChecks int
}

func (c *nameRaceTeams) Create(context.Context, *models.Team) error {
	return database.ErrDuplicate
}

func (c *nameRaceTeams) GetByName(ctx context.Context, name string) (*models.Team, error) {
	c.nameChecks++
	if c.nameChecks == 1 {
		return nil, database.ErrNotFound
	}
	return &models.Team{ID: "other", Name: name}, nil
}

func TestCreateTeamRetriesAfterCodeCollision(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0))
	teams := &collidingTeams{fakeTeams: newFakeTeams(), rejections: 2}
	svc := NewTeamService(users, teams, 3, 5)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err, "a code collision should regenerate and retry")
	assert.NoError(t, models.ValidateInviteCode(team.Code))
	assert.Equal(t, 0, teams.rejections)
}

func TestCreateTeamGivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0))
	teams := &collidingTeams{fakeTeams: newFakeTeams(), rejections: 100}
	svc := NewTeamService(users, teams, 3, 5)

	_, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestCreateTeamDiagnosesNameRace(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0))
	teams := &nameRaceTeams{fakeTeams: newFakeTeams()}
	svc := NewTeamService(users, teams, 3, 5)

	_, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	assert.True(t, IsConflict(err, ConflictDuplicateName),
		"an insert rejected for a name taken mid-flight is a name conflict, not a retry")
}

func TestJoinTeamUpdatesAggregate(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 10), testUser("u2", "ron", 5))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)

	joined, err := svc.JoinTeam(ctx, team.Code, "u2")
	require.NoError(t, err)
	assert.Len(t, joined.Members, 2)
	assert.Equal(t, 15, joined.Points, "aggregate should equal the sum of member points")

	ron, err := users.GetByID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, team.ID, ron.TeamID)
}

func TestJoinTeamCodeNormalization(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0), testUser("u2", "ron", 0))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)

	_, err = svc.JoinTeam(ctx, "  "+team.Code+"  ", "u2")
	assert.NoError(t, err)
}

func TestJoinTeamInvalidCode(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0))
	svc := newTestTeamService(users, newFakeTeams())

	_, err := svc.JoinTeam(ctx, "ZZZZZZ", "u1")
	assert.True(t, IsConflict(err, ConflictInvalidCode))
}

func TestJoinTeamFull(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(
		testUser("u1", "harry", 0),
		testUser("u2", "ron", 0),
		testUser("u3", "hermione", 0),
		testUser("u4", "neville", 0),
	)
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 3)
	require.NoError(t, err)

	_, err = svc.JoinTeam(ctx, team.Code, "u2")
	require.NoError(t, err)
	_, err = svc.JoinTeam(ctx, team.Code, "u3")
	require.NoError(t, err)

	_, err = svc.JoinTeam(ctx, team.Code, "u4")
	assert.True(t, IsConflict(err, ConflictTeamFull))
}

func TestJoinTeamWhileAlreadyInTeam(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0), testUser("u2", "ron", 0))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	first, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)
	second, err := svc.CreateTeam(ctx, "Slytherin", "u2", 5)
	require.NoError(t, err)

	_, err = svc.JoinTeam(ctx, second.Code, "u1")
	assert.True(t, IsConflict(err, ConflictAlreadyInTeam))

	// Leave frees the user to join elsewhere
	require.NoError(t, svc.LeaveTeam(ctx, first.ID, "u1"))
	_, err = svc.JoinTeam(ctx, second.Code, "u1")
	assert.NoError(t, err)
}

func TestLeaveTeamRecalculatesAndPassesLeadership(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 10), testUser("u2", "ron", 5))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)
	_, err = svc.JoinTeam(ctx, team.Code, "u2")
	require.NoError(t, err)

	require.NoError(t, svc.LeaveTeam(ctx, team.ID, "u1"))

	remaining, err := svc.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining.Points)
	assert.Equal(t, "u2", remaining.LeaderID, "leadership should pass to the earliest-joined member")

	harry, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, harry.TeamID)
}

func TestLeaveTeamRejectsNonMember(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0), testUser("u2", "draco", 0))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	gryffindor, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)
	slytherin, err := svc.CreateTeam(ctx, "Slytherin", "u2", 5)
	require.NoError(t, err)

	err = svc.LeaveTeam(ctx, gryffindor.ID, "u2")
	assert.True(t, IsConflict(err, ConflictNotMember))

	// The outsider's own team reference must be untouched
	draco, err := users.GetByID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, slytherin.ID, draco.TeamID)
}

func TestLeaveTeamDeletesEmptyTeam(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)

	require.NoError(t, svc.LeaveTeam(ctx, team.ID, "u1"))

	_, err = svc.GetTeam(ctx, team.ID)
	assert.True(t, IsConflict(err, ConflictTeamNotFound))
}

func TestUpdateTeamSettings(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0), testUser("u2", "ron", 0), testUser("u3", "hermione", 0), testUser("u4", "neville", 0))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)
	for _, id := range []string{"u2", "u3", "u4"} {
		_, err = svc.JoinTeam(ctx, team.Code, id)
		require.NoError(t, err)
	}

	// 4 members: shrinking below membership is rejected
	three := 3
	err = svc.UpdateTeamSettings(ctx, team.ID, TeamSettingsUpdate{MaxSize: &three})
	assert.True(t, IsConflict(err, ConflictSizeBelowMembership))

	four := 4
	require.NoError(t, svc.UpdateTeamSettings(ctx, team.ID, TeamSettingsUpdate{MaxSize: &four}))

	updated, err := svc.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.MaxSize)
}

func TestUpdateUserProfileCascadesToTeam(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)

	newName := "potter"
	require.NoError(t, svc.UpdateUserProfile(ctx, "u1", models.ProfileUpdate{Username: &newName}))

	updated, err := svc.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, "potter", updated.Members[0].Username)
}

func TestUpdateUserProfileDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 0), testUser("u2", "ron", 0))
	svc := newTestTeamService(users, newFakeTeams())

	taken := "ron"
	err := svc.UpdateUserProfile(ctx, "u1", models.ProfileUpdate{Username: &taken})
	assert.True(t, IsConflict(err, ConflictDuplicateUsername))
}

func TestAwardPointsSyncsTeamAggregate(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 10))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)

	total, err := svc.AwardPoints(ctx, "u1", 25)
	require.NoError(t, err)
	assert.Equal(t, 35, total)

	updated, err := svc.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 35, updated.Points)
}

func TestAwardPointsClampsAtZero(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers(testUser("u1", "harry", 10))
	teams := newFakeTeams()
	svc := newTestTeamService(users, teams)

	team, err := svc.CreateTeam(ctx, "Gryffindor", "u1", 5)
	require.NoError(t, err)

	total, err := svc.AwardPoints(ctx, "u1", -50)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	updated, err := svc.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Points)
}
