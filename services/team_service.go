package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"quiz-portal-go/database"
	"quiz-portal-go/logging"
	"quiz-portal-go/models"

	"github.com/google/uuid"
)

// inviteCodeAttempts bounds the generate-and-retry loop when a freshly
// generated invite code collides with an existing one.
const inviteCodeAttempts = 5

// UserStore is the user persistence the team registry depends on
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetTeamID(ctx context.Context, id string, teamID string) error
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error
	AdjustPoints(ctx context.Context, id string, delta int) (int, error)
	GetPointsByIDs(ctx context.Context, ids []string) (map[string]int, error)
}

// TeamStore is the team persistence the team registry depends on
type TeamStore interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id string) (*models.Team, error)
	GetByName(ctx context.Context, name string) (*models.Team, error)
	GetByCode(ctx context.Context, code string) (*models.Team, error)
	AddMember(ctx context.Context, teamID string, member models.TeamMember) (bool, error)
	RemoveMember(ctx context.Context, teamID, userID string) error
	UpdateMemberSnapshot(ctx context.Context, teamID, userID string, update models.ProfileUpdate) error
	SetPoints(ctx context.Context, teamID string, points int) error
	SetMaxSize(ctx context.Context, teamID string, maxSize int) error
	SetLeader(ctx context.Context, teamID, leaderID string) error
	Delete(ctx context.Context, teamID string) error
	TopTeams(ctx context.Context, n int) ([]models.Team, error)
}

// TeamSettingsUpdate carries the optional team settings fields
type TeamSettingsUpdate struct {
	MaxSize *int `json:"maxSize,omitempty"`
}

// TeamService is the team registry: it owns team creation, membership,
// invite codes, and keeping each team's cached aggregate score equal to
// the sum of its members' individual scores.
type TeamService struct {
	users   UserStore
	teams   TeamStore
	minSize int
	maxSize int
	logger  *logging.Logger
}

// NewTeamService creates a new team service. minSize and maxSize bound
// the roster cap a team may choose at creation.
func NewTeamService(users UserStore, teams TeamStore, minSize, maxSize int) *TeamService {
	return &TeamService{
		users:   users,
		teams:   teams,
		minSize: minSize,
		maxSize: maxSize,
		logger:  logging.WithPrefix("TeamService"),
	}
}

// CreateTeam creates a team with the founder as sole member and leader,
// issues an invite code, and seeds the aggregate score.
func (s *TeamService) CreateTeam(ctx context.Context, name string, founderID string, maxSize int) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if err := models.ValidateTeamName(name); err != nil {
		return nil, NewValidation("%s", err.Error())
	}
	if maxSize < s.minSize || maxSize > s.maxSize {
		return nil, NewValidation("team size must be between %d and %d", s.minSize, s.maxSize)
	}

	founder, err := s.users.GetByID(ctx, founderID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, NewValidation("unknown user")
		}
		return nil, backendError(err)
	}
	if founder.TeamID != "" {
		return nil, NewConflict(ConflictAlreadyInTeam, "You are already in a team. Leave your current team first.")
	}

	if _, err := s.teams.GetByName(ctx, name); err == nil {
		return nil, NewConflict(ConflictDuplicateName, "A team with this name already exists.")
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, backendError(err)
	}

	team, err := s.insertWithFreshCode(ctx, name, founder, maxSize)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetTeamID(ctx, founder.ID, team.ID); err != nil {
		return nil, backendError(err)
	}

	// Trivially equal to the founder's own points, but recomputing keeps
	// one code path responsible for the aggregate invariant.
	if _, err := s.RecalculateAggregate(ctx, team.ID); err != nil {
		return nil, err
	}

	s.logger.Infof("Team %q created by %s (code=%s, maxSize=%d)", team.Name, founder.Username, team.Code, team.MaxSize)
	return s.getTeam(ctx, team.ID)
}

// insertWithFreshCode retries team insertion with a newly generated
// invite code until the unique index accepts it.
func (s *TeamService) insertWithFreshCode(ctx context.Context, name string, founder *models.User, maxSize int) (*models.Team, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := models.NewInviteCode()
		if err != nil {
			return nil, backendError(err)
		}

		team := &models.Team{
			ID:       uuid.NewString(),
			Name:     name,
			Code:     code,
			LeaderID: founder.ID,
			Members: []models.TeamMember{{
				UserID:   founder.ID,
				Username: founder.Username,
				Avatar:   founder.Avatar,
				JoinedAt: time.Now(),
			}},
			MaxSize: maxSize,
			Points:  founder.Points,
		}

		err = s.teams.Create(ctx, team)
		if err == nil {
			return team, nil
		}
		if !errors.Is(err, database.ErrDuplicate) {
			return nil, backendError(err)
		}

		// The unique index rejected either the name or the code. A name
		// clash is terminal; a code clash gets a fresh code next round.
		if _, nameErr := s.teams.GetByName(ctx, name); nameErr == nil {
			return nil, NewConflict(ConflictDuplicateName, "A team with this name already exists.")
		}
		s.logger.Warnf("Invite code collision on attempt %d, regenerating", attempt+1)
	}
	return nil, backendError(errors.New("could not allocate a unique invite code"))
}

// JoinTeam adds the user to the team matching the invite code. The
// roster append is a conditional store update, so concurrent joins
// cannot push the team past maxSize.
func (s *TeamService) JoinTeam(ctx context.Context, code string, userID string) (*models.Team, error) {
	code = models.NormalizeInviteCode(code)
	if err := models.ValidateInviteCode(code); err != nil {
		return nil, NewValidation("%s", err.Error())
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, NewValidation("unknown user")
		}
		return nil, backendError(err)
	}
	if user.TeamID != "" {
		return nil, NewConflict(ConflictAlreadyInTeam, "You are already in a team. Leave your current team first.")
	}

	team, err := s.teams.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, NewConflict(ConflictInvalidCode, "Invalid team code.")
		}
		return nil, backendError(err)
	}

	if team.HasMember(user.ID) {
		return nil, NewConflict(ConflictAlreadyMember, "You are already a member of this team.")
	}
	if team.IsFull() {
		return nil, NewConflict(ConflictTeamFull, "Team is full. Cannot join.")
	}

	member := models.TeamMember{
		UserID:   user.ID,
		Username: user.Username,
		Avatar:   user.Avatar,
		JoinedAt: time.Now(),
	}
	added, err := s.teams.AddMember(ctx, team.ID, member)
	if err != nil {
		return nil, backendError(err)
	}
	if !added {
		// Lost a race between the check above and the conditional write.
		// Re-read to report the precise conflict.
		current, err := s.teams.GetByID(ctx, team.ID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, NewConflict(ConflictInvalidCode, "Invalid team code.")
			}
			return nil, backendError(err)
		}
		if current.HasMember(user.ID) {
			return nil, NewConflict(ConflictAlreadyMember, "You are already a member of this team.")
		}
		return nil, NewConflict(ConflictTeamFull, "Team is full. Cannot join.")
	}

	if err := s.users.SetTeamID(ctx, user.ID, team.ID); err != nil {
		return nil, backendError(err)
	}
	if _, err := s.RecalculateAggregate(ctx, team.ID); err != nil {
		return nil, err
	}

	s.logger.Infof("User %s joined team %q", user.Username, team.Name)
	return s.getTeam(ctx, team.ID)
}

// LeaveTeam removes the member and clears their team reference. If the
// leaver led the team, leadership passes to the earliest-joined
// remaining member; an emptied team is deleted.
func (s *TeamService) LeaveTeam(ctx context.Context, teamID, userID string) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if !team.HasMember(userID) {
		// Clearing the user's team reference here would detach them from
		// whichever team they actually belong to.
		return NewConflict(ConflictNotMember, "You are not a member of this team.")
	}

	if err := s.teams.RemoveMember(ctx, teamID, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return NewConflict(ConflictTeamNotFound, "Team not found.")
		}
		return backendError(err)
	}
	if err := s.users.SetTeamID(ctx, userID, ""); err != nil {
		return backendError(err)
	}

	remaining, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if len(remaining.Members) == 0 {
		if err := s.teams.Delete(ctx, teamID); err != nil && !errors.Is(err, database.ErrNotFound) {
			return backendError(err)
		}
		s.logger.Infof("Team %q deleted after last member left", team.Name)
		return nil
	}

	if remaining.LeaderID == userID {
		successor := remaining.Members[0]
		if err := s.teams.SetLeader(ctx, teamID, successor.UserID); err != nil {
			return backendError(err)
		}
		s.logger.Infof("Leadership of team %q passed to %s", team.Name, successor.Username)
	}

	if _, err := s.RecalculateAggregate(ctx, teamID); err != nil {
		return err
	}
	return nil
}

// UpdateTeamSettings applies team settings changes. Authorization
// (leader-only) is enforced by the caller, which knows the requesting
// user.
func (s *TeamService) UpdateTeamSettings(ctx context.Context, teamID string, update TeamSettingsUpdate) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if update.MaxSize != nil {
		maxSize := *update.MaxSize
		if maxSize < s.minSize || maxSize > s.maxSize {
			return NewValidation("team size must be between %d and %d", s.minSize, s.maxSize)
		}
		if maxSize < len(team.Members) {
			return NewConflict(ConflictSizeBelowMembership,
				"Cannot set team size below current member count (%d)", len(team.Members))
		}
		if err := s.teams.SetMaxSize(ctx, teamID, maxSize); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return NewConflict(ConflictTeamNotFound, "Team not found.")
			}
			return backendError(err)
		}
	}
	return nil
}

// RecalculateAggregate reads every current member's live point total
// and overwrites the team's cached aggregate. This is the only
// mechanism keeping team totals correct; every membership change and
// every point award runs through it.
func (s *TeamService) RecalculateAggregate(ctx context.Context, teamID string) (int, error) {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return 0, err
	}

	points, err := s.users.GetPointsByIDs(ctx, team.MemberIDs())
	if err != nil {
		return 0, backendError(err)
	}

	total := 0
	for _, id := range team.MemberIDs() {
		total += points[id] // missing users contribute zero
	}

	if err := s.teams.SetPoints(ctx, teamID, total); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, NewConflict(ConflictTeamNotFound, "Team not found.")
		}
		return 0, backendError(err)
	}
	return total, nil
}

// UpdateUserProfile updates the user record and, if the user belongs to
// a team, patches the team's cached member snapshot so the denormalized
// copy does not go stale.
func (s *TeamService) UpdateUserProfile(ctx context.Context, userID string, update models.ProfileUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	if update.Username != nil && len(strings.TrimSpace(*update.Username)) < 3 {
		return NewValidation("username must be at least 3 characters")
	}

	if err := s.users.UpdateProfile(ctx, userID, update); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return NewConflict(ConflictDuplicateUsername, "That username is already taken.")
		}
		if errors.Is(err, database.ErrNotFound) {
			return NewValidation("unknown user")
		}
		return backendError(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return backendError(err)
	}
	if user.TeamID == "" {
		return nil
	}

	if err := s.teams.UpdateMemberSnapshot(ctx, user.TeamID, userID, update); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Stale team reference; the user record stays the source of truth.
			s.logger.Warnf("Profile cascade skipped: team %s not found for user %s", user.TeamID, userID)
			return nil
		}
		return backendError(err)
	}
	return nil
}

// AwardPoints adjusts a user's individual score (clamped at zero) and
// immediately re-syncs their team's aggregate.
func (s *TeamService) AwardPoints(ctx context.Context, userID string, delta int) (int, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, NewValidation("unknown user")
		}
		return 0, backendError(err)
	}

	newPoints, err := s.users.AdjustPoints(ctx, userID, delta)
	if err != nil {
		return 0, backendError(err)
	}

	if user.TeamID != "" {
		if _, err := s.RecalculateAggregate(ctx, user.TeamID); err != nil {
			return newPoints, err
		}
	}
	return newPoints, nil
}

// GetTeam returns a team by ID
func (s *TeamService) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	return s.getTeam(ctx, teamID)
}

func (s *TeamService) getTeam(ctx context.Context, teamID string) (*models.Team, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, NewConflict(ConflictTeamNotFound, "Team not found.")
		}
		return nil, backendError(err)
	}
	return team, nil
}
