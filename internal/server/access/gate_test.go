package access

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/memberships"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemberships serves Get from a map and counts lookups.
type fakeMemberships struct {
	memberships.Repository
	rows    map[[2]string]models.Role
	err     error
	lookups int
}

func (f *fakeMemberships) Get(_ context.Context, userID, projectID string) (*models.ProjectMembership, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.rows[[2]string{userID, projectID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &models.ProjectMembership{UserID: userID, ProjectID: projectID, Role: r}, nil
}

type denials map[string]int

func (d denials) AuthorizationDenied(reason string) { d[reason]++ }

var alice = &models.Principal{UserID: "u-alice", Email: "a@x.com", Username: "alice"}

func newGate() (*Gate, denials) {
	d := denials{}
	return NewGate(logging.Discard(), d), d
}

func TestAuthorize(t *testing.T) {
	repo := &fakeMemberships{rows: map[[2]string]models.Role{
		{"u-alice", "p-1"}: models.RoleMember,
		{"u-alice", "p-2"}: models.RoleAdmin,
	}}

	tests := []struct {
		name      string
		projectID string
		allowed   []models.Role
		wantErr   error
		wantRole  models.Role
	}{
		{name: "member allowed", projectID: "p-1", allowed: models.AllRoles(), wantRole: models.RoleMember},
		{name: "member rejected for admin route", projectID: "p-1", allowed: []models.Role{models.RoleAdmin}, wantErr: common.ErrInsufficientPermission},
		{name: "admin elsewhere is not membership here", projectID: "p-3", allowed: models.AllRoles(), wantErr: common.ErrNotAMember},
		{name: "admin allowed", projectID: "p-2", allowed: []models.Role{models.RoleAdmin}, wantRole: models.RoleAdmin},
		{name: "empty allow-list rejects everyone", projectID: "p-2", allowed: nil, wantErr: common.ErrInsufficientPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newGate()
			ctx, err := g.Authorize(context.Background(), repo, alice, tt.projectID, tt.allowed...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				_, ok := GrantFromContext(ctx)
				assert.False(t, ok, "failed checks attach nothing")
				return
			}
			require.NoError(t, err)
			grant, ok := GrantFromContext(ctx)
			require.True(t, ok)
			assert.Equal(t, Grant{UserID: alice.UserID, ProjectID: tt.projectID, Role: tt.wantRole}, grant)
		})
	}
}

func TestAuthorize_NestedCheckReusesGrant(t *testing.T) {
	repo := &fakeMemberships{rows: map[[2]string]models.Role{{"u-alice", "p-1"}: models.RoleProjectAdmin}}
	g, _ := newGate()

	ctx, err := g.Authorize(context.Background(), repo, alice, "p-1", models.AllRoles()...)
	require.NoError(t, err)
	require.Equal(t, 1, repo.lookups)

	_, err = g.Authorize(ctx, repo, alice, "p-1", models.RoleAdmin)
	require.ErrorIs(t, err, common.ErrInsufficientPermission)
	_, err = g.Authorize(ctx, repo, alice, "p-1", models.RoleAdmin, models.RoleProjectAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lookups, "same-project checks do not re-query")

	_, err = g.Authorize(ctx, repo, alice, "p-2", models.AllRoles()...)
	require.ErrorIs(t, err, common.ErrNotAMember)
	assert.Equal(t, 2, repo.lookups)
}

func TestAuthorize_GrantForAnotherUserIsNotReused(t *testing.T) {
	repo := &fakeMemberships{rows: map[[2]string]models.Role{{"u-alice", "p-1"}: models.RoleMember}}
	g, _ := newGate()

	ctx := WithGrant(context.Background(), Grant{UserID: "u-bob", ProjectID: "p-1", Role: models.RoleAdmin})

	_, err := g.Authorize(ctx, repo, alice, "p-1", models.RoleAdmin)
	require.ErrorIs(t, err, common.ErrInsufficientPermission)
	assert.Equal(t, 1, repo.lookups)
}

func TestAuthorize_MalformedProjectIDIsNotAMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM project_members`).
		WithArgs("u-alice", "not-a-uuid").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "not-a-uuid"`})

	g, d := newGate()
	_, err = g.Authorize(context.Background(), memberships.NewPostgresRepository(db), alice, "not-a-uuid", models.AllRoles()...)

	require.ErrorIs(t, err, common.ErrNotAMember)
	assert.Equal(t, 1, d[ReasonNotAMember])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorize_RecordsDenials(t *testing.T) {
	repo := &fakeMemberships{rows: map[[2]string]models.Role{{"u-alice", "p-1"}: models.RoleMember}}
	g, d := newGate()

	_, _ = g.Authorize(context.Background(), repo, alice, "p-1", models.RoleAdmin)
	_, _ = g.Authorize(context.Background(), repo, alice, "p-9", models.RoleAdmin)

	assert.Equal(t, 1, d[ReasonInsufficient])
	assert.Equal(t, 1, d[ReasonNotAMember])
}

func TestAuthorize_LookupFailureIsInternal(t *testing.T) {
	repo := &fakeMemberships{err: errors.New("db error: timeout")}
	g, _ := newGate()

	_, err := g.Authorize(context.Background(), repo, alice, "p-1", models.AllRoles()...)
	require.ErrorIs(t, err, common.ErrInternal)
}

func TestAuthorize_NoPrincipal(t *testing.T) {
	g, _ := newGate()
	_, err := g.Authorize(context.Background(), &fakeMemberships{}, nil, "p-1", models.AllRoles()...)
	require.ErrorIs(t, err, common.ErrTokenMissing)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), alice)
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, alice, p)
}
