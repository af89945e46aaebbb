package models

import "time"

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectMembership binds a user to a project with a role. There is at most
// one membership per (UserID, ProjectID).
type ProjectMembership struct {
	UserID    string    `json:"userId"`
	ProjectID string    `json:"projectId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectMember is a membership joined with the member's public identity.
type ProjectMember struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectSummary is a project as seen by one of its members.
type ProjectSummary struct {
	Project
	Role    Role `json:"role"`
	Members int  `json:"members"`
}
