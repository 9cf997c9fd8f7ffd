package models

import "time"

// User is a team member of an organization
type User struct {
	ID             string     `json:"id"`
	ClerkID        string     `json:"clerkId"`
	OrganizationID string     `json:"organizationId"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Avatar         *string    `json:"avatar,omitempty"`
	Role           string     `json:"role"`
	IsActive       bool       `json:"isActive"`
	InvitedBy      *string    `json:"invitedBy,omitempty"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// UserSummary is the reduced view handed to non-admin pickers
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary strips a user down to id, name and e-mail
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// DashboardStats feeds the home dashboard
type DashboardStats struct {
	LeadsByStage       map[string]int `json:"leadsByStage"`
	TotalLeads         int            `json:"totalLeads"`
	NewLeadsThisMonth  int            `json:"newLeadsThisMonth"`
	ConversionRate     float64        `json:"conversionRate"`
	ActiveStudents     int            `json:"activeStudents"`
	ChurnRisk          map[string]int `json:"churnRisk"`
	OpenConversations  int            `json:"openConversations"`
	OverdueEnrollments int            `json:"overdueEnrollments"`
	PendingTasks       int            `json:"pendingTasks"`
}

// DailyMetrics is a persisted snapshot of DashboardStats
type DailyMetrics struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	Date           string         `json:"date"`
	Stats          DashboardStats `json:"stats"`
	CreatedAt      time.Time      `json:"createdAt"`
}
