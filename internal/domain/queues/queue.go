package queues

import "time"

// Queue is a named dispatch class at the compute backend. A principal may use
// a queue iff it is guest-tier or granted to one of the principal's
// organizations. TimeLimitMinutes of zero (or null) means no override.
type Queue struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name             string `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Description      string `gorm:"column:description" json:"description,omitempty"`
	GuestTier        bool   `gorm:"column:guest_tier;not null;default:false" json:"guestTier"`
	IsDefault        bool   `gorm:"column:is_default;not null;default:false" json:"isDefault"`
	TimeLimitMinutes *int   `gorm:"column:time_limit_minutes" json:"timeLimitMinutes,omitempty"`
}

func (Queue) TableName() string { return "queue" }

// TimeLimitSeconds returns the submit-time override, or 0 when the backend's
// soft limit should stand.
func (q *Queue) TimeLimitSeconds() int {
	if q == nil || q.TimeLimitMinutes == nil || *q.TimeLimitMinutes == 0 {
		return 0
	}
	return *q.TimeLimitMinutes * 60
}

type Organization struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
}

func (Organization) TableName() string { return "organization" }

type OrganizationMember struct {
	ID             int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrganizationID int64 `gorm:"column:organization_id;not null;uniqueIndex:idx_org_member" json:"organizationID"`
	PrincipalID    int64 `gorm:"column:principal_id;not null;uniqueIndex:idx_org_member;index" json:"principalID"`
}

func (OrganizationMember) TableName() string { return "organization_member" }

// OrganizationQueue grants an organization's members the use of a queue.
type OrganizationQueue struct {
	ID             int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrganizationID int64 `gorm:"column:organization_id;not null;uniqueIndex:idx_org_queue" json:"organizationID"`
	QueueID        int64 `gorm:"column:queue_id;not null;uniqueIndex:idx_org_queue;index" json:"queueID"`
}

func (OrganizationQueue) TableName() string { return "organization_queue" }
