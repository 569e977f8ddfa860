package domain

import (
	"github.com/asterlab/mission-gateway/internal/domain/builds"
	"github.com/asterlab/mission-gateway/internal/domain/catalog"
	"github.com/asterlab/mission-gateway/internal/domain/identity"
	"github.com/asterlab/mission-gateway/internal/domain/jobs"
	"github.com/asterlab/mission-gateway/internal/domain/lifecycle"
	"github.com/asterlab/mission-gateway/internal/domain/queues"
)

type Principal = identity.Principal
type Role = identity.Role
type PrincipalStatus = identity.Status

const (
	RoleGuest  = identity.RoleGuest
	RoleMember = identity.RoleMember
	RoleAdmin  = identity.RoleAdmin

	PrincipalActive    = identity.StatusActive
	PrincipalSuspended = identity.StatusSuspended
)

type Status = lifecycle.Status

const (
	StatusAccepted   = lifecycle.StatusAccepted
	StatusRunning    = lifecycle.StatusRunning
	StatusSuccessful = lifecycle.StatusSuccessful
	StatusFailed     = lifecycle.StatusFailed
	StatusCanceled   = lifecycle.StatusCanceled
	StatusDismissed  = lifecycle.StatusDismissed
)

type Process = catalog.Process
type ProcessStatus = catalog.ProcessStatus

const (
	ProcessDeployed   = catalog.ProcessDeployed
	ProcessUndeployed = catalog.ProcessUndeployed
)

type Deployment = catalog.Deployment
type Build = builds.Build
type JobSubmission = jobs.JobSubmission

type Queue = queues.Queue
type Organization = queues.Organization
type OrganizationMember = queues.OrganizationMember
type OrganizationQueue = queues.OrganizationQueue
