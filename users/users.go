package users

import (
	"fmt"
	"time"
	"unicode"

	"github.com/jrsteele09/go-source-portal/internal/utils"
)

// CompanyType identifies which side of the marketplace a company is on
type CompanyType string

const (
	CompanyTypeSource CompanyType = "SOURCE" // Car-rental supplier, the only type allowed into this portal
	CompanyTypeAgent  CompanyType = "AGENT"  // Counterparty that books inventory through agreements
	CompanyTypeAdmin  CompanyType = "ADMIN"
)

// ApprovalStatus is the admin review state of a company registration
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// CompanyStatus is the operational state of a company account
type CompanyStatus string

const (
	CompanyActive              CompanyStatus = "ACTIVE"
	CompanyInactive            CompanyStatus = "INACTIVE"
	CompanySuspended           CompanyStatus = "SUSPENDED"
	CompanyPendingVerification CompanyStatus = "PENDING_VERIFICATION"
)

// RoleType is the user's role within their company
type RoleType string

const (
	RoleSourceAdmin RoleType = "SOURCE_ADMIN"
	RoleSourceUser  RoleType = "SOURCE_USER"
)

type Company struct {
	ID             string         `json:"id"`
	CompanyName    string         `json:"companyName"`
	Type           CompanyType    `json:"type"`
	Status         CompanyStatus  `json:"status"`
	ApprovalStatus ApprovalStatus `json:"approvalStatus"`
	AdapterType    string         `json:"adapterType,omitempty"`  // e.g. "grpc"
	GRPCEndpoint   string         `json:"grpcEndpoint,omitempty"` // host:port of the source's adapter
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      RoleType  `json:"role,omitempty"`
	Company   *Company  `json:"company,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// company returns the attached company, or the zero Company
func (u *User) company() Company {
	if u == nil {
		return Company{}
	}
	return utils.Value(u.Company)
}

// IsSource reports whether the user belongs to a SOURCE company
func (u *User) IsSource() bool {
	return u.company().Type == CompanyTypeSource
}

// IsApproved reports whether an admin has approved the user's company
func (u *User) IsApproved() bool {
	return u.company().ApprovalStatus == ApprovalApproved
}

// IsActive reports whether the user's company account is active
func (u *User) IsActive() bool {
	return u.company().Status == CompanyActive
}

// CompanyStatus returns the company status, or "" when no company is attached
func (u *User) CompanyStatus() CompanyStatus {
	return u.company().Status
}

// ApprovalStatus returns the approval status, or "" when no company is attached
func (u *User) ApprovalStatus() ApprovalStatus {
	return u.company().ApprovalStatus
}

// GRPCEndpoint returns the configured adapter endpoint, or ""
func (u *User) GRPCEndpoint() string {
	return u.company().GRPCEndpoint
}

// Validate checks the minimum shape a user record needs to be usable as a
// session identity.
func (u *User) Validate() error {
	if u == nil {
		return fmt.Errorf("user is missing")
	}
	if u.ID == "" {
		return fmt.Errorf("user id is missing")
	}
	if u.Email == "" {
		return fmt.Errorf("user email is missing")
	}
	if u.Company == nil {
		return fmt.Errorf("user company is missing")
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
