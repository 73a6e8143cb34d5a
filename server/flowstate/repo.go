package flowstate

import (
	"context"
	"time"
)

// Kind names the multi-step flow a browser is in.
type Kind string

const (
	KindVerifyEmail   Kind = "verify_email"
	KindPasswordReset Kind = "password_reset"
)

// FlowState is the flow-local state carried between the steps of a
// registration or password reset. It never holds credentials.
type FlowState struct {
	Kind        Kind      `json:"kind"`
	Email       string    `json:"email"`
	OTP         string    `json:"otp,omitempty"` // set once a reset code has been verified
	OTPVerified bool      `json:"otpVerified,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Repo interface {
	Upsert(ctx context.Context, browserID string, state *FlowState) error
	Get(ctx context.Context, browserID string) (*FlowState, error)
	Delete(ctx context.Context, browserID string) error
}
