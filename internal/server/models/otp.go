package models

// OTPPurpose binds a one-time code to a single flow.
type OTPPurpose string

const (
	PurposeLogin         OTPPurpose = "login"
	PurposeRegistration  OTPPurpose = "registration"
	PurposePasswordReset OTPPurpose = "password_reset"
)

// Title is the human-readable purpose used in email subjects.
func (p OTPPurpose) Title() string {
	switch p {
	case PurposeLogin:
		return "Login"
	case PurposeRegistration:
		return "Account Verification"
	case PurposePasswordReset:
		return "Password Reset"
	default:
		return "Verification"
	}
}
