package web

// Flash texts shown on the dashboard.
const (
	msgMissingCredentials = "Please enter both username and password."
	msgInvalidCredentials = "Invalid username or password."
	msgEnterCode          = "Please enter the 2FA code from your authenticator."
	msgMissingCode        = "Please enter the 2FA code."
	msgInvalidCode        = "Invalid or expired 2FA code. Please try again."
	msgSessionExpired     = "Session expired. Please log in again."
	msgNoLongerAuthorized = "Your account is no longer authorized. Please log in again."
	msgLoggedOut          = "You have been logged out."
	msgWelcome            = "Welcome, %s!"
	msgVerifiedWelcome    = "2FA verified. Welcome, %s!"
	msgGeneralError       = "Something went wrong. Please try again."
	msgUnknownAction      = "Unknown action."
	msgUserNotFound       = "User not found."
	msgSelfLockout        = "You cannot %s your own account."
	msgPromoted           = "User '%s' promoted to admin."
	msgDemoted            = "Admin privileges revoked for user '%s'."
	msgActivated          = "User '%s' has been reactivated."
	msgDeactivated        = "User '%s' has been deactivated."
	msgUnchanged          = "No change: user '%s' is already in that state."
)
