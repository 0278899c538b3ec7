package platform

const appName = "pagemark"

// Options configures how a notification is displayed on the host platform.
type Options struct {
	// Critical asks the notification center to keep the message visible
	// until dismissed where supported.
	Critical bool
	// Timeout is how long the message stays up, in milliseconds. Zero leaves
	// the choice to the platform.
	Timeout int32
}
