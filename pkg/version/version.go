package version

// Version is the current version of the call QA server
const Version = "1.2.0"

// UserAgent identifies this service to brokers and other peers
func UserAgent() string {
	return "callqa/" + Version
}

// ServerHeader returns the Server header value for HTTP responses
func ServerHeader() string {
	return "callqa/" + Version
}
