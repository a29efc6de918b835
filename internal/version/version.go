package version

// Version is the current release of hub-weaver
const Version = "0.3.0"
