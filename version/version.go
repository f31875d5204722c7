package version

// EcsyncSemVer is the current semantic version of the ecsync node.
const EcsyncSemVer = "0.3.0"
