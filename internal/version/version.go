package version

// Populated at build time via -ldflags.
var (
	Version = "dev"
	Commit  = ""
)

func GetVersion() string {
	return Version
}

func GetCommit() string {
	return Commit
}
