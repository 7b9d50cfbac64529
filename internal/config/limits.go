package config

const (
	// MaxNodeNameLength is the maximum length for folder and file names.
	// Limited to 255 to fit common filesystem and VARCHAR(255) limits.
	MaxNodeNameLength = 255

	// MaxTreeDepth is the deepest level a node may sit at, the scope root
	// being level 0. Writes that would go deeper are rejected, so a longer
	// ancestor walk means the parent graph is corrupted.
	MaxTreeDepth = 1024

	// DefaultRootFolderName names the root folder created for each scope.
	DefaultRootFolderName = "root"

	// DefaultTraineeQuotaBytes is the storage each trainee's personal space may hold (5 GiB).
	DefaultTraineeQuotaBytes = 5 << 30
)
