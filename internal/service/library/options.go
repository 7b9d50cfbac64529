package library

import (
	"fmt"

	"courseware/internal/config"
)

// CollisionPolicy decides what a move does when the destination already
// holds a sibling with the same name
type CollisionPolicy string

const (
	// CollisionFail rejects the move with a name collision
	CollisionFail CollisionPolicy = "fail"
	// CollisionSuffix renames the moved node to the smallest free "name (n)"
	CollisionSuffix CollisionPolicy = "suffix"
)

// ParseCollisionPolicy converts a configuration value into a policy
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(s) {
	case CollisionFail, "":
		return CollisionFail, nil
	case CollisionSuffix:
		return CollisionSuffix, nil
	default:
		return "", fmt.Errorf("unknown move collision policy %q (want %q or %q)", s, CollisionFail, CollisionSuffix)
	}
}

// Options are the deployment-wide library settings
type Options struct {
	RootName            string
	MaxNameLength       int
	MoveCollisionPolicy CollisionPolicy
}

// DefaultOptions returns the settings used when nothing is configured
func DefaultOptions() Options {
	return Options{
		RootName:            config.DefaultRootFolderName,
		MaxNameLength:       config.MaxNodeNameLength,
		MoveCollisionPolicy: CollisionFail,
	}
}

// OptionsFromConfig builds library options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	if cfg.RootFolderName != "" {
		opts.RootName = cfg.RootFolderName
	}
	policy, err := ParseCollisionPolicy(cfg.MoveCollisionPolicy)
	if err != nil {
		return Options{}, err
	}
	opts.MoveCollisionPolicy = policy
	if _, err := validateName(opts.RootName, opts.MaxNameLength); err != nil {
		return Options{}, fmt.Errorf("invalid root folder name: %w", err)
	}
	return opts, nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RootName == "" {
		o.RootName = d.RootName
	}
	if o.MaxNameLength <= 0 {
		o.MaxNameLength = d.MaxNameLength
	}
	if o.MoveCollisionPolicy == "" {
		o.MoveCollisionPolicy = d.MoveCollisionPolicy
	}
	return o
}
