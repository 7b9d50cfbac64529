package library

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Scope is the ownership context of a node: a course, a course module,
// or a trainee's personal space within a course.
type Scope struct {
	CourseID  string `json:"course_id"`
	ModuleID  string `json:"module_id,omitempty"`
	TraineeID string `json:"trainee_id,omitempty"` // set => personal copy space
}

// Validate checks that the course is set and at most one of module/trainee is set
func (s Scope) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.CourseID, validation.Required),
	)
	if err != nil {
		return err
	}
	if s.ModuleID != "" && s.TraineeID != "" {
		return errors.New("scope cannot have both module_id and trainee_id")
	}
	if strings.ContainsAny(s.CourseID+s.ModuleID+s.TraineeID, "/:") {
		return errors.New("scope ids cannot contain '/' or ':'")
	}
	return nil
}

// IsPersonal reports whether the scope is a trainee's personal space
func (s Scope) IsPersonal() bool {
	return s.TraineeID != ""
}

// Key uniquely identifies the scope, e.g. "course:c1/module:m2"
func (s Scope) Key() string {
	key := "course:" + s.CourseID
	switch {
	case s.ModuleID != "":
		key += "/module:" + s.ModuleID
	case s.TraineeID != "":
		key += "/trainee:" + s.TraineeID
	}
	return key
}

// LockKey is the key structural mutations serialize on.
// Module scopes share their course's lock; personal scopes get their own.
func (s Scope) LockKey() string {
	key := "course:" + s.CourseID
	if s.TraineeID != "" {
		key += "/trainee:" + s.TraineeID
	}
	return key
}

// String implements fmt.Stringer
func (s Scope) String() string {
	return s.Key()
}
