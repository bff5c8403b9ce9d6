package handler

import (
	"errors"
	"regexp"

	"github.com/taskfolio/realtime/internal/ierr"
)

type ProjectIdValidator struct {
	projectIdRegex *regexp.Regexp
}

func NewProjectIdValidator() *ProjectIdValidator {
	return &ProjectIdValidator{
		projectIdRegex: regexp.MustCompile(`^[\w-]{1,64}$`),
	}
}

func (v *ProjectIdValidator) Validate(projectId string) error {
	valid := v.projectIdRegex.MatchString(projectId)
	if !valid {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid projectId"))
	}

	return nil
}
