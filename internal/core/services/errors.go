package services

import "github.com/AOSC-Dev/buildit/internal/apierr"

func unauthorised(msg string) error { return apierr.New(apierr.Unauthorised, msg) }

func notFound(msg string) error { return apierr.New(apierr.NotFound, msg) }

func conflict(msg string) error { return apierr.New(apierr.Conflict, msg) }

func validation(msg string) error { return apierr.New(apierr.Validation, msg) }

func upstream(msg string, cause error) error { return apierr.Wrap(apierr.Upstream, msg, cause) }

func internalErr(msg string, cause error) error { return apierr.Wrap(apierr.Internal, msg, cause) }
