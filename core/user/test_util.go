package user

import (
	"context"

	"github.com/casbytes/lms-sub000/core"
)

type serviceMock struct {
	*service
}

// NewServiceMock returns a Service that sends emails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: &service{
			repo:     repo,
			mailSvc:  mailSvc,
			tokenGen: newTokenGenerator(conf),
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
