package svc

import (
	"github.com/acme/app/repo"
)

type Greeter interface {
	Greet() string
}

type UserService struct {
	repo.Base
	_ struct{} `neve:"@Service(userService) @Scope(prototype) @Lazy @Primary @DependsOn(\"dataSource, cache\") @Description('user service')"`

	Repo *repo.Repository
}

var _ Greeter = (*UserService)(nil)

func (s *UserService) Greet() string {
	return "hello " + s.Repo.Name()
}

type plainHelper struct{}

type Audit struct {
	_ struct{} `neve:"@Component @Profile(\"!dev\")"`
}

type DevAudit struct {
	_ struct{} `neve:"@Component(audit) @Profile(dev)"`
}
